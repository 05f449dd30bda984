package service

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/crmforge/groupposter/pkg/logger"
)

// Notifier pushes operator alerts to a Telegram chat. A nil Notifier is a
// valid no-op so deployments without a bot token need no special casing.
type Notifier struct {
	bot    *bot.Bot
	chatID int64
	log    logger.Logger
}

func NewNotifier(token string, chatID int64, log logger.Logger) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Notifier{
		bot:    b,
		chatID: chatID,
		log:    log,
	}, nil
}

func (n *Notifier) Send(ctx context.Context, text string) {
	if n == nil {
		return
	}

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		n.log.Error("Failed to send telegram alert: %v", err)
	}
}
