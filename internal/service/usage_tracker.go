package service

import (
	"context"
	"fmt"
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/internal/repository"
	"github.com/crmforge/groupposter/pkg/logger"
	"github.com/crmforge/groupposter/pkg/messaging"
)

// noticeDedupTTL suppresses repeat alerts for the same condition between
// scans.
const noticeDedupTTL = 24 * time.Hour

// NoticeCache is the slice of the Redis client used for alert dedup.
type NoticeCache interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// UsageTracker watches template usage and task health and raises advisory
// notifications. Nothing here ever blocks or rejects scheduling.
type UsageTracker struct {
	groups        repository.GroupStateRepository
	tasks         repository.TaskRepository
	templates     repository.TemplateRepository
	notifications repository.NotificationRepository
	cache         NoticeCache
	publisher     messaging.Publisher
	notifier      *Notifier
	cfg           config.SchedulingConfig
	log           logger.Logger
}

func NewUsageTracker(
	groups repository.GroupStateRepository,
	tasks repository.TaskRepository,
	templates repository.TemplateRepository,
	notifications repository.NotificationRepository,
	noticeCache NoticeCache,
	publisher messaging.Publisher,
	notifier *Notifier,
	cfg config.SchedulingConfig,
	log logger.Logger,
) *UsageTracker {
	return &UsageTracker{
		groups:        groups,
		tasks:         tasks,
		templates:     templates,
		notifications: notifications,
		cache:         noticeCache,
		publisher:     publisher,
		notifier:      notifier,
		cfg:           cfg,
		log:           log,
	}
}

// Start launches the periodic scans and returns immediately. The loops stop
// when ctx is cancelled.
func (t *UsageTracker) Start(ctx context.Context) {
	go t.runLoop(ctx, "usage scan", time.Duration(t.cfg.UsageScanIntervalMinutes)*time.Minute, t.ScanUsage)
	go t.runLoop(ctx, "stuck task scan", time.Duration(t.cfg.UsageScanIntervalMinutes)*time.Minute, t.ScanStuckTasks)
}

func (t *UsageTracker) runLoop(ctx context.Context, name string, interval time.Duration, scan func(context.Context, time.Time) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.log.Info("Started %s loop, interval %s", name, interval)

	for {
		select {
		case <-ctx.Done():
			t.log.Info("Stopping %s loop", name)
			return
		case <-ticker.C:
			if err := scan(ctx, time.Now()); err != nil {
				t.log.Error("Failed %s: %v", name, err)
			}
		}
	}
}

// ScanUsage checks every template against the per-group and global overuse
// thresholds and flags templates that have gone stale.
func (t *UsageTracker) ScanUsage(ctx context.Context, now time.Time) error {
	templates, err := t.templates.ListAll(ctx)
	if err != nil {
		return err
	}
	states, err := t.groups.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, template := range templates {
		globalSince := now.AddDate(0, 0, -t.cfg.GlobalWindowDays)
		globalCount, err := t.tasks.CountByTemplate(ctx, template.ID, globalSince)
		if err != nil {
			return err
		}

		if globalCount >= int64(t.cfg.GlobalUsageThreshold) {
			t.emit(ctx, &models.Notification{
				Type:       models.NotificationGlobalOveruse,
				TemplateID: template.ID,
				Message: fmt.Sprintf("template %s used %d times in the last %d days (threshold %d)",
					template.ID, globalCount, t.cfg.GlobalWindowDays, t.cfg.GlobalUsageThreshold),
				UsageCount: int(globalCount),
				Threshold:  t.cfg.GlobalUsageThreshold,
			})
		}

		if globalCount > 0 && now.Sub(template.UpdatedAt) > time.Duration(t.cfg.StalenessDays)*24*time.Hour {
			t.emit(ctx, &models.Notification{
				Type:       models.NotificationStaleTemplate,
				TemplateID: template.ID,
				Message: fmt.Sprintf("template %s is still in use but has not changed in over %d days",
					template.ID, t.cfg.StalenessDays),
			})
		}

		groupSince := now.AddDate(0, 0, -t.cfg.UsageWindowDays)
		for _, state := range states {
			count, err := t.tasks.CountByTemplateAndGroup(ctx, template.ID, state.ID, groupSince)
			if err != nil {
				return err
			}
			if count >= int64(t.cfg.GroupUsageThreshold) {
				t.emit(ctx, &models.Notification{
					Type:       models.NotificationGroupOveruse,
					TemplateID: template.ID,
					GroupID:    state.ID,
					Message: fmt.Sprintf("template %s used %d times in group %s over the last %d days (threshold %d)",
						template.ID, count, state.ID, t.cfg.UsageWindowDays, t.cfg.GroupUsageThreshold),
					UsageCount: int(count),
					Threshold:  t.cfg.GroupUsageThreshold,
				})
			}
		}
	}

	return nil
}

// ScanStuckTasks flags pending tasks whose scheduled time passed long ago,
// usually a sign the posting worker is down or dropping work.
func (t *UsageTracker) ScanStuckTasks(ctx context.Context, now time.Time) error {
	threshold := time.Duration(t.cfg.StuckTaskThresholdHours) * time.Hour

	stuck, err := t.tasks.ListStuckPending(ctx, threshold)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	t.emit(ctx, &models.Notification{
		Type: models.NotificationStuckTasks,
		Message: fmt.Sprintf("%d tasks still pending more than %s past their scheduled time",
			len(stuck), threshold),
		UsageCount: len(stuck),
	})

	return nil
}

// emit persists the notification, fans it out over the message bus and
// Telegram, and dedups repeats through Redis. Delivery failures are logged
// and dropped; notifications are advisory.
func (t *UsageTracker) emit(ctx context.Context, notification *models.Notification) {
	dedupKey := fmt.Sprintf("notice:%s:%s:%s", notification.Type, notification.TemplateID, notification.GroupID)
	fresh, err := t.cache.SetNX(ctx, dedupKey, "1", noticeDedupTTL)
	if err != nil {
		t.log.Warn("Notification dedup check failed, emitting anyway: %v", err)
	} else if !fresh {
		return
	}

	if err := t.notifications.Create(ctx, notification); err != nil {
		t.log.Error("Failed to persist notification: %v", err)
		return
	}

	notificationsSentTotal.WithLabelValues(notification.Type).Inc()
	t.log.Warn("Notification: %s", notification.Message)

	if t.publisher != nil {
		msg := messaging.NewMessage(notification.Type, notification)
		if err := t.publisher.Publish("scheduler.notifications", "notification."+notification.Type, msg); err != nil {
			t.log.Error("Failed to publish notification: %v", err)
		}
	}

	t.notifier.Send(ctx, notification.Message)
}
