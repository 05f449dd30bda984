package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, notificationType string, limit int) ([]*models.Notification, error)
}

type notificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *database.MongoDB) NotificationRepository {
	return &notificationRepository{
		collection: db.Collection("notifications"),
	}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	notification.CreatedAt = time.Now()

	res, err := r.collection.InsertOne(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	notification.ID = res.InsertedID.(primitive.ObjectID)

	return nil
}

func (r *notificationRepository) List(ctx context.Context, notificationType string, limit int) ([]*models.Notification, error) {
	filter := bson.M{}
	if notificationType != "" {
		filter["type"] = notificationType
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []*models.Notification
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}

	return notifications, nil
}
