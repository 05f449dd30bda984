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

type TaskRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.PostingTask, error)
	List(ctx context.Context, filter models.TaskFilter) ([]*models.PostingTask, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status, lastError string) error
	Count(ctx context.Context, filter models.TaskFilter) (int64, error)
	CountByTemplateAndGroup(ctx context.Context, templateID, groupID string, since time.Time) (int64, error)
	CountByTemplate(ctx context.Context, templateID string, since time.Time) (int64, error)
	ListStuckPending(ctx context.Context, olderThan time.Duration) ([]*models.PostingTask, error)
}

type taskRepository struct {
	collection *mongo.Collection
}

func NewTaskRepository(db *database.MongoDB) TaskRepository {
	return &taskRepository{
		collection: db.Collection("posting_tasks"),
	}
}

func (r *taskRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.PostingTask, error) {
	var task models.PostingTask

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get posting task: %w", err)
	}

	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.PostingTask, error) {
	findFilter := buildTaskFilter(filter)

	findOptions := options.Find()
	if filter.Limit > 0 {
		findOptions.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		findOptions.SetSkip(int64(filter.Offset))
	}
	findOptions.SetSort(bson.D{{Key: "scheduled_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, findFilter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list posting tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*models.PostingTask
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode posting tasks: %w", err)
	}

	return tasks, nil
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, lastError string) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if lastError != "" {
		set["last_error"] = lastError
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}

	return nil
}

func (r *taskRepository) Count(ctx context.Context, filter models.TaskFilter) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, buildTaskFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count posting tasks: %w", err)
	}
	return count, nil
}

func (r *taskRepository) CountByTemplateAndGroup(ctx context.Context, templateID, groupID string, since time.Time) (int64, error) {
	filter := bson.M{
		"template_id":  templateID,
		"group_id":     groupID,
		"scheduled_at": bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count template usage for group: %w", err)
	}
	return count, nil
}

func (r *taskRepository) CountByTemplate(ctx context.Context, templateID string, since time.Time) (int64, error) {
	filter := bson.M{
		"template_id":  templateID,
		"scheduled_at": bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count template usage: %w", err)
	}
	return count, nil
}

func (r *taskRepository) ListStuckPending(ctx context.Context, olderThan time.Duration) ([]*models.PostingTask, error) {
	threshold := time.Now().Add(-olderThan)

	filter := bson.M{
		"status":       models.TaskStatusPending,
		"scheduled_at": bson.M{"$lt": threshold},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*models.PostingTask
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode stuck tasks: %w", err)
	}

	return tasks, nil
}

func buildTaskFilter(filter models.TaskFilter) bson.M {
	findFilter := bson.M{}

	if filter.AccountID != "" {
		findFilter["account_id"] = filter.AccountID
	}
	if filter.GroupID != "" {
		findFilter["group_id"] = filter.GroupID
	}
	if filter.TemplateID != "" {
		findFilter["template_id"] = filter.TemplateID
	}
	if filter.Status != "" {
		findFilter["status"] = filter.Status
	}
	if filter.RunID != "" {
		findFilter["run_id"] = filter.RunID
	}
	if filter.Since != nil {
		findFilter["scheduled_at"] = bson.M{"$gte": *filter.Since}
	}

	return findFilter
}
