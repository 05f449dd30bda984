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
)

// ClaimUpdate carries the full post-claim group state plus the task to
// persist. ExpectedVersion guards against concurrent writers: the update only
// applies if the group document still has that version.
type ClaimUpdate struct {
	GroupID            string
	ExpectedVersion    int64
	LastPostTimes      []time.Time
	GlobalDailyCount   int
	RecentCombinations []models.CombinationRecord
	Task               *models.PostingTask
}

type GroupStateRepository interface {
	Get(ctx context.Context, groupID string) (*models.GroupState, error)
	Create(ctx context.Context, state *models.GroupState) error
	ListAll(ctx context.Context) ([]*models.GroupState, error)
	ListByIDs(ctx context.Context, groupIDs []string) ([]*models.GroupState, error)
	AddAssignedAccount(ctx context.Context, groupID, accountID string) error
	ApplyClaim(ctx context.Context, update ClaimUpdate) (*models.PostingTask, error)
}

type groupStateRepository struct {
	db     *database.MongoDB
	states *mongo.Collection
	tasks  *mongo.Collection
}

func NewGroupStateRepository(db *database.MongoDB) GroupStateRepository {
	return &groupStateRepository{
		db:     db,
		states: db.Collection("group_states"),
		tasks:  db.Collection("posting_tasks"),
	}
}

func (r *groupStateRepository) Get(ctx context.Context, groupID string) (*models.GroupState, error) {
	var state models.GroupState

	err := r.states.FindOne(ctx, bson.M{"_id": groupID}).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group state: %w", err)
	}

	return &state, nil
}

func (r *groupStateRepository) Create(ctx context.Context, state *models.GroupState) error {
	state.CreatedAt = time.Now()
	state.UpdatedAt = time.Now()
	if state.AssignedAccounts == nil {
		state.AssignedAccounts = []string{}
	}
	if state.LastPostTimes == nil {
		state.LastPostTimes = []time.Time{}
	}
	if state.RecentCombinations == nil {
		state.RecentCombinations = []models.CombinationRecord{}
	}

	if _, err := r.states.InsertOne(ctx, state); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return database.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create group state: %w", err)
	}

	return nil
}

func (r *groupStateRepository) ListAll(ctx context.Context) ([]*models.GroupState, error) {
	cursor, err := r.states.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list group states: %w", err)
	}
	defer cursor.Close(ctx)

	var states []*models.GroupState
	if err = cursor.All(ctx, &states); err != nil {
		return nil, fmt.Errorf("failed to decode group states: %w", err)
	}

	return states, nil
}

func (r *groupStateRepository) ListByIDs(ctx context.Context, groupIDs []string) ([]*models.GroupState, error) {
	cursor, err := r.states.Find(ctx, bson.M{"_id": bson.M{"$in": groupIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to list group states: %w", err)
	}
	defer cursor.Close(ctx)

	var states []*models.GroupState
	if err = cursor.All(ctx, &states); err != nil {
		return nil, fmt.Errorf("failed to decode group states: %w", err)
	}

	return states, nil
}

func (r *groupStateRepository) AddAssignedAccount(ctx context.Context, groupID, accountID string) error {
	update := bson.M{
		"$addToSet": bson.M{"assigned_accounts": accountID},
		"$set":      bson.M{"updated_at": time.Now()},
	}

	res, err := r.states.UpdateOne(ctx, bson.M{"_id": groupID}, update)
	if err != nil {
		return fmt.Errorf("failed to add assigned account: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrGroupNotFound
	}

	return nil
}

// ApplyClaim commits one posting claim: the version-guarded group state
// update and the task insert run in a single transaction, so either both
// land or neither does. A version mismatch surfaces as
// models.ErrConcurrencyConflict and the caller retries on fresh state.
func (r *groupStateRepository) ApplyClaim(ctx context.Context, update ClaimUpdate) (*models.PostingTask, error) {
	now := time.Now()

	result, err := r.db.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		filter := bson.M{
			"_id":     update.GroupID,
			"version": update.ExpectedVersion,
		}
		stateUpdate := bson.M{
			"$set": bson.M{
				"last_post_times":     update.LastPostTimes,
				"global_daily_count":  update.GlobalDailyCount,
				"recent_combinations": update.RecentCombinations,
				"updated_at":          now,
			},
			"$inc": bson.M{"version": 1},
		}

		res, err := r.states.UpdateOne(sessCtx, filter, stateUpdate)
		if err != nil {
			return nil, fmt.Errorf("failed to update group state: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, models.ErrConcurrencyConflict
		}

		task := update.Task
		task.Status = models.TaskStatusPending
		task.CreatedAt = now
		task.UpdatedAt = now

		insertRes, err := r.tasks.InsertOne(sessCtx, task)
		if err != nil {
			return nil, fmt.Errorf("failed to insert posting task: %w", err)
		}
		task.ID = insertRes.InsertedID.(primitive.ObjectID)

		return task, nil
	})

	if err != nil {
		return nil, err
	}

	return result.(*models.PostingTask), nil
}
