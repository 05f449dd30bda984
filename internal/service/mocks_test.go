package service

import (
	"context"
	"time"

	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/internal/repository"
	"github.com/crmforge/groupposter/pkg/logger"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockGroupStateRepository is a mock implementation of GroupStateRepository
type MockGroupStateRepository struct {
	mock.Mock
}

func (m *MockGroupStateRepository) Get(ctx context.Context, groupID string) (*models.GroupState, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GroupState), args.Error(1)
}

func (m *MockGroupStateRepository) Create(ctx context.Context, state *models.GroupState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockGroupStateRepository) ListAll(ctx context.Context) ([]*models.GroupState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GroupState), args.Error(1)
}

func (m *MockGroupStateRepository) ListByIDs(ctx context.Context, groupIDs []string) ([]*models.GroupState, error) {
	args := m.Called(ctx, groupIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GroupState), args.Error(1)
}

func (m *MockGroupStateRepository) AddAssignedAccount(ctx context.Context, groupID, accountID string) error {
	args := m.Called(ctx, groupID, accountID)
	return args.Error(0)
}

func (m *MockGroupStateRepository) ApplyClaim(ctx context.Context, update repository.ClaimUpdate) (*models.PostingTask, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	task := args.Get(0).(*models.PostingTask)
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	return task, args.Error(1)
}

// MockTaskRepository is a mock implementation of TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.PostingTask, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostingTask), args.Error(1)
}

func (m *MockTaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.PostingTask, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PostingTask), args.Error(1)
}

func (m *MockTaskRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, lastError string) error {
	args := m.Called(ctx, id, status, lastError)
	return args.Error(0)
}

func (m *MockTaskRepository) Count(ctx context.Context, filter models.TaskFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) CountByTemplateAndGroup(ctx context.Context, templateID, groupID string, since time.Time) (int64, error) {
	args := m.Called(ctx, templateID, groupID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) CountByTemplate(ctx context.Context, templateID string, since time.Time) (int64, error) {
	args := m.Called(ctx, templateID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) ListStuckPending(ctx context.Context, olderThan time.Duration) ([]*models.PostingTask, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PostingTask), args.Error(1)
}

// MockTemplateRepository is a mock implementation of TemplateRepository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Template), args.Error(1)
}

func (m *MockTemplateRepository) ListAll(ctx context.Context) ([]*models.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Template), args.Error(1)
}

func (m *MockTemplateRepository) Upsert(ctx context.Context, template *models.Template) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

// MockNotificationRepository is a mock implementation of NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *MockNotificationRepository) List(ctx context.Context, notificationType string, limit int) ([]*models.Notification, error) {
	args := m.Called(ctx, notificationType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

// MockNoticeCache is a mock implementation of NoticeCache
type MockNoticeCache struct {
	mock.Mock
}

func (m *MockNoticeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

// MockPublisher is a mock implementation of messaging.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, routingKey string, message interface{}) error {
	args := m.Called(exchange, routingKey, message)
	return args.Error(0)
}

// MockLogger is a no-op logger for tests
type MockLogger struct{}

func (l *MockLogger) Debug(format string, args ...interface{}) {}
func (l *MockLogger) Info(format string, args ...interface{})  {}
func (l *MockLogger) Warn(format string, args ...interface{})  {}
func (l *MockLogger) Error(format string, args ...interface{}) {}
func (l *MockLogger) Fatal(format string, args ...interface{}) {}
func (l *MockLogger) WithField(key string, value interface{}) logger.Logger {
	return l
}
