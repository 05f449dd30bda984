package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/internal/repository"
	"github.com/crmforge/groupposter/pkg/logger"
	"github.com/crmforge/groupposter/pkg/messaging"
)

// ScheduleRequest describes one scheduling run: which template to post and
// which accounts take part. GroupIDs narrows the run to a subset of groups;
// empty means all groups the accounts are assigned to. Day defaults to the
// current day.
type ScheduleRequest struct {
	TemplateID string    `json:"template_id" binding:"required"`
	AccountIDs []string  `json:"account_ids" binding:"required"`
	GroupIDs   []string  `json:"group_ids,omitempty"`
	Day        time.Time `json:"day,omitempty"`
}

// SchedulerService is the coordination engine surface exposed to transport.
type SchedulerService interface {
	GenerateSchedule(ctx context.Context, req ScheduleRequest) (*models.ScheduleResult, error)
	PreviewSchedule(ctx context.Context, req ScheduleRequest) (*models.ScheduleResult, error)
	ImportGroups(ctx context.Context, entries []models.ImportEntry) (*models.ImportResult, error)
	PreviewImport(ctx context.Context, entries []models.ImportEntry) (*models.ImportPreview, error)
	GetGroupSummary(ctx context.Context) (*models.GroupSummary, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.PostingTask, error)
	UpdateTaskStatus(ctx context.Context, id primitive.ObjectID, status, lastError string) error
	ListNotifications(ctx context.Context, notificationType string, limit int) ([]*models.Notification, error)
}

type schedulerService struct {
	states        repository.GroupStateRepository
	templates     repository.TemplateRepository
	tasks         repository.TaskRepository
	notifications repository.NotificationRepository
	groups        *GroupStateService
	ramp          *RampUpPolicy
	guard         *ContentGuard
	slots         *SlotGenerator
	claimer       *Claimer
	importer      *ImportService
	publisher     messaging.Publisher
	cfg           config.SchedulingConfig
	log           logger.Logger
}

func NewSchedulerService(
	states repository.GroupStateRepository,
	templates repository.TemplateRepository,
	tasks repository.TaskRepository,
	notifications repository.NotificationRepository,
	groups *GroupStateService,
	ramp *RampUpPolicy,
	guard *ContentGuard,
	slots *SlotGenerator,
	claimer *Claimer,
	importer *ImportService,
	publisher messaging.Publisher,
	cfg config.SchedulingConfig,
	log logger.Logger,
) SchedulerService {
	return &schedulerService{
		states:        states,
		templates:     templates,
		tasks:         tasks,
		notifications: notifications,
		groups:        groups,
		ramp:          ramp,
		guard:         guard,
		slots:         slots,
		claimer:       claimer,
		importer:      importer,
		publisher:     publisher,
		cfg:           cfg,
		log:           log,
	}
}

// GenerateSchedule runs one full scheduling pass: propose candidates, then
// claim each one atomically. Rejected candidates never fail the run; they
// are reported in the stats and warnings.
func (s *schedulerService) GenerateSchedule(ctx context.Context, req ScheduleRequest) (*models.ScheduleResult, error) {
	started := time.Now()
	scheduleRunsTotal.Inc()
	defer func() {
		scheduleDuration.Observe(time.Since(started).Seconds())
	}()

	template, _, candidates, result, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, cand := range candidates {
		task, adm, err := s.claimer.Claim(ctx, cand, template, result.RunID, now)
		if err != nil {
			s.log.Error("Claim failed for group %s: %v", cand.GroupID, err)
			result.Warnings = append(result.Warnings, "store error on group "+cand.GroupID+": "+err.Error())
			result.Stats.NotAttempted++
			continue
		}
		if task == nil {
			s.recordSkip(result, cand, adm.Reason)
			continue
		}
		result.Tasks = append(result.Tasks, task)
		result.Stats.TasksCreated++

		if s.publisher != nil {
			msg := messaging.NewMessage("task.created", task)
			if err := s.publisher.Publish("scheduler.events", "task.created", msg); err != nil {
				s.log.Error("Failed to publish task event: %v", err)
			}
		}
	}

	s.log.Info("Schedule run %s: %d/%d candidates claimed, %d conflicts",
		result.RunID, result.Stats.TasksCreated, result.Stats.CandidatesProposed, result.Stats.Conflicts)

	if s.publisher != nil {
		msg := messaging.NewMessage("schedule.completed", result)
		if err := s.publisher.Publish("scheduler.events", "schedule.completed", msg); err != nil {
			s.log.Error("Failed to publish schedule event: %v", err)
		}
	}

	return result, nil
}

// PreviewSchedule runs the same pipeline against in-memory copies of the
// group states. Nothing is persisted and no events fire, but conflicts
// aside, the output matches what GenerateSchedule would produce.
func (s *schedulerService) PreviewSchedule(ctx context.Context, req ScheduleRequest) (*models.ScheduleResult, error) {
	template, states, candidates, result, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	shadow := make(map[string]*models.GroupState, len(states))
	for _, state := range states {
		clone := *state
		clone.LastPostTimes = append([]time.Time{}, state.LastPostTimes...)
		clone.RecentCombinations = append([]models.CombinationRecord{}, state.RecentCombinations...)
		shadow[state.ID] = &clone
	}

	now := time.Now()
	for _, cand := range candidates {
		state, ok := shadow[cand.GroupID]
		if !ok {
			s.recordSkip(result, cand, models.ReasonNotAssigned)
			continue
		}
		if !state.HasAccount(cand.AccountID) {
			s.recordSkip(result, cand, models.ReasonNotAssigned)
			continue
		}
		if adm := s.groups.CanAcceptPost(state, now); !adm.Allowed {
			s.recordSkip(result, cand, adm.Reason)
			continue
		}
		if adm := s.groups.CanScheduleAt(state, cand.ScheduledAt); !adm.Allowed {
			s.recordSkip(result, cand, adm.Reason)
			continue
		}
		if adm := s.ramp.Check(state, now); !adm.Allowed {
			s.recordSkip(result, cand, adm.Reason)
			continue
		}
		combo, ok := s.guard.SelectCombination(state, template, now)
		if !ok {
			s.recordSkip(result, cand, models.ReasonNoUniqueContent)
			continue
		}

		state.LastPostTimes = append(state.LastPostTimes, cand.ScheduledAt)
		state.RecentCombinations = append(s.guard.Prune(state.RecentCombinations, now), combo.Record(cand.ScheduledAt))

		result.Tasks = append(result.Tasks, &models.PostingTask{
			AccountID:     cand.AccountID,
			GroupID:       cand.GroupID,
			TemplateID:    template.ID,
			TextVariantID: combo.TextVariantID,
			MediaIDs:      combo.MediaIDs,
			ScheduledAt:   cand.ScheduledAt,
			Status:        models.TaskStatusPending,
			RunID:         result.RunID,
		})
		result.Stats.TasksCreated++
	}

	return result, nil
}

// prepare resolves the template and group states for a run and generates the
// day's candidates.
func (s *schedulerService) prepare(ctx context.Context, req ScheduleRequest) (*models.Template, []*models.GroupState, []models.Candidate, *models.ScheduleResult, error) {
	template, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := template.Validate(); err != nil {
		return nil, nil, nil, nil, err
	}

	var states []*models.GroupState
	if len(req.GroupIDs) > 0 {
		states, err = s.states.ListByIDs(ctx, req.GroupIDs)
	} else {
		states, err = s.states.ListAll(ctx)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}

	day := req.Day
	if day.IsZero() {
		day = time.Now()
	}

	candidates, warnings := s.slots.GenerateCandidates(req.AccountIDs, states, day)

	result := &models.ScheduleResult{
		RunID:    uuid.New().String(),
		Tasks:    []*models.PostingTask{},
		Warnings: warnings,
		Stats: models.ScheduleStats{
			CandidatesProposed: len(candidates),
			Skipped:            make(map[string]int),
		},
	}

	return template, states, candidates, result, nil
}

func (s *schedulerService) recordSkip(result *models.ScheduleResult, cand models.Candidate, reason string) {
	result.Stats.Skipped[reason]++
	if reason == models.ReasonConflict {
		result.Stats.Conflicts++
	}
	candidatesSkippedTotal.WithLabelValues(reason).Inc()
	result.Warnings = append(result.Warnings, "group "+cand.GroupID+" skipped for account "+cand.AccountID+": "+reason)
}

func (s *schedulerService) ImportGroups(ctx context.Context, entries []models.ImportEntry) (*models.ImportResult, error) {
	return s.importer.ImportGroups(ctx, entries, time.Now())
}

func (s *schedulerService) PreviewImport(ctx context.Context, entries []models.ImportEntry) (*models.ImportPreview, error) {
	return s.importer.PreviewImport(ctx, entries)
}

func (s *schedulerService) GetGroupSummary(ctx context.Context) (*models.GroupSummary, error) {
	return s.groups.Summary(ctx, time.Now())
}

func (s *schedulerService) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.PostingTask, error) {
	return s.tasks.List(ctx, filter)
}

// UpdateTaskStatus is the hook for the posting executor to report outcomes.
func (s *schedulerService) UpdateTaskStatus(ctx context.Context, id primitive.ObjectID, status, lastError string) error {
	switch status {
	case models.TaskStatusPending, models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCancelled:
	default:
		return &models.ValidationError{Field: "status", Message: "unknown task status " + status}
	}
	return s.tasks.UpdateStatus(ctx, id, status, lastError)
}

func (s *schedulerService) ListNotifications(ctx context.Context, notificationType string, limit int) ([]*models.Notification, error) {
	return s.notifications.List(ctx, notificationType, limit)
}
