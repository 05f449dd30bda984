package service

import (
	"context"
	"errors"
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/internal/repository"
	"github.com/crmforge/groupposter/pkg/database"
	"github.com/crmforge/groupposter/pkg/logger"

	"gonum.org/v1/gonum/stat"
)

// GroupStateService owns the lifecycle and admission rules of shared group
// state. The cooldown and daily cap here are global per group: they apply
// across every account assigned to it.
type GroupStateService struct {
	repo repository.GroupStateRepository
	cfg  config.SchedulingConfig
	log  logger.Logger
}

func NewGroupStateService(repo repository.GroupStateRepository, cfg config.SchedulingConfig, log logger.Logger) *GroupStateService {
	return &GroupStateService{
		repo: repo,
		cfg:  cfg,
		log:  log,
	}
}

// GetOrCreate returns the group state, creating it with a fresh ramp-up
// window when the group is seen for the first time. Creation races resolve
// by re-reading the winner's document.
func (s *GroupStateService) GetOrCreate(ctx context.Context, groupID, name string, now time.Time) (*models.GroupState, error) {
	state, err := s.repo.Get(ctx, groupID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, models.ErrGroupNotFound) {
		return nil, err
	}

	state = &models.GroupState{
		ID:               groupID,
		Name:             name,
		InitialRampUntil: now.Add(time.Duration(s.cfg.InitialRampDelayHours) * time.Hour),
	}

	if err := s.repo.Create(ctx, state); err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			return s.repo.Get(ctx, groupID)
		}
		return nil, err
	}

	s.log.Info("Created group state for %s, ramp-up until %s", groupID, state.InitialRampUntil.Format(time.RFC3339))
	return state, nil
}

// CanAcceptPost checks the global cooldown and the rolling 24h cap. The
// cooldown is evaluated first so its reason wins when both would reject.
func (s *GroupStateService) CanAcceptPost(state *models.GroupState, now time.Time) models.Admission {
	cooldown := time.Duration(s.cfg.GlobalGroupCooldownHours) * time.Hour
	if last := state.LastPostAt(); cooldown > 0 && !last.IsZero() && now.Sub(last) < cooldown {
		return models.Admission{Allowed: false, Reason: models.ReasonCooldown}
	}

	if state.PostsWithin(24*time.Hour, now) >= s.cfg.MaxGroupPostsPer24h {
		return models.Admission{Allowed: false, Reason: models.ReasonDailyLimit}
	}

	return models.Admission{Allowed: true}
}

// CanScheduleAt enforces the cross-account spacing floor between the
// proposed slot and every recorded post in the group, no matter which
// account made them. Cooldown alone does not imply this when the cooldown
// is configured shorter than the spacing.
func (s *GroupStateService) CanScheduleAt(state *models.GroupState, at time.Time) models.Admission {
	spacing := time.Duration(s.cfg.CrossAccountSpacingMinutes) * time.Minute
	if spacing <= 0 {
		return models.Admission{Allowed: true}
	}

	for _, t := range state.LastPostTimes {
		diff := at.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if diff < spacing {
			return models.Admission{Allowed: false, Reason: models.ReasonSpacing}
		}
	}

	return models.Admission{Allowed: true}
}

// Summary aggregates group availability for operator dashboards.
func (s *GroupStateService) Summary(ctx context.Context, now time.Time) (*models.GroupSummary, error) {
	states, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := &models.GroupSummary{
		TotalGroups:    len(states),
		CooldownGroups: []models.CooldownGroup{},
	}
	if len(states) == 0 {
		return summary, nil
	}

	cooldown := time.Duration(s.cfg.GlobalGroupCooldownHours) * time.Hour
	counts := make([]float64, 0, len(states))

	for _, state := range states {
		counts = append(counts, float64(len(state.LastPostTimes)))

		last := state.LastPostAt()
		if !last.IsZero() && now.Sub(last) < cooldown {
			summary.GroupsInCooldown++
			summary.CooldownGroups = append(summary.CooldownGroups, models.CooldownGroup{
				GroupID:         state.ID,
				LastPostAt:      last,
				NextAvailableAt: last.Add(cooldown),
			})
		}
		if state.PostsWithin(24*time.Hour, now) >= s.cfg.MaxGroupPostsPer24h {
			summary.GroupsAtDailyLimit++
		}
	}

	summary.AvgPostsPerGroup = stat.Mean(counts, nil)
	return summary, nil
}
