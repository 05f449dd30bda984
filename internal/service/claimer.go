package service

import (
	"context"
	"errors"
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/internal/repository"
	"github.com/crmforge/groupposter/pkg/logger"
)

// Claimer performs the atomic task claim. Every admission rule is
// re-evaluated against freshly read state on each attempt, so two accounts
// racing for the same group can never both win inside a cooldown.
type Claimer struct {
	states repository.GroupStateRepository
	groups *GroupStateService
	ramp   *RampUpPolicy
	guard  *ContentGuard
	cfg    config.SchedulingConfig
	log    logger.Logger
}

func NewClaimer(
	states repository.GroupStateRepository,
	groups *GroupStateService,
	ramp *RampUpPolicy,
	guard *ContentGuard,
	cfg config.SchedulingConfig,
	log logger.Logger,
) *Claimer {
	return &Claimer{
		states: states,
		groups: groups,
		ramp:   ramp,
		guard:  guard,
		cfg:    cfg,
		log:    log,
	}
}

// Claim tries to turn a candidate into a posting task. A nil task with a
// populated admission means the candidate was rejected by a posting rule;
// an error means the store itself failed.
func (c *Claimer) Claim(ctx context.Context, cand models.Candidate, template *models.Template, runID string, now time.Time) (*models.PostingTask, models.Admission, error) {
	attempts := c.cfg.ClaimMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		state, err := c.states.Get(ctx, cand.GroupID)
		if err != nil {
			return nil, models.Admission{}, err
		}

		if !state.HasAccount(cand.AccountID) {
			return nil, models.Admission{Allowed: false, Reason: models.ReasonNotAssigned}, nil
		}
		if adm := c.groups.CanAcceptPost(state, now); !adm.Allowed {
			return nil, adm, nil
		}
		if adm := c.groups.CanScheduleAt(state, cand.ScheduledAt); !adm.Allowed {
			return nil, adm, nil
		}
		if adm := c.ramp.Check(state, now); !adm.Allowed {
			return nil, adm, nil
		}

		combo, ok := c.guard.SelectCombination(state, template, now)
		if !ok {
			return nil, models.Admission{Allowed: false, Reason: models.ReasonNoUniqueContent}, nil
		}

		update := c.buildUpdate(state, cand, combo, now)
		update.Task = &models.PostingTask{
			AccountID:     cand.AccountID,
			GroupID:       cand.GroupID,
			TemplateID:    template.ID,
			TextVariantID: combo.TextVariantID,
			MediaIDs:      combo.MediaIDs,
			ScheduledAt:   cand.ScheduledAt,
			RunID:         runID,
		}

		task, err := c.states.ApplyClaim(ctx, update)
		if err != nil {
			if errors.Is(err, models.ErrConcurrencyConflict) {
				claimConflictsTotal.Inc()
				c.log.Debug("Claim conflict on group %s, attempt %d/%d", cand.GroupID, attempt, attempts)
				continue
			}
			return nil, models.Admission{}, err
		}

		tasksCreatedTotal.Inc()
		return task, models.Admission{Allowed: true}, nil
	}

	return nil, models.Admission{Allowed: false, Reason: models.ReasonConflict}, nil
}

// buildUpdate computes the post-claim group document. Post times stay
// append-only, the daily count reflects the trailing 24h including this
// post, and aged-out combinations are pruned on the way through.
func (c *Claimer) buildUpdate(state *models.GroupState, cand models.Candidate, combo models.Combination, now time.Time) repository.ClaimUpdate {
	times := make([]time.Time, len(state.LastPostTimes), len(state.LastPostTimes)+1)
	copy(times, state.LastPostTimes)
	times = append(times, cand.ScheduledAt)

	combos := c.guard.Prune(state.RecentCombinations, now)
	combos = append(combos, combo.Record(cand.ScheduledAt))

	return repository.ClaimUpdate{
		GroupID:            state.ID,
		ExpectedVersion:    state.Version,
		LastPostTimes:      times,
		GlobalDailyCount:   state.PostsWithin(24*time.Hour, now) + 1,
		RecentCombinations: combos,
	}
}
