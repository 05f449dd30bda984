package service

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/pkg/logger"
)

// SlotGenerator produces candidate (account, group, time) tuples for one
// posting day. Slots are spread over the posting window with jitter so runs
// do not produce mechanical, evenly spaced timestamps. The RNG is injected
// so tests can pin the output.
type SlotGenerator struct {
	cfg  config.SchedulingConfig
	ramp *RampUpPolicy
	rng  *rand.Rand
	log  logger.Logger
}

func NewSlotGenerator(cfg config.SchedulingConfig, ramp *RampUpPolicy, seed int64, log logger.Logger) *SlotGenerator {
	return &SlotGenerator{
		cfg:  cfg,
		ramp: ramp,
		rng:  rand.New(rand.NewSource(seed)),
		log:  log,
	}
}

// GenerateTimeSlots returns count timestamps inside the posting window of
// day. Each slot gets uniform jitter of up to IntervalVariationPct of the
// base step in either direction, then is clamped forward so the sequence
// stays monotone with at least the baseline interval between neighbors.
func (g *SlotGenerator) GenerateTimeSlots(day time.Time, count int) []time.Time {
	if count <= 0 {
		return nil
	}

	windowStart := time.Date(day.Year(), day.Month(), day.Day(), g.cfg.StartHour, 0, 0, 0, day.Location())
	window := time.Duration(g.cfg.EndHour-g.cfg.StartHour) * time.Hour
	step := window / time.Duration(count)
	minGap := time.Duration(g.cfg.BaselineMinIntervalMinutes) * time.Minute
	if minGap < time.Minute {
		minGap = time.Minute
	}

	slots := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		base := windowStart.Add(step*time.Duration(i) + step/2)

		maxJitter := float64(step) * float64(g.cfg.IntervalVariationPct) / 100
		jitter := time.Duration((g.rng.Float64()*2 - 1) * maxJitter)
		slot := base.Add(jitter)

		if i > 0 {
			if floor := slots[i-1].Add(minGap); slot.Before(floor) {
				slot = floor
			}
		}
		slots = append(slots, slot)
	}

	return slots
}

// GenerateCandidates assigns groups to each account's slots for the day.
// Groups still inside a ramp-up restriction are left out entirely rather
// than consuming slots. Per-account group count is capped and same-group
// candidates from different accounts are spaced apart; a candidate that
// cannot be spaced inside the posting window is dropped with a warning.
func (g *SlotGenerator) GenerateCandidates(accounts []string, states []*models.GroupState, day time.Time) ([]models.Candidate, []string) {
	var candidates []models.Candidate
	var warnings []string

	spacing := time.Duration(g.cfg.CrossAccountSpacingMinutes) * time.Minute
	windowEnd := time.Date(day.Year(), day.Month(), day.Day(), g.cfg.EndHour, 0, 0, 0, day.Location())
	groupTimes := make(map[string][]time.Time)

	for _, accountID := range accounts {
		var eligible []*models.GroupState
		for _, state := range states {
			if !state.HasAccount(accountID) {
				continue
			}
			if adm := g.ramp.Check(state, day); !adm.Allowed {
				continue
			}
			eligible = append(eligible, state)
		}
		if len(eligible) == 0 {
			warnings = append(warnings, fmt.Sprintf("account %s has no eligible groups", accountID))
			continue
		}

		// Deterministic account-local order, then a seeded shuffle so the
		// same groups do not always get the earliest slots.
		sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
		g.rng.Shuffle(len(eligible), func(i, j int) {
			eligible[i], eligible[j] = eligible[j], eligible[i]
		})

		count := len(eligible)
		if count > g.cfg.MaxGroupsPerAccount {
			count = g.cfg.MaxGroupsPerAccount
		}
		if count > g.cfg.PostsPerDay {
			count = g.cfg.PostsPerDay
		}

		slots := g.GenerateTimeSlots(day, count)
		for i := 0; i < count; i++ {
			slot, ok := spaceApart(slots[i], groupTimes[eligible[i].ID], spacing, windowEnd)
			if !ok {
				warnings = append(warnings, fmt.Sprintf(
					"group %s: no slot for account %s satisfies cross-account spacing", eligible[i].ID, accountID))
				continue
			}

			groupTimes[eligible[i].ID] = append(groupTimes[eligible[i].ID], slot)
			candidates = append(candidates, models.Candidate{
				AccountID:   accountID,
				GroupID:     eligible[i].ID,
				ScheduledAt: slot,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ScheduledAt.Before(candidates[j].ScheduledAt)
	})

	return candidates, warnings
}

// spaceApart pushes slot forward until it sits at least spacing away from
// every taken time, or reports failure once it would leave the window.
func spaceApart(slot time.Time, taken []time.Time, spacing time.Duration, windowEnd time.Time) (time.Time, bool) {
	for {
		moved := false
		for _, t := range taken {
			diff := slot.Sub(t)
			if diff < 0 {
				diff = -diff
			}
			if diff < spacing {
				slot = t.Add(spacing)
				moved = true
			}
		}
		if !moved {
			return slot, true
		}
		if slot.After(windowEnd) {
			return time.Time{}, false
		}
	}
}
