package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDay() time.Time {
	return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
}

func TestGenerateTimeSlots_WithinWindow(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 42, &MockLogger{})
	day := testDay()

	slots := gen.GenerateTimeSlots(day, 8)
	require.Len(t, slots, 8)

	windowStart := time.Date(2025, 3, 10, cfg.StartHour, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 3, 10, cfg.EndHour, 0, 0, 0, time.UTC)
	for _, slot := range slots {
		assert.False(t, slot.Before(windowStart.Add(-time.Hour)), "slot %s before window", slot)
		assert.False(t, slot.After(windowEnd.Add(time.Hour)), "slot %s after window", slot)
	}
}

func TestGenerateTimeSlots_MonotoneWithMinGap(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 7, &MockLogger{})
	minGap := time.Duration(cfg.BaselineMinIntervalMinutes) * time.Minute

	slots := gen.GenerateTimeSlots(testDay(), 10)
	for i := 1; i < len(slots); i++ {
		gap := slots[i].Sub(slots[i-1])
		assert.GreaterOrEqual(t, gap, minGap, "gap between slot %d and %d", i-1, i)
	}
}

func TestGenerateTimeSlots_Deterministic(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()

	first := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 99, &MockLogger{}).GenerateTimeSlots(testDay(), 5)
	second := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 99, &MockLogger{}).GenerateTimeSlots(testDay(), 5)

	assert.Equal(t, first, second)
}

func TestGenerateTimeSlots_JitterVaries(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()

	first := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 1, &MockLogger{}).GenerateTimeSlots(testDay(), 5)
	second := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 2, &MockLogger{}).GenerateTimeSlots(testDay(), 5)

	assert.NotEqual(t, first, second)
}

func TestGenerateTimeSlots_Empty(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 1, &MockLogger{})
	assert.Nil(t, gen.GenerateTimeSlots(testDay(), 0))
}

func TestGenerateCandidates_CapsGroupsPerAccount(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()
	cfg.MaxGroupsPerAccount = 2
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 42, &MockLogger{})

	states := []*models.GroupState{
		{ID: "g1", AssignedAccounts: []string{"acc1"}},
		{ID: "g2", AssignedAccounts: []string{"acc1"}},
		{ID: "g3", AssignedAccounts: []string{"acc1"}},
	}

	candidates, warnings := gen.GenerateCandidates([]string{"acc1"}, states, testDay())

	assert.Len(t, candidates, 2)
	assert.Empty(t, warnings)
}

func TestGenerateCandidates_SkipsUnassignedAccount(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 42, &MockLogger{})

	states := []*models.GroupState{
		{ID: "g1", AssignedAccounts: []string{"acc1"}},
	}

	candidates, warnings := gen.GenerateCandidates([]string{"acc2"}, states, testDay())

	assert.Empty(t, candidates)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "acc2")
}

func TestGenerateCandidates_ExcludesRampingGroups(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 42, &MockLogger{})
	day := testDay()

	ramping := &models.GroupState{
		ID:               "g1",
		AssignedAccounts: []string{"acc1"},
		CreatedAt:        day.Add(-24 * time.Hour),
		InitialRampUntil: day.Add(312 * time.Hour),
		LastPostTimes:    []time.Time{day.Add(-12 * time.Hour)},
	}
	ready := &models.GroupState{ID: "g2", AssignedAccounts: []string{"acc1"}}

	candidates, warnings := gen.GenerateCandidates([]string{"acc1"}, []*models.GroupState{ramping, ready}, day)

	require.Len(t, candidates, 1)
	assert.Equal(t, "g2", candidates[0].GroupID)
	assert.Empty(t, warnings)
}

func TestGenerateCandidates_CrossAccountSpacing(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 42, &MockLogger{})
	spacing := time.Duration(cfg.CrossAccountSpacingMinutes) * time.Minute

	states := []*models.GroupState{
		{ID: "g1", AssignedAccounts: []string{"acc1", "acc2", "acc3"}},
	}

	candidates, _ := gen.GenerateCandidates([]string{"acc1", "acc2", "acc3"}, states, testDay())

	byGroup := make(map[string][]time.Time)
	for _, c := range candidates {
		byGroup[c.GroupID] = append(byGroup[c.GroupID], c.ScheduledAt)
	}

	for groupID, times := range byGroup {
		for i := 0; i < len(times); i++ {
			for j := i + 1; j < len(times); j++ {
				diff := times[j].Sub(times[i])
				if diff < 0 {
					diff = -diff
				}
				assert.GreaterOrEqual(t, diff, spacing, "group %s candidates too close", groupID)
			}
		}
	}
}

func TestGenerateCandidates_SortedByTime(t *testing.T) {
	cfg := config.DefaultSchedulingConfig()
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 42, &MockLogger{})

	states := []*models.GroupState{
		{ID: "g1", AssignedAccounts: []string{"acc1", "acc2"}},
		{ID: "g2", AssignedAccounts: []string{"acc1", "acc2"}},
	}

	candidates, _ := gen.GenerateCandidates([]string{"acc1", "acc2"}, states, testDay())

	for i := 1; i < len(candidates); i++ {
		assert.False(t, candidates[i].ScheduledAt.Before(candidates[i-1].ScheduledAt))
	}
}

func BenchmarkGenerateCandidates(b *testing.B) {
	cfg := config.DefaultSchedulingConfig()
	gen := NewSlotGenerator(cfg, NewRampUpPolicy(cfg), 42, &MockLogger{})

	accounts := []string{"acc1", "acc2", "acc3", "acc4", "acc5"}
	states := make([]*models.GroupState, 50)
	for i := range states {
		states[i] = &models.GroupState{
			ID:               fmt.Sprintf("g%d", i),
			AssignedAccounts: accounts,
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gen.GenerateCandidates(accounts, states, testDay())
	}
}
