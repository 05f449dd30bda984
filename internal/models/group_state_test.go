package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCombinationKey_Canonical(t *testing.T) {
	a := Combination{TextVariantID: "v1", MediaIDs: []string{"m2", "m1", "m3"}}
	b := Combination{TextVariantID: "v1", MediaIDs: []string{"m3", "m1", "m2"}}

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "v1|m1,m2,m3", a.Key())
}

func TestCombinationKey_TextOnly(t *testing.T) {
	c := Combination{TextVariantID: "v1"}
	assert.Equal(t, "v1|", c.Key())
}

func TestCombinationKey_DoesNotMutateInput(t *testing.T) {
	media := []string{"m2", "m1"}
	c := Combination{TextVariantID: "v1", MediaIDs: media}

	c.Key()
	assert.Equal(t, []string{"m2", "m1"}, media)
}

func TestCombinationRecord_SortsMedia(t *testing.T) {
	usedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := Combination{TextVariantID: "v1", MediaIDs: []string{"m2", "m1"}}.Record(usedAt)

	assert.Equal(t, []string{"m1", "m2"}, rec.MediaIDs)
	assert.Equal(t, "v1|m1,m2", rec.Key)
	assert.Equal(t, usedAt, rec.UsedAt)
}

func TestGroupState_HasAccount(t *testing.T) {
	state := &GroupState{AssignedAccounts: []string{"acc1", "acc2"}}

	assert.True(t, state.HasAccount("acc1"))
	assert.False(t, state.HasAccount("acc3"))
}

func TestGroupState_LastPostAt(t *testing.T) {
	assert.True(t, (&GroupState{}).LastPostAt().IsZero())

	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(72 * time.Hour)
	state := &GroupState{LastPostTimes: []time.Time{first, second}}

	assert.Equal(t, second, state.LastPostAt())
}

func TestGroupState_PostsWithin(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	state := &GroupState{LastPostTimes: []time.Time{
		now.Add(-30 * time.Hour),
		now.Add(-20 * time.Hour),
		now.Add(-2 * time.Hour),
	}}

	assert.Equal(t, 2, state.PostsWithin(24*time.Hour, now))
	assert.Equal(t, 3, state.PostsWithin(48*time.Hour, now))
	assert.Equal(t, 0, state.PostsWithin(time.Hour, now))
}
