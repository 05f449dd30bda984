package models

import (
	"sort"
	"strings"
	"time"
)

// GroupState is the global coordination record for one Facebook group. It is
// shared by every account assigned to the group and is the single source of
// truth for cooldowns and posting limits. All mutations after creation go
// through the atomic claim or the import merge.
type GroupState struct {
	ID                 string              `bson:"_id" json:"fb_group_id"`
	Name               string              `bson:"name,omitempty" json:"name,omitempty"`
	AssignedAccounts   []string            `bson:"assigned_accounts" json:"assigned_accounts"`
	LastPostTimes      []time.Time         `bson:"last_post_times" json:"last_post_times"`
	GlobalDailyCount   int                 `bson:"global_daily_count" json:"global_daily_count"`
	RecentCombinations []CombinationRecord `bson:"recent_combinations" json:"recent_combinations"`
	InitialRampUntil   time.Time           `bson:"initial_ramp_until" json:"initial_ramp_until"`
	Version            int64               `bson:"version" json:"-"`
	CreatedAt          time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `bson:"updated_at" json:"updated_at"`
}

// CombinationRecord is a posted content combination with its timestamp,
// retained for duplicate detection.
type CombinationRecord struct {
	TextVariantID string    `bson:"text_variant_id" json:"text_variant_id"`
	MediaIDs      []string  `bson:"media_ids" json:"media_ids"`
	Key           string    `bson:"key" json:"key"`
	UsedAt        time.Time `bson:"used_at" json:"used_at"`
}

// Combination pairs a text variant with a media set for one post.
type Combination struct {
	TextVariantID string   `json:"text_variant_id"`
	MediaIDs      []string `json:"media_ids"`
}

// Key returns the canonical identity of the combination. Media IDs are
// sorted so selection order never affects duplicate detection.
func (c Combination) Key() string {
	sorted := make([]string, len(c.MediaIDs))
	copy(sorted, c.MediaIDs)
	sort.Strings(sorted)
	return c.TextVariantID + "|" + strings.Join(sorted, ",")
}

// Record converts the combination into its stored form.
func (c Combination) Record(usedAt time.Time) CombinationRecord {
	sorted := make([]string, len(c.MediaIDs))
	copy(sorted, c.MediaIDs)
	sort.Strings(sorted)
	return CombinationRecord{
		TextVariantID: c.TextVariantID,
		MediaIDs:      sorted,
		Key:           c.Key(),
		UsedAt:        usedAt,
	}
}

// HasAccount reports whether accountID is assigned to the group.
func (g *GroupState) HasAccount(accountID string) bool {
	for _, id := range g.AssignedAccounts {
		if id == accountID {
			return true
		}
	}
	return false
}

// LastPostAt returns the most recent post time, or the zero time if the
// group has never been posted to. LastPostTimes is append-only and
// non-decreasing, so the last element is the maximum.
func (g *GroupState) LastPostAt() time.Time {
	if len(g.LastPostTimes) == 0 {
		return time.Time{}
	}
	return g.LastPostTimes[len(g.LastPostTimes)-1]
}

// PostsWithin counts posts inside the trailing window ending at now.
func (g *GroupState) PostsWithin(window time.Duration, now time.Time) int {
	cutoff := now.Add(-window)
	count := 0
	for _, t := range g.LastPostTimes {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// Admission is the outcome of a posting-limit check against a group.
type Admission struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Skip reasons surfaced in schedule warnings.
const (
	ReasonCooldown        = "cooldown"
	ReasonDailyLimit      = "daily limit reached"
	ReasonSpacing         = "cross-account spacing violated"
	ReasonRampUp          = "ramp-up restriction"
	ReasonNoUniqueContent = "no non-duplicate content available"
	ReasonConflict        = "concurrent claim conflict"
	ReasonNotAssigned     = "account not assigned to group"
)

// GroupSummary is the read-only aggregate exposed to operator dashboards.
type GroupSummary struct {
	TotalGroups        int             `json:"total_groups"`
	GroupsInCooldown   int             `json:"groups_in_cooldown"`
	GroupsAtDailyLimit int             `json:"groups_at_daily_limit"`
	AvgPostsPerGroup   float64         `json:"avg_posts_per_group"`
	CooldownGroups     []CooldownGroup `json:"cooldown_groups"`
}

type CooldownGroup struct {
	GroupID         string    `json:"group_id"`
	LastPostAt      time.Time `json:"last_post_at"`
	NextAvailableAt time.Time `json:"next_available_at"`
}
