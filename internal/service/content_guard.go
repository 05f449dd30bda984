package service

import (
	"time"

	"github.com/crmforge/groupposter/internal/models"
)

// ContentGuard prevents the same text plus media combination from landing in
// a group twice inside the retention window.
type ContentGuard struct {
	windowDays int
}

func NewContentGuard(windowDays int) *ContentGuard {
	return &ContentGuard{windowDays: windowDays}
}

func (g *ContentGuard) window(now time.Time) time.Time {
	return now.AddDate(0, 0, -g.windowDays)
}

// IsDuplicate reports whether the combination was already used in the group
// inside the retention window. Media order never matters; keys are canonical.
func (g *ContentGuard) IsDuplicate(state *models.GroupState, combo models.Combination, now time.Time) bool {
	key := combo.Key()
	cutoff := g.window(now)

	for _, rec := range state.RecentCombinations {
		if rec.UsedAt.After(cutoff) && rec.Key == key {
			return true
		}
	}
	return false
}

// SelectCombination walks the template's variants and media subsets in a
// deterministic order and returns the first combination the group has not
// seen inside the window. The second return is false when everything the
// template can produce is already used up.
func (g *ContentGuard) SelectCombination(state *models.GroupState, template *models.Template, now time.Time) (models.Combination, bool) {
	for _, variant := range template.TextVariants {
		for size := template.MinMedia; size <= template.MaxMedia; size++ {
			for _, media := range mediaSubsets(template.MediaBundleIDs, size) {
				combo := models.Combination{TextVariantID: variant.ID, MediaIDs: media}
				if !g.IsDuplicate(state, combo, now) {
					return combo, true
				}
			}
		}
	}
	return models.Combination{}, false
}

// Prune drops combination records that aged out of the retention window.
// Called on every claim so the stored list stays bounded.
func (g *ContentGuard) Prune(records []models.CombinationRecord, now time.Time) []models.CombinationRecord {
	cutoff := g.window(now)
	kept := make([]models.CombinationRecord, 0, len(records))
	for _, rec := range records {
		if rec.UsedAt.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	return kept
}

// mediaSubsets enumerates all size-k subsets of ids in lexicographic index
// order. Size zero yields the single empty subset for text-only posts.
func mediaSubsets(ids []string, size int) [][]string {
	if size == 0 {
		return [][]string{{}}
	}
	if size > len(ids) {
		return nil
	}

	var result [][]string
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}

	for {
		subset := make([]string, size)
		for i, idx := range indices {
			subset[i] = ids[idx]
		}
		result = append(result, subset)

		// Advance to the next combination
		i := size - 1
		for i >= 0 && indices[i] == len(ids)-size+i {
			i--
		}
		if i < 0 {
			break
		}
		indices[i]++
		for j := i + 1; j < size; j++ {
			indices[j] = indices[j-1] + 1
		}
	}

	return result
}
