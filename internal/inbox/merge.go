package inbox

import (
	"sort"

	"github.com/mj-member/mjmember/internal/models"
)

// MergeMessageSets flattens sets into one list without duplicate IDs, newest
// first, truncated to limit (limit <= 0 means unbounded). The first
// occurrence of an ID wins and equal timestamps keep first-seen order.
// Messages without an ID are skipped.
func MergeMessageSets(sets [][]models.Message, limit int) []models.Message {
	seen := make(map[string]bool)
	merged := make([]models.Message, 0)

	for _, set := range sets {
		for _, msg := range set {
			if msg.ID == "" || seen[msg.ID] {
				continue
			}
			seen[msg.ID] = true
			merged = append(merged, msg)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
