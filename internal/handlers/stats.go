package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// StatsResponse represents the moderation dashboard summary.
type StatsResponse struct {
	TotalMembers  int64            `json:"total_members"`
	TotalMessages int64            `json:"total_messages"`
	Unassigned    int64            `json:"unassigned"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByTargetType  map[string]int64 `json:"by_target_type"`
	LastActivity  string           `json:"last_activity"`
}

// Stats returns backlog statistics for moderators.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.MessageStats(r.Context())
	if err != nil {
		h.internalError(w, r, err, "failed to compute stats")
		return
	}

	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		byStatus[string(status)] = n
	}
	byTarget := make(map[string]int64, len(stats.ByTargetType))
	for t, n := range stats.ByTargetType {
		byTarget[string(t)] = n
	}

	lastActivity := "no activity yet"
	if !stats.LastMessageAt.IsZero() {
		lastActivity = formatTimeAgo(stats.LastMessageAt)
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalMembers:  stats.Members,
		TotalMessages: stats.Messages,
		Unassigned:    stats.Unassigned,
		ByStatus:      byStatus,
		ByTargetType:  byTarget,
		LastActivity:  lastActivity,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return strconv.Itoa(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return strconv.Itoa(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return strconv.Itoa(days) + " days ago"
	}
}
