package handlers

import (
	"net/http"

	"github.com/mj-member/mjmember/internal/api/middleware"
	"github.com/mj-member/mjmember/internal/inbox"
	"github.com/mj-member/mjmember/internal/metrics"
	"github.com/mj-member/mjmember/internal/store"
)

// UnreadResponse represents the notification bell payload.
type UnreadResponse struct {
	Count  int  `json:"count"`
	Cached bool `json:"cached"`
}

// UnreadCount returns how many visible messages the member has not read.
// Counts are cached in Redis when it is configured.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMemberFromContext(r.Context())
	if member == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx := r.Context()
	var gen store.UnreadGeneration
	cacheable := false
	if h.redis != nil {
		g, count, hit, err := h.redis.CachedUnreadCount(ctx, member.ID)
		switch {
		case err != nil:
			metrics.UnreadCacheLookups.WithLabelValues("error").Inc()
			h.logger.Warn().Err(err).Int64("member", member.ID).Msg("unread cache lookup failed")
		case hit:
			metrics.UnreadCacheLookups.WithLabelValues("hit").Inc()
			h.JSON(w, http.StatusOK, UnreadResponse{Count: count, Cached: true})
			return
		default:
			metrics.UnreadCacheLookups.WithLabelValues("miss").Inc()
			gen, cacheable = g, true
		}
	}

	count := h.inbox.UnreadCount(ctx, inbox.ViewerFromMember(member), h.limits.UnreadWindow)

	// gen was read before counting, so a message or read marker that lands
	// meanwhile leaves this write under a stale key.
	if cacheable && h.limits.UnreadCacheTTL > 0 {
		if err := h.redis.CacheUnreadCount(ctx, gen, member.ID, count, h.limits.UnreadCacheTTL); err != nil {
			h.logger.Warn().Err(err).Int64("member", member.ID).Msg("failed to cache unread count")
		}
	}

	h.JSON(w, http.StatusOK, UnreadResponse{Count: count})
}
