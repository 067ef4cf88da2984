package handlers

import (
	"net/http"

	"github.com/mj-member/mjmember/internal/api/middleware"
	"github.com/mj-member/mjmember/internal/inbox"
)

// MeResponse describes the authenticated member and what they receive.
type MeResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	CanModerate bool     `json:"can_moderate"`
	Targets     []string `json:"targets"`
}

// Me returns the authenticated member.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMemberFromContext(r.Context())
	if member == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	viewer := inbox.ViewerFromMember(member)
	targets := make([]string, 0)
	for _, t := range viewer.Targets() {
		targets = append(targets, t.String())
	}

	h.JSON(w, http.StatusOK, MeResponse{
		ID:          member.ID,
		Name:        member.Name,
		Email:       member.Email,
		Role:        member.Role,
		CanModerate: member.CanModerate,
		Targets:     targets,
	})
}
