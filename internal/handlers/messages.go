package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mj-member/mjmember/internal/api/middleware"
	"github.com/mj-member/mjmember/internal/inbox"
	"github.com/mj-member/mjmember/internal/metrics"
	"github.com/mj-member/mjmember/internal/models"
	"github.com/mj-member/mjmember/internal/store"
)

// MessageResponse is a message together with the viewer's read state.
type MessageResponse struct {
	models.Message
	Read bool `json:"read"`
}

// MessageListResponse represents the message list response.
type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
	Count    int               `json:"count"`
}

// UpdateStatusRequest represents the status update body.
type UpdateStatusRequest struct {
	Status models.Status `json:"status"`
}

// AssignRequest represents the assignment body. A zero member ID unassigns.
type AssignRequest struct {
	MemberID int64 `json:"member_id"`
}

// ListMessages returns the messages visible to the authenticated member,
// newest first. Moderators may pass scope=all to list every message.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMemberFromContext(r.Context())
	if member == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit, ok := h.parseLimit(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	q := r.URL.Query()
	status := models.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		h.Error(w, http.StatusBadRequest, "invalid status")
		return
	}
	unreadOnly := isTruthy(q.Get("unread"))

	var msgs []models.Message
	switch q.Get("scope") {
	case "", "inbox":
		msgs = h.inbox.Visible(r.Context(), inbox.Request{
			Viewer:     inbox.ViewerFromMember(member),
			Limit:      limit,
			Status:     status,
			UnreadOnly: unreadOnly,
		})
	case "all":
		if !member.CanModerate {
			h.Error(w, http.StatusForbidden, "moderator access required")
			return
		}
		f := store.MessageFilter{
			PerPage: limit,
			Page:    1,
			OrderBy: "created_at",
			Order:   "DESC",
			Status:  status,
		}
		if unreadOnly {
			f.ReaderID = member.ID
			f.Unread = &unreadOnly
		}
		var err error
		msgs, err = h.store.QueryMessages(r.Context(), f)
		if err != nil {
			h.internalError(w, r, err, "failed to list messages")
			return
		}
	default:
		h.Error(w, http.StatusBadRequest, "invalid scope")
		return
	}

	resp := MessageListResponse{
		Messages: h.withReadState(r, member.ID, msgs),
		Count:    len(msgs),
	}
	h.JSON(w, http.StatusOK, resp)
}

// GetMessage returns one message visible to the authenticated member.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	member, msg := h.loadVisibleMessage(w, r)
	if msg == nil {
		return
	}

	h.JSON(w, http.StatusOK, h.withReadState(r, member.ID, []models.Message{*msg})[0])
}

// MarkRead records that the authenticated member has read a message.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	member, msg := h.loadVisibleMessage(w, r)
	if msg == nil {
		return
	}

	if err := h.store.MarkRead(r.Context(), msg.ID, member.ID); err != nil {
		h.internalError(w, r, err, "failed to mark message read")
		return
	}
	metrics.MessagesMarkedRead.Inc()

	if h.redis != nil {
		if err := h.redis.InvalidateUnreadCount(r.Context(), member.ID); err != nil {
			h.logger.Warn().Err(err).Int64("member", member.ID).Msg("failed to invalidate unread count")
		}
	}

	h.JSON(w, http.StatusOK, MessageResponse{Message: *msg, Read: true})
}

// UpdateStatus changes a message's handling status. Moderators only.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !req.Status.Valid() {
		h.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := h.store.UpdateMessageStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "message not found")
			return
		}
		h.internalError(w, r, err, "failed to update status")
		return
	}

	h.respondWithMessage(w, r, id)
}

// AssignMessage assigns a message to a member. Moderators only.
func (h *Handler) AssignMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MemberID < 0 {
		h.Error(w, http.StatusBadRequest, "invalid member_id")
		return
	}
	if req.MemberID > 0 {
		assignee, err := h.store.GetMemberByID(r.Context(), req.MemberID)
		if err != nil {
			h.internalError(w, r, err, "failed to look up assignee")
			return
		}
		if assignee == nil {
			h.Error(w, http.StatusBadRequest, "assignee not found")
			return
		}
	}

	if err := h.store.AssignMessage(r.Context(), id, req.MemberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "message not found")
			return
		}
		h.internalError(w, r, err, "failed to assign message")
		return
	}

	h.respondWithMessage(w, r, id)
}

// loadVisibleMessage resolves the {id} URL parameter to a message the
// authenticated member may see. It writes the error response and returns a
// nil message otherwise. Invisible messages are reported as missing.
func (h *Handler) loadVisibleMessage(w http.ResponseWriter, r *http.Request) (*models.Member, *models.Message) {
	member := middleware.GetMemberFromContext(r.Context())
	if member == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return nil, nil
	}

	msg, err := h.store.GetMessage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.internalError(w, r, err, "failed to load message")
		return nil, nil
	}
	if msg == nil || !(member.CanModerate || inbox.ViewerFromMember(member).CanView(msg)) {
		h.Error(w, http.StatusNotFound, "message not found")
		return nil, nil
	}
	return member, msg
}

func (h *Handler) respondWithMessage(w http.ResponseWriter, r *http.Request, id string) {
	msg, err := h.store.GetMessage(r.Context(), id)
	if err != nil || msg == nil {
		h.internalError(w, r, err, "failed to reload message")
		return
	}
	h.JSON(w, http.StatusOK, msg)
}

// withReadState attaches the reader's read flag to each message. A lookup
// failure is logged and reports every message as unread.
func (h *Handler) withReadState(r *http.Request, readerID int64, msgs []models.Message) []MessageResponse {
	out := make([]MessageResponse, len(msgs))
	if len(msgs) == 0 {
		return out
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	read, err := h.store.ReadMessageIDs(r.Context(), readerID, ids)
	if err != nil {
		h.logger.Warn().Err(err).Int64("member", readerID).Msg("failed to load read markers")
	}

	for i, m := range msgs {
		out[i] = MessageResponse{Message: m, Read: read[m.ID]}
	}
	return out
}
