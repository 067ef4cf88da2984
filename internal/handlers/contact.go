package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mj-member/mjmember/internal/api/middleware"
	"github.com/mj-member/mjmember/internal/metrics"
	"github.com/mj-member/mjmember/internal/models"
)

const (
	maxBodyLength    = 5000
	maxSubjectLength = 200
)

// ContactRequest represents the contact form body.
type ContactRequest struct {
	SenderName  string            `json:"sender_name"`
	SenderEmail string            `json:"sender_email"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	TargetType  models.TargetType `json:"target_type"`
	TargetRef   int64             `json:"target_ref"`
}

// ContactResponse represents the contact submission response.
type ContactResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact handles a contact form submission. Members sending valid
// credentials are recorded as the sender.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		h.Error(w, http.StatusBadRequest, "body is required")
		return
	}
	if len(body) > maxBodyLength {
		h.Error(w, http.StatusUnprocessableEntity, "body too long (max 5000 bytes)")
		return
	}

	subject := stripControl(strings.TrimSpace(req.Subject))
	if len(subject) > maxSubjectLength {
		h.Error(w, http.StatusUnprocessableEntity, "subject too long (max 200 bytes)")
		return
	}

	email := strings.TrimSpace(req.SenderEmail)
	if !isValidEmail(email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	if !req.TargetType.Valid() {
		h.Error(w, http.StatusBadRequest, "invalid target_type")
		return
	}
	if req.TargetRef < 0 {
		h.Error(w, http.StatusBadRequest, "target_ref must not be negative")
		return
	}
	if req.TargetType == models.TargetIndividual {
		if req.TargetRef == 0 {
			h.Error(w, http.StatusBadRequest, "target_ref is required for individual messages")
			return
		}
		recipient, err := h.store.GetMemberByID(r.Context(), req.TargetRef)
		if err != nil {
			h.internalError(w, r, err, "failed to look up recipient")
			return
		}
		if recipient == nil {
			h.Error(w, http.StatusNotFound, "recipient not found")
			return
		}
	}

	msg := &models.Message{
		SenderName:  sanitizeName(req.SenderName),
		SenderEmail: email,
		TargetType:  req.TargetType,
		TargetRef:   req.TargetRef,
		Subject:     subject,
		Body:        body,
	}
	if sender := middleware.GetMemberFromContext(r.Context()); sender != nil {
		msg.MemberID = sender.ID
		if msg.SenderName == "" {
			msg.SenderName = sender.Name
		}
		if msg.SenderEmail == "" {
			msg.SenderEmail = sender.Email
		}
	}

	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		h.internalError(w, r, err, "failed to store message")
		return
	}

	metrics.MessagesSubmitted.WithLabelValues(string(msg.TargetType)).Inc()

	if h.redis != nil {
		if err := h.redis.InvalidateAllUnreadCounts(r.Context()); err != nil {
			h.logger.Warn().Err(err).Msg("failed to invalidate unread counts")
		}
	}

	h.JSON(w, http.StatusCreated, ContactResponse{
		ID:        msg.ID,
		CreatedAt: msg.CreatedAt,
	})
}
