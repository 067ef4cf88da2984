package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/mj-member/mjmember/internal/inbox"
	"github.com/mj-member/mjmember/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Limits bounds list sizes and the unread cache.
type Limits struct {
	DefaultLimit   int
	MaxLimit       int
	UnreadWindow   int
	UnreadCacheTTL time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:   20,
		MaxLimit:       100,
		UnreadWindow:   99,
		UnreadCacheTTL: 30 * time.Second,
	}
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store  store.DataStore
	redis  *store.RedisStore // optional
	inbox  *inbox.Aggregator
	logger zerolog.Logger
	limits Limits
}

// NewHandler creates a new Handler. redis may be nil.
func NewHandler(ds store.DataStore, redis *store.RedisStore, agg *inbox.Aggregator, logger zerolog.Logger, limits Limits) *Handler {
	return &Handler{
		store:  ds,
		redis:  redis,
		inbox:  agg,
		logger: logger,
		limits: limits,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// internalError logs err and sends a generic 500.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	h.logger.Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg(msg)
	h.Error(w, http.StatusInternalServerError, "database error")
}

// parseLimit reads the limit query parameter, clamped to the configured maximum.
func (h *Handler) parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.limits.DefaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, h.limits.MaxLimit), true
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = stripControl(strings.TrimSpace(name))

	// Limit to 100 characters
	if runes := []rune(name); len(runes) > 100 {
		name = string(runes[:100])
	}

	return name
}

// stripControl removes control characters.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if email == "" {
		return true // Empty is valid (optional field)
	}
	// Must be reasonable length and match RFC 5322 pattern
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	}
	return false
}
