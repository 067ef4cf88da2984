package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mj-member/mjmember/internal/models"
)

// dummyHash is compared against when the member does not exist, so unknown
// and known IDs cost the same.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mjmember-unknown-member"), bcrypt.DefaultCost)

// compareKey is replaced in tests.
var compareKey = bcrypt.CompareHashAndPassword

type contextKey string

const MemberContextKey contextKey = "member"

// MemberHeader carries the numeric member ID on authenticated requests.
const MemberHeader = "X-MJ-Member"

// MemberLookup loads members for authentication.
type MemberLookup interface {
	GetMemberByID(ctx context.Context, id int64) (*models.Member, error)
}

// AuthMiddleware verifies member API keys.
type AuthMiddleware struct {
	members MemberLookup
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(members MemberLookup) *AuthMiddleware {
	return &AuthMiddleware{members: members}
}

// RequireAuth rejects requests without a valid member ID and API key.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member, msg := m.authenticate(r)
		if member == nil {
			jsonError(w, http.StatusUnauthorized, msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), member)))
	})
}

// OptionalAuth attaches the member when valid credentials are present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(MemberHeader) == "" {
			next.ServeHTTP(w, r)
			return
		}
		if member, _ := m.authenticate(r); member != nil {
			r = r.WithContext(WithMember(r.Context(), member))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireModerator must run after RequireAuth.
func RequireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member := GetMemberFromContext(r.Context())
		if member == nil || !member.CanModerate {
			jsonError(w, http.StatusForbidden, "moderator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate returns the member, or nil and the reason for rejection.
func (m *AuthMiddleware) authenticate(r *http.Request) (*models.Member, string) {
	memberID := r.Header.Get(MemberHeader)
	key, hasBearer := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if memberID == "" || !hasBearer || key == "" {
		return nil, "missing auth headers"
	}

	id, err := strconv.ParseInt(memberID, 10, 64)
	if err != nil || id <= 0 {
		return nil, "invalid member ID format"
	}

	member, err := m.members.GetMemberByID(r.Context(), id)
	if err != nil || member == nil {
		compareKey(dummyHash, []byte(key))
		return nil, "invalid credentials"
	}

	if err := compareKey([]byte(member.APIKeyHash), []byte(key)); err != nil {
		return nil, "invalid credentials"
	}

	return member, ""
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetMemberFromContext retrieves the authenticated member from the request context.
func GetMemberFromContext(ctx context.Context) *models.Member {
	member, ok := ctx.Value(MemberContextKey).(*models.Member)
	if !ok {
		return nil
	}
	return member
}

// WithMember returns a copy of ctx carrying member.
func WithMember(ctx context.Context, member *models.Member) context.Context {
	return context.WithValue(ctx, MemberContextKey, member)
}
