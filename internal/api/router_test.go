package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mj-member/mjmember/internal/models"
	"github.com/mj-member/mjmember/internal/store"
)

const testKey = "test-api-key"

type testEnv struct {
	t      *testing.T
	router http.Handler
	store  *store.SQLiteStore

	facilitator *models.Member
	coordinator *models.Member
	moderator   *models.Member
	member      *models.Member

	msgs map[string]models.Message
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRedis(t, nil)
}

func newTestEnvWithRedis(t *testing.T, redisStore *store.RedisStore) *testEnv {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte(testKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error = %v", err)
	}

	addMember := func(name, role string, moderator bool) *models.Member {
		m, err := s.CreateMember(ctx, &models.Member{
			Name:        name,
			Role:        role,
			CanModerate: moderator,
			APIKeyHash:  string(hash),
		})
		if err != nil {
			t.Fatalf("CreateMember(%s) error = %v", name, err)
		}
		return m
	}

	env := &testEnv{
		t:           t,
		store:       s,
		facilitator: addMember("Alex", "animateur", false),
		coordinator: addMember("Sam", "coordinateur", false),
		moderator:   addMember("Dom", "membre", true),
		member:      addMember("Lou", "membre", false),
		msgs:        make(map[string]models.Message),
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		name string
		typ  models.TargetType
		ref  int64
	}{
		{"to-facilitator", models.TargetIndividual, env.facilitator.ID},
		{"animateurs", models.TargetFacilitators, 0},
		{"coordinateurs", models.TargetCoordinators, 0},
		{"global", models.TargetAll, 0},
		{"to-member", models.TargetIndividual, env.member.ID},
	}
	for i, sd := range seed {
		msg := models.Message{
			TargetType: sd.typ,
			TargetRef:  sd.ref,
			Subject:    sd.name,
			Body:       "hello",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateMessage(ctx, &msg); err != nil {
			t.Fatalf("CreateMessage(%s) error = %v", sd.name, err)
		}
		env.msgs[sd.name] = msg
	}

	env.router = NewRouter(zerolog.Nop(), s, redisStore, Options{})
	return env
}

func (e *testEnv) do(method, path string, as *models.Member, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("X-MJ-Member", strconv.FormatInt(as.ID, 10))
		req.Header.Set("Authorization", "Bearer "+testKey)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type listResponse struct {
	Messages []struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
		Status  string `json:"status"`
		Read    bool   `json:"read"`
	} `json:"messages"`
	Count int `json:"count"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func subjects(resp listResponse) string {
	out := make([]string, len(resp.Messages))
	for i, m := range resp.Messages {
		out[i] = m.Subject
	}
	return strings.Join(out, ",")
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/messages", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("GET", "/messages", nil)
	req.Header.Set("X-MJ-Member", strconv.FormatInt(env.member.ID, 10))
	req.Header.Set("Authorization", "Bearer wrong-key")
	wrong := httptest.NewRecorder()
	env.router.ServeHTTP(wrong, req)
	if wrong.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", wrong.Code)
	}

	req = httptest.NewRequest("GET", "/messages", nil)
	req.Header.Set("X-MJ-Member", "abc")
	req.Header.Set("Authorization", "Bearer "+testKey)
	bad := httptest.NewRecorder()
	env.router.ServeHTTP(bad, req)
	if bad.Code != http.StatusUnauthorized {
		t.Errorf("bad member id: status = %d, want 401", bad.Code)
	}
}

func TestListMessages_Visibility(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		as   *models.Member
		want string
	}{
		{"facilitator", env.facilitator, "global,animateurs,to-facilitator"},
		{"coordinator", env.coordinator, "global,coordinateurs,animateurs"},
		{"moderator sees global", env.moderator, "global"},
		{"plain member", env.member, "to-member"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do("GET", "/messages", tt.as, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			resp := decode[listResponse](t, rec)
			if got := subjects(resp); got != tt.want {
				t.Errorf("subjects = %q, want %q", got, tt.want)
			}
			if resp.Count != len(resp.Messages) {
				t.Errorf("count = %d, want %d", resp.Count, len(resp.Messages))
			}
		})
	}
}

func TestListMessages_LimitAndValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/messages?limit=2", env.coordinator, nil)
	resp := decode[listResponse](t, rec)
	if got := subjects(resp); got != "global,coordinateurs" {
		t.Errorf("limit=2 subjects = %q", got)
	}

	for _, q := range []string{"limit=0", "limit=abc", "status=bogus", "scope=everything"} {
		if rec := env.do("GET", "/messages?"+q, env.coordinator, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestListMessages_ScopeAll(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do("GET", "/messages?scope=all", env.facilitator, nil); rec.Code != http.StatusForbidden {
		t.Errorf("facilitator scope=all: status = %d, want 403", rec.Code)
	}

	rec := env.do("GET", "/messages?scope=all", env.moderator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("moderator scope=all: status = %d", rec.Code)
	}
	if resp := decode[listResponse](t, rec); resp.Count != 5 {
		t.Errorf("moderator scope=all count = %d, want 5", resp.Count)
	}
}

func TestGetMessage_Visibility(t *testing.T) {
	env := newTestEnv(t)
	private := env.msgs["to-member"]

	if rec := env.do("GET", "/messages/"+private.ID, env.facilitator, nil); rec.Code != http.StatusNotFound {
		t.Errorf("facilitator reading another member's message: status = %d, want 404", rec.Code)
	}
	if rec := env.do("GET", "/messages/"+private.ID, env.member, nil); rec.Code != http.StatusOK {
		t.Errorf("recipient: status = %d, want 200", rec.Code)
	}
	if rec := env.do("GET", "/messages/"+private.ID, env.moderator, nil); rec.Code != http.StatusOK {
		t.Errorf("moderator: status = %d, want 200", rec.Code)
	}
	if rec := env.do("GET", "/messages/missing", env.moderator, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", rec.Code)
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	env := newTestEnv(t)

	unread := func() int {
		rec := env.do("GET", "/notifications/unread", env.facilitator, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("unread status = %d", rec.Code)
		}
		return decode[struct {
			Count int `json:"count"`
		}](t, rec).Count
	}

	if got := unread(); got != 3 {
		t.Fatalf("initial unread = %d, want 3", got)
	}

	target := env.msgs["animateurs"]
	rec := env.do("POST", "/messages/"+target.ID+"/read", env.facilitator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if got := unread(); got != 2 {
		t.Errorf("unread after mark = %d, want 2", got)
	}

	resp := decode[listResponse](t, env.do("GET", "/messages", env.facilitator, nil))
	for _, m := range resp.Messages {
		if want := m.ID == target.ID; m.Read != want {
			t.Errorf("message %s read = %v, want %v", m.Subject, m.Read, want)
		}
	}

	resp = decode[listResponse](t, env.do("GET", "/messages?unread=true", env.facilitator, nil))
	if got := subjects(resp); got != "global,to-facilitator" {
		t.Errorf("unread subjects = %q", got)
	}

	// Another viewer's marker is independent.
	resp = decode[listResponse](t, env.do("GET", "/messages?unread=1", env.coordinator, nil))
	if resp.Count != 3 {
		t.Errorf("coordinator unread count = %d, want 3", resp.Count)
	}

	private := env.msgs["to-member"]
	if rec := env.do("POST", "/messages/"+private.ID+"/read", env.facilitator, nil); rec.Code != http.StatusNotFound {
		t.Errorf("marking invisible message: status = %d, want 404", rec.Code)
	}
}

func TestModeration(t *testing.T) {
	env := newTestEnv(t)
	id := env.msgs["global"].ID

	if rec := env.do("PUT", "/messages/"+id+"/status", env.facilitator, map[string]string{"status": "resolu"}); rec.Code != http.StatusForbidden {
		t.Errorf("non-moderator status update: status = %d, want 403", rec.Code)
	}

	rec := env.do("PUT", "/messages/"+id+"/status", env.moderator, map[string]string{"status": "resolu"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status update: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[models.Message](t, rec); got.Status != models.StatusResolved {
		t.Errorf("status = %q, want resolu", got.Status)
	}

	if rec := env.do("PUT", "/messages/"+id+"/status", env.moderator, map[string]string{"status": "done"}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status: status = %d, want 400", rec.Code)
	}
	if rec := env.do("PUT", "/messages/missing/status", env.moderator, map[string]string{"status": "resolu"}); rec.Code != http.StatusNotFound {
		t.Errorf("missing message: status = %d, want 404", rec.Code)
	}

	rec = env.do("PUT", "/messages/"+id+"/assign", env.moderator, map[string]int64{"member_id": env.coordinator.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[models.Message](t, rec); got.AssignedTo != env.coordinator.ID {
		t.Errorf("assigned_to = %d, want %d", got.AssignedTo, env.coordinator.ID)
	}
	if rec := env.do("PUT", "/messages/"+id+"/assign", env.moderator, map[string]int64{"member_id": 9999}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown assignee: status = %d, want 400", rec.Code)
	}

	resp := decode[listResponse](t, env.do("GET", "/messages?status=resolu", env.facilitator, nil))
	if got := subjects(resp); got != "global" {
		t.Errorf("status=resolu subjects = %q, want global", got)
	}
}

func TestContact(t *testing.T) {
	env := newTestEnv(t)

	valid := map[string]any{
		"sender_name":  "Parent",
		"sender_email": "parent@example.org",
		"subject":      "Inscription",
		"body":         "Bonjour",
		"target_type":  "animateurs",
	}

	rec := env.do("POST", "/contact", nil, valid)
	if rec.Code != http.StatusCreated {
		t.Fatalf("anonymous contact: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		ID string `json:"id"`
	}](t, rec)

	msg, err := env.store.GetMessage(context.Background(), created.ID)
	if err != nil || msg == nil {
		t.Fatalf("GetMessage(%s) = %v, %v", created.ID, msg, err)
	}
	if msg.MemberID != 0 || msg.Status != models.StatusNew {
		t.Errorf("stored message = %+v", msg)
	}

	rec = env.do("POST", "/contact", env.member, map[string]any{
		"body":        "Question",
		"target_type": "individual",
		"target_ref":  env.coordinator.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("member contact: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created = decode[struct {
		ID string `json:"id"`
	}](t, rec)
	msg, _ = env.store.GetMessage(context.Background(), created.ID)
	if msg.MemberID != env.member.ID || msg.SenderName != "Lou" {
		t.Errorf("member message sender = %d/%q, want %d/Lou", msg.MemberID, msg.SenderName, env.member.ID)
	}

	invalid := []struct {
		name   string
		mutate func(map[string]any)
		want   int
	}{
		{"missing body", func(m map[string]any) { m["body"] = "  " }, http.StatusBadRequest},
		{"long body", func(m map[string]any) { m["body"] = strings.Repeat("a", 5001) }, http.StatusUnprocessableEntity},
		{"long subject", func(m map[string]any) { m["subject"] = strings.Repeat("s", 201) }, http.StatusUnprocessableEntity},
		{"bad email", func(m map[string]any) { m["sender_email"] = "not-an-email" }, http.StatusBadRequest},
		{"bad target", func(m map[string]any) { m["target_type"] = "everyone" }, http.StatusBadRequest},
		{"individual without ref", func(m map[string]any) { m["target_type"] = "individual" }, http.StatusBadRequest},
		{"unknown recipient", func(m map[string]any) {
			m["target_type"] = "individual"
			m["target_ref"] = 9999
		}, http.StatusNotFound},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			body := make(map[string]any, len(valid))
			for k, v := range valid {
				body[k] = v
			}
			tt.mutate(body)
			if rec := env.do("POST", "/contact", nil, body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMeAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/me", env.coordinator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/me status = %d", rec.Code)
	}
	me := decode[struct {
		ID      int64    `json:"id"`
		Targets []string `json:"targets"`
	}](t, rec)
	if me.ID != env.coordinator.ID || len(me.Targets) != 6 {
		t.Errorf("/me = %+v", me)
	}

	rec = env.do("GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := env.do("GET", "/api", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("/api status = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do("GET", "/stats", env.coordinator, nil); rec.Code != http.StatusForbidden {
		t.Errorf("non-moderator: status = %d, want 403", rec.Code)
	}

	rec := env.do("GET", "/stats", env.moderator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	stats := decode[struct {
		TotalMembers  int64            `json:"total_members"`
		TotalMessages int64            `json:"total_messages"`
		Unassigned    int64            `json:"unassigned"`
		ByTargetType  map[string]int64 `json:"by_target_type"`
		ByStatus      map[string]int64 `json:"by_status"`
		LastActivity  string           `json:"last_activity"`
	}](t, rec)

	if stats.TotalMembers != 4 || stats.TotalMessages != 5 || stats.Unassigned != 5 {
		t.Errorf("totals = %+v", stats)
	}
	if stats.ByTargetType["individual"] != 2 || stats.ByStatus["nouveau"] != 5 {
		t.Errorf("breakdown = %+v", stats)
	}
	if stats.LastActivity == "no activity yet" {
		t.Error("last activity not reported")
	}
}

func TestUnreadCount_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	env := newTestEnvWithRedis(t, store.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	type unread struct {
		Count  int  `json:"count"`
		Cached bool `json:"cached"`
	}
	poll := func() unread {
		t.Helper()
		rec := env.do("GET", "/notifications/unread", env.facilitator, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("unread status = %d, body = %s", rec.Code, rec.Body.String())
		}
		return decode[unread](t, rec)
	}

	if got := poll(); got.Count != 3 || got.Cached {
		t.Fatalf("first poll = %+v, want fresh count 3", got)
	}
	if got := poll(); got.Count != 3 || !got.Cached {
		t.Fatalf("second poll = %+v, want cached count 3", got)
	}

	rec := env.do("POST", "/contact", nil, map[string]any{
		"body":        "Sortie du samedi",
		"target_type": "animateurs",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("contact status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := poll(); got.Count != 4 || got.Cached {
		t.Errorf("poll after new message = %+v, want fresh count 4", got)
	}
	if got := poll(); got.Count != 4 || !got.Cached {
		t.Errorf("poll after recount = %+v, want cached count 4", got)
	}

	rec = env.do("POST", "/messages/"+env.msgs["global"].ID+"/read", env.facilitator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read status = %d", rec.Code)
	}
	if got := poll(); got.Count != 3 || got.Cached {
		t.Errorf("poll after mark read = %+v, want fresh count 3", got)
	}

	rec = env.do("GET", "/health", nil, nil)
	if !strings.Contains(rec.Body.String(), `"redis":{"status":"pass"`) {
		t.Errorf("health did not report redis: %s", rec.Body.String())
	}
}
