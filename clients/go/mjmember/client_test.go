package mjmember

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMessages_SendsCredentialsAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q, want /messages", r.URL.Path)
		}
		if got := r.Header.Get("X-MJ-Member"); got != "7" {
			t.Errorf("X-MJ-Member = %q, want 7", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("unread") != "true" || q.Get("scope") != "all" || q.Get("status") != "nouveau" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{{"id": "m1", "target_type": "all", "status": "nouveau", "body": "hi", "read": true}},
			"count":    1,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 7, "secret")
	resp, err := c.Messages(ListOptions{Limit: 5, Status: "nouveau", UnreadOnly: true, All: true})
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if resp.Count != 1 || len(resp.Messages) != 1 || resp.Messages[0].ID != "m1" || !resp.Messages[0].Read {
		t.Errorf("Messages() = %+v", resp)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 1, "bad").UnreadCount()

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "invalid credentials" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestContact_AnonymousOmitsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/contact" {
			t.Errorf("%s %s, want POST /contact", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" || r.Header.Get("X-MJ-Member") != "" {
			t.Error("anonymous contact sent credentials")
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req ContactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.TargetType != TargetIndividual || req.TargetRef != 3 || req.Body != "Bonjour" {
			t.Errorf("request = %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"01HV","created_at":"2024-03-01T12:00:00Z"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, 0, "").Contact(ContactRequest{
		Body:       "Bonjour",
		TargetType: TargetIndividual,
		TargetRef:  3,
	})
	if err != nil {
		t.Fatalf("Contact() error = %v", err)
	}
	if resp.ID != "01HV" || resp.CreatedAt.IsZero() {
		t.Errorf("Contact() = %+v", resp)
	}
}

func TestMarkReadAndAssignPaths(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		w.Write([]byte(`{"id":"a b","status":"resolu","assigned_to":4}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2, "k")
	if err := c.MarkRead("m1"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	msg, err := c.Assign("m1", 4)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if msg.AssignedTo != 4 {
		t.Errorf("AssignedTo = %d, want 4", msg.AssignedTo)
	}
	if _, err := c.SetStatus("m1", "resolu"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	want := []string{"POST /messages/m1/read", "PUT /messages/m1/assign", "PUT /messages/m1/status"}
	if len(seen) != len(want) {
		t.Fatalf("requests = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, seen[i], want[i])
		}
	}
}
