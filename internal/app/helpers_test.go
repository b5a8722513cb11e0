package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backlog/api/internal/config"
	"backlog/api/internal/store"
)

// flakyBackend fails every Put while failPuts is set.
type flakyBackend struct {
	store.Backend
	failPuts bool
	puts     int
}

func (b *flakyBackend) Put(ctx context.Context, key string, value []byte) error {
	if b.failPuts {
		return errors.New("disk full")
	}
	b.puts++
	return b.Backend.Put(ctx, key, value)
}

type testClock struct {
	t time.Time
}

// now advances one second per call so stamped ids and default keys differ.
func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret: "test-secret",
		AccessTTL: time.Hour,
		DayWidth:  50,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *flakyBackend) {
	t.Helper()
	return newTestServiceWithConfig(t, testConfig())
}

// newTestServiceWithConfig opens a service on an in-memory backend with
// three users added to the seed project next to the admin.
func newTestServiceWithConfig(t *testing.T, cfg config.Config) (*Service, *flakyBackend) {
	t.Helper()
	backend := &flakyBackend{Backend: store.NewMemoryBackend()}
	clock := &testClock{t: time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)}
	gateway := store.NewGateway(backend, store.WithLogger(quietLogger()), store.WithClock(clock.now))

	svc, err := Open(context.Background(), cfg, gateway, WithLogger(quietLogger()), WithClock(clock.now))
	if err != nil {
		t.Fatalf("open service: %v", err)
	}

	ctx := context.Background()
	for _, m := range []MemberInput{
		{ID: "alice", Name: "Alice", Password: "alice-pw", Dept: "Development"},
		{ID: "bob", Name: "Bob", Password: "bob-pw", Dept: "Development"},
		{ID: "carol", Name: "Carol", Password: "carol-pw", Dept: "Sales"},
	} {
		if _, err := svc.AddMember(ctx, m); err != nil {
			t.Fatalf("add member %s: %v", m.ID, err)
		}
	}
	members := []string{"admin", "alice", "bob", "carol"}
	if _, err := svc.UpdateProject(ctx, legacyProjectID, ProjectPatch{Members: &members}); err != nil {
		t.Fatalf("seed project members: %v", err)
	}
	return svc, backend
}

func mustCreateIssue(t *testing.T, svc *Service, input IssueInput, actor string) store.Issue {
	t.Helper()
	if input.ProjectID == "" {
		input.ProjectID = legacyProjectID
	}
	issue, err := svc.CreateIssue(context.Background(), input, actor)
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	return issue
}

func notificationsOfType(svc *Service, userID, kind string) int {
	count := 0
	for _, n := range svc.Notifications(userID) {
		if n.Type == kind {
			count++
		}
	}
	return count
}

func strPtr(v string) *string {
	return &v
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	payload := map[string]any{}
	if rr.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("parse response %s %s: %v body=%s", method, path, err, rr.Body.String())
		}
	}
	return rr, payload
}

func login(t *testing.T, handler http.Handler, id, password string) string {
	t.Helper()
	rr, payload := doRequest(t, handler, http.MethodPost, "/api/session/login", "", map[string]any{"id": id, "password": password})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", id, rr.Code, rr.Body.String())
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("login %s: expected token", id)
	}
	return token
}
