package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"bountyline/internal/config"
	"bountyline/internal/db"
	"bountyline/internal/engine"
	"bountyline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("space-1")
	cfg.Roles = map[string]config.Role{
		"reviewers": {Members: []string{"rev-1"}},
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg, nil)
	if _, err := e.InitSpace(context.Background(), "space-1", "test", "tester"); err != nil {
		t.Fatalf("init space: %v", err)
	}
	if err := e.Repo.UpsertSpaceConfig(context.Background(), "space-1", cfg); err != nil {
		t.Fatalf("seed space config: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, actor string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthUnauthenticated(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(body))
	}
}

func TestMissingAuthRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/spaces", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(body))
	}
}

func TestRewardLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/spaces/space-1/rewards", map[string]any{
		"title":         "Ship the feature",
		"status":        "open",
		"chain_id":      1,
		"reward_token":  "USDC",
		"reward_amount": 250,
		"reviewers":     []map[string]string{{"group": "user", "id": "rev-1"}},
	}, "tester")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create reward status %d: %s", res.StatusCode, string(data))
	}
	var rw RewardResponse
	if err := json.Unmarshal(data, &rw); err != nil {
		t.Fatalf("unmarshal reward: %v", err)
	}
	if rw.Status != "open" {
		t.Fatalf("expected open reward, got %s", rw.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rewards/"+rw.ID+"/applications", map[string]any{
		"submission": "here is the work",
	}, "user-a")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create application status %d: %s", res.StatusCode, string(data))
	}
	var app ApplicationResponse
	if err := json.Unmarshal(data, &app); err != nil {
		t.Fatalf("unmarshal application: %v", err)
	}
	if app.Status != "inProgress" {
		t.Fatalf("expected inProgress, got %s", app.Status)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/applications/"+app.ID, map[string]any{
		"submission": "final version",
	}, "user-a")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update application status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &app)
	if app.Status != "review" {
		t.Fatalf("expected review after submission, got %s", app.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/applications/"+app.ID+"/review", map[string]any{
		"decision": "approve",
	}, "rev-1")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("review status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &app)
	if app.Status != "complete" {
		t.Fatalf("expected complete, got %s", app.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/rewards/"+rw.ID+"/workflow", nil, "tester")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("workflow status %d: %s", res.StatusCode, string(data))
	}
	var wf WorkflowResponse
	if err := json.Unmarshal(data, &wf); err != nil {
		t.Fatalf("unmarshal workflow: %v", err)
	}
	if wf.ID != "direct_submission" {
		t.Fatalf("expected direct_submission workflow, got %s", wf.ID)
	}
}

func TestReviewForbiddenForNonReviewer(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/spaces/space-1/rewards", map[string]any{
		"title":     "Guarded reward",
		"status":    "open",
		"reviewers": []map[string]string{{"group": "user", "id": "rev-1"}},
	}, "tester")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create reward status %d: %s", res.StatusCode, string(data))
	}
	var rw RewardResponse
	_ = json.Unmarshal(data, &rw)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rewards/"+rw.ID+"/applications", map[string]any{
		"submission": "work",
	}, "user-a")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create application status %d: %s", res.StatusCode, string(data))
	}
	var app ApplicationResponse
	_ = json.Unmarshal(data, &app)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/applications/"+app.ID+"/review", map[string]any{
		"decision": "approve",
	}, "not-a-reviewer")
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "forbidden" {
		t.Fatalf("expected forbidden code, got %q", envelope.Error.Code)
	}
}

func TestGetMissingReward(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/rewards/nope", nil, "tester")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found code, got %q", envelope.Error.Code)
	}
}

func TestCreateSpaceOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/spaces", map[string]any{
		"id":   "space-2",
		"name": "Second space",
	}, "tester")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create space status %d: %s", res.StatusCode, string(data))
	}
	var sp SpaceResponse
	if err := json.Unmarshal(data, &sp); err != nil {
		t.Fatalf("unmarshal space: %v", err)
	}
	if sp.ID != "space-2" || sp.Name != "Second space" {
		t.Fatalf("unexpected space: %+v", sp)
	}
}
