package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"shipdeck/internal/config"
	"shipdeck/internal/history"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	hist, err := history.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	apps := map[string]*config.App{
		"web": {Name: "web", Project: "shop", Environment: "production"},
	}

	return NewServer(config.NewRegistry(apps), hist, slog.New(slog.NewTextHandler(io.Discard, nil)), true)
}

func recordRun(t *testing.T, s *Server, project, environment, service string, status history.Status) {
	t.Helper()
	ctx := context.Background()

	id, err := s.History.BeginRun(ctx, &history.Run{
		Kind:        history.KindDeploy,
		Project:     project,
		Environment: environment,
		Service:     service,
	})
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := s.History.CompleteRun(ctx, id, status, "dep-1", "", ""); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Status   string   `json:"status"`
		Apps     []string `json:"apps"`
		AppCount int      `json:"app_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.AppCount != 1 || len(body.Apps) != 1 || body.Apps[0] != "web" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)
	recordRun(t, s, "shop", "production", "web", history.StatusSucceeded)
	recordRun(t, s, "shop", "production", "worker", history.StatusFailed)

	rec := doRequest(t, s, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Count    int           `json:"count"`
		Services []history.Run `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, expected 2", body.Count)
	}
}

func TestHandleServiceHistory(t *testing.T) {
	s := newTestServer(t)
	recordRun(t, s, "shop", "production", "web", history.StatusFailed)
	recordRun(t, s, "shop", "production", "web", history.StatusSucceeded)

	rec := doRequest(t, s, http.MethodGet, "/api/history/shop/production/web")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Service    string        `json:"service"`
		LatestRun  *history.Run  `json:"latest_run"`
		RecentRuns []history.Run `json:"recent_runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.LatestRun == nil || body.LatestRun.Status != history.StatusSucceeded {
		t.Errorf("latest run = %+v", body.LatestRun)
	}
	if len(body.RecentRuns) != 2 {
		t.Errorf("got %d recent runs", len(body.RecentRuns))
	}
}

func TestHandleServiceHistory_Errors(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "unknown service", path: "/api/history/shop/production/ghost", wantCode: http.StatusNotFound},
		{name: "invalid name", path: "/api/history/shop/production/bad$name", wantCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, tc.path)
			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, expected %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	limiter := rl.GetLimiter("10.0.0.1")
	if !limiter.Allow() || !limiter.Allow() {
		t.Fatal("burst requests should be allowed")
	}
	if limiter.Allow() {
		t.Error("request past the burst should be rejected")
	}

	// A different IP gets its own bucket.
	if !rl.GetLimiter("10.0.0.2").Allow() {
		t.Error("separate IP should have its own limiter")
	}
}
