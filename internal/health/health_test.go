package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

func healthy(context.Context) error { return nil }

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("store", NewSimpleChecker("store", healthy))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "v1.0.0" {
		t.Errorf("expected version v1.0.0, got %s", response.Version)
	}
	if len(response.Checks) != 1 {
		t.Errorf("expected 1 check, got %d", len(response.Checks))
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("store", NewSimpleChecker("store", func(context.Context) error {
		return errors.New("connection refused")
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
	if response.Checks["store"].Message != "connection refused" {
		t.Errorf("unexpected message %q", response.Checks["store"].Message)
	}
}

func TestLivenessHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	LivenessHandler(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("unexpected liveness response %d %q", w.Code, w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("store", NewSimpleChecker("store", healthy))
	handler.RegisterChecker("outbox", NewOutboxChecker(&stubOutbox{err: errors.New("stats failed")}, time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	handler.ReadinessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("degraded outbox must not fail readiness, got %d", w.Code)
	}
	if w.Body.String() != "ready" {
		t.Errorf("expected body 'ready', got %s", w.Body.String())
	}
	if names := handler.Names(); len(names) != 2 || names[0] != "outbox" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("store", NewSimpleChecker("store", func(context.Context) error {
		return errors.New("not ready")
	}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	handler.ReadinessHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	if w.Body.String() != "not ready" {
		t.Errorf("expected body 'not ready', got %s", w.Body.String())
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPingChecker(t *testing.T) {
	if check := NewPingChecker("redis", pinger{}).Check(context.Background()); check.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", check.Status)
	}
	check := NewPingChecker("redis", pinger{err: errors.New("timeout")}).Check(context.Background())
	if check.Status != StatusUnhealthy || check.Message != "timeout" || check.Name != "redis" {
		t.Errorf("unexpected check %+v", check)
	}
}

type stubOutbox struct {
	stats domain.OutboxStats
	err   error
}

func (s *stubOutbox) PullPending(context.Context, int) ([]domain.OutboxMessage, error) {
	return nil, nil
}

func (s *stubOutbox) Stats(context.Context) (domain.OutboxStats, error) {
	return s.stats, s.err
}

func (s *stubOutbox) MarkSent(context.Context, string) error   { return nil }
func (s *stubOutbox) MarkFailed(context.Context, string) error { return nil }

func TestOutboxChecker(t *testing.T) {
	now := time.Date(2030, 1, 2, 12, 0, 0, 0, time.UTC)

	fresh := NewOutboxChecker(&stubOutbox{stats: domain.OutboxStats{
		PendingCount:    3,
		OldestPendingAt: now.Add(-10 * time.Second),
	}}, time.Minute)
	fresh.now = func() time.Time { return now }
	if check := fresh.Check(context.Background()); check.Status != StatusHealthy {
		t.Errorf("expected healthy for fresh backlog, got %+v", check)
	}

	stale := NewOutboxChecker(&stubOutbox{stats: domain.OutboxStats{
		PendingCount:    3,
		OldestPendingAt: now.Add(-5 * time.Minute),
	}}, time.Minute)
	stale.now = func() time.Time { return now }
	check := stale.Check(context.Background())
	if check.Status != StatusDegraded {
		t.Errorf("expected degraded for stale backlog, got %+v", check)
	}
	if check.Message != "3 pending events, oldest 5m0s" {
		t.Errorf("unexpected message %q", check.Message)
	}
}
