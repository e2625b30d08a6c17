package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fd1az/flashloan-arb/internal/logger"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := NewServer(0, "v1", logger.NewNop())
	s.RegisterCheck("redis", PingCheck(pinger{}))
	s.RegisterCheck("monitor", FreshnessCheck(time.Now, time.Minute))

	rec := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "ok" || st.Version != "v1" || !st.Checks["redis"].Healthy || !st.Checks["monitor"].Healthy {
		t.Errorf("status = %+v", st)
	}

	s.RegisterCheck("postgres", PingCheck(pinger{err: errors.New("connection refused")}))
	rec = get(t, s.Handler(), "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "degraded" || st.Checks["postgres"].Message != "connection refused" {
		t.Errorf("status = %+v", st)
	}

	if rec := get(t, s.Handler(), "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready code = %d", rec.Code)
	}
	if rec := get(t, s.Handler(), "/live"); rec.Code != http.StatusOK {
		t.Errorf("live code = %d", rec.Code)
	}
}

func TestFreshnessCheck(t *testing.T) {
	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"never ticked", time.Time{}, false},
		{"recent", time.Now().Add(-time.Second), true},
		{"stale", time.Now().Add(-time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := FreshnessCheck(func() time.Time { return tt.last }, time.Minute)(context.Background())
			if ok != tt.want {
				t.Errorf("healthy = %v (%s), want %v", ok, msg, tt.want)
			}
		})
	}
}
