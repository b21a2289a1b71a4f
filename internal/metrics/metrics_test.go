package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"konan/internal/schedule"
	logx "konan/pkg/logx"
)

func TestObserveCountsOutcomes(t *testing.T) {
	t.Parallel()
	m := New()
	m.Observe("demo", schedule.Observation{Outcome: schedule.OutcomeFired, Name: "open_day", Took: 20 * time.Millisecond, Pending: 3})
	m.Observe("demo", schedule.Observation{Outcome: schedule.OutcomeFired, Name: "open_day", Pending: 2})
	m.Observe("demo", schedule.Observation{Outcome: schedule.OutcomeFailed, Name: "hedge_positions", Pending: 1, Err: errors.New("boom")})

	if got := testutil.ToFloat64(m.fired.WithLabelValues("demo", "open_day")); got != 2 {
		t.Fatalf("fired = %v", got)
	}
	if got := testutil.ToFloat64(m.failed.WithLabelValues("demo", "hedge_positions")); got != 1 {
		t.Fatalf("failed = %v", got)
	}
	if got := testutil.ToFloat64(m.pending.WithLabelValues("demo")); got != 1 {
		t.Fatalf("pending = %v", got)
	}
	if got := testutil.ToFloat64(m.sessions.WithLabelValues("demo", "failed")); got != 1 {
		t.Fatalf("sessions failed = %v", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Fatalf("duration series = %d", n)
	}
}

func TestObserveStopped(t *testing.T) {
	t.Parallel()
	m := New()
	m.Observe("demo", schedule.Observation{Outcome: schedule.OutcomeStopped, Pending: 0})
	m.Observe("demo", schedule.Observation{Outcome: schedule.OutcomeCancelled, Pending: 2})
	if got := testutil.ToFloat64(m.sessions.WithLabelValues("demo", "stopped")); got != 1 {
		t.Fatalf("stopped = %v", got)
	}
	if got := testutil.ToFloat64(m.pending.WithLabelValues("demo")); got != 2 {
		t.Fatalf("pending = %v", got)
	}
}

func TestHandlerExposesFamilies(t *testing.T) {
	t.Parallel()
	m := New()
	m.Observe("demo", schedule.Observation{Outcome: schedule.OutcomeFired, Name: "end_day"})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`konan_actions_fired_total{action="end_day",strategy="demo"} 1`,
		"konan_action_duration_seconds_bucket",
		"konan_schedule_pending",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in exposition", want)
		}
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()
	s := NewServer(New(), logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.Reconfigure(ctx, ServerConfig{Bind: "127.0.0.1:0"})
	var addr string
	for addr == "" && ctx.Err() == nil {
		addr = s.Addr()
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Fatalf("healthz = %d %q", resp.StatusCode, b)
	}

	s.Reconfigure(ctx, ServerConfig{})
	if s.Addr() != "" {
		t.Fatalf("addr after stop = %q", s.Addr())
	}
}
