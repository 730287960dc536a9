package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bsm/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCycle(t *testing.T) {
	t.Parallel()

	m := New()
	at := time.Unix(1_700_000_000, 0)
	m.ObserveCycle(CycleOK, 250*time.Millisecond, at)
	m.ObserveCycle(CycleFeedUnavailable, time.Second, at.Add(time.Minute))

	if got := testutil.ToFloat64(m.CyclesTotal.WithLabelValues(CycleOK)); got != 1 {
		t.Fatalf("expected 1 ok cycle, got %v", got)
	}
	if got := testutil.ToFloat64(m.CyclesTotal.WithLabelValues(CycleFeedUnavailable)); got != 1 {
		t.Fatalf("expected 1 failed cycle, got %v", got)
	}
	if got := testutil.ToFloat64(m.LastSuccessfulCycleS); got != float64(at.Unix()) {
		t.Fatalf("last successful cycle must not move on failures, got %v", got)
	}
	if got := testutil.CollectAndCount(m.CycleDuration); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestObserveNotificationAndCommand(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveNotification(domain.EventKindEntered, true)
	m.ObserveNotification(domain.EventKindEntered, true)
	m.ObserveNotification(domain.EventKindExited, false)
	m.ObserveCommand("setup", "ok")

	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("entered", "delivered")); got != 2 {
		t.Fatalf("expected 2 delivered entered, got %v", got)
	}
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("exited", "failed")); got != 1 {
		t.Fatalf("expected 1 failed exited, got %v", got)
	}
	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("setup", "ok")); got != 1 {
		t.Fatalf("expected 1 setup command, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.FeedServers.Set(42)
	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{"bsm_feed_servers 42", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
