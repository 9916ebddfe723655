package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordChunkEnqueued(1)
	m.RecordChunkDropped("overflow")
	m.RecordPlaybackFailure()
	m.RecordStreamOpened()
	m.RecordStreamClosed(1)
	m.SetSessionState("idle")
	m.SetDeviceAttached(true)
	m.RecordHTTPRequest("GET", "/healthz", "200", 0.01)
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

func TestSessionStateIsExclusive(t *testing.T) {
	m := New()
	m.SetSessionState("connecting")
	m.SetSessionState("connected")

	for state, want := range map[string]float64{"idle": 0, "connecting": 0, "connected": 1} {
		if got := testutil.ToFloat64(m.SessionState.WithLabelValues(state)); got != want {
			t.Fatalf("state %s: want=%v got=%v", state, want, got)
		}
	}
}

func TestQueueCounters(t *testing.T) {
	m := New()
	m.RecordChunkEnqueued(1)
	m.RecordChunkEnqueued(2)
	m.RecordChunkPlayed(1)
	m.RecordChunkDropped("overflow")

	if got := testutil.ToFloat64(m.ChunksEnqueued); got != 2 {
		t.Fatalf("enqueued: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 1 {
		t.Fatalf("depth: want=1 got=%v", got)
	}
	if got := testutil.ToFloat64(m.ChunksDropped.WithLabelValues("overflow")); got != 1 {
		t.Fatalf("dropped: want=1 got=%v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RecordStreamOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bridge_inbound_streams_opened_total 1") {
		t.Fatalf("expected stream counter in output")
	}
}
