package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors for the voice bridge. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Outbound path (device -> voice channel)
	ChunksEnqueued   prometheus.Counter
	ChunksDropped    *prometheus.CounterVec
	ChunksPlayed     prometheus.Counter
	PlaybackFailures prometheus.Counter
	QueueDepth       prometheus.Gauge

	// Inbound path (voice channel -> device)
	AudioForwarded prometheus.Counter
	AudioDiscarded *prometheus.CounterVec
	ActiveStreams  prometheus.Gauge
	StreamsOpened  prometheus.Counter
	StreamDuration prometheus.Histogram

	// Session
	SessionState   *prometheus.GaugeVec
	Joins          *prometheus.CounterVec
	DeviceAttached prometheus.Gauge

	// HTTP API
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var sessionStates = []string{"idle", "connecting", "connected"}

// New creates and registers all bridge metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChunksEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_outbound_chunks_enqueued_total",
			Help: "Device audio chunks accepted into the outbound queue",
		}),
		ChunksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_outbound_chunks_dropped_total",
			Help: "Device audio chunks dropped before playback",
		}, []string{"reason"}),
		ChunksPlayed: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_outbound_chunks_played_total",
			Help: "Device audio chunks handed to the voice player",
		}),
		PlaybackFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_outbound_playback_failures_total",
			Help: "Chunks that failed to transcode or play",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_outbound_queue_depth",
			Help: "Chunks waiting in the outbound queue",
		}),

		AudioForwarded: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_inbound_chunks_forwarded_total",
			Help: "Decoded speaker chunks sent to the attached device",
		}),
		AudioDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_inbound_chunks_discarded_total",
			Help: "Decoded speaker chunks that could not be delivered",
		}, []string{"reason"}),
		ActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_inbound_active_streams",
			Help: "Open per-speaker streams",
		}),
		StreamsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "bridge_inbound_streams_opened_total",
			Help: "Per-speaker streams opened",
		}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_inbound_stream_duration_seconds",
			Help:    "Lifetime of per-speaker streams",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),

		SessionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_session_state",
			Help: "1 for the current relay session state, 0 otherwise",
		}, []string{"state"}),
		Joins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_voice_joins_total",
			Help: "Voice channel join attempts by result",
		}, []string{"result"}),
		DeviceAttached: f.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_device_attached",
			Help: "1 while a remote device is attached",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// Registry exposes the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordChunkEnqueued(depth int) {
	if m == nil {
		return
	}
	m.ChunksEnqueued.Inc()
	m.QueueDepth.Set(float64(depth))
}

// RecordChunkDropped counts a chunk lost to overflow, a malformed payload or
// a session that was not connected.
func (m *Metrics) RecordChunkDropped(reason string) {
	if m == nil {
		return
	}
	m.ChunksDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordChunkPlayed(depth int) {
	if m == nil {
		return
	}
	m.ChunksPlayed.Inc()
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) RecordPlaybackFailure() {
	if m == nil {
		return
	}
	m.PlaybackFailures.Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) RecordAudioForwarded() {
	if m == nil {
		return
	}
	m.AudioForwarded.Inc()
}

func (m *Metrics) RecordAudioDiscarded(reason string) {
	if m == nil {
		return
	}
	m.AudioDiscarded.WithLabelValues(reason).Inc()
}

// RecordStreamOpened increments the stream counters.
func (m *Metrics) RecordStreamOpened() {
	if m == nil {
		return
	}
	m.StreamsOpened.Inc()
	m.ActiveStreams.Inc()
}

// RecordStreamClosed decrements active streams and records the lifetime.
func (m *Metrics) RecordStreamClosed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
	m.StreamDuration.Observe(durationSeconds)
}

// SetSessionState flips the state gauge so exactly one label reads 1.
func (m *Metrics) SetSessionState(state string) {
	if m == nil {
		return
	}
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) RecordJoin(result string) {
	if m == nil {
		return
	}
	m.Joins.WithLabelValues(result).Inc()
}

func (m *Metrics) SetDeviceAttached(attached bool) {
	if m == nil {
		return
	}
	if attached {
		m.DeviceAttached.Set(1)
	} else {
		m.DeviceAttached.Set(0)
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
