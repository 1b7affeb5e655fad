package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIMetrics instruments the question-answering API. Each server owns its own
// registry so tests never collide on global collectors.
type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal        *prometheus.CounterVec
	askRefusals     *prometheus.CounterVec
	askDegradations *prometheus.CounterVec
	askChunks       *prometheus.HistogramVec
	askCitations    *prometheus.HistogramVec
	askDuration     *prometheus.HistogramVec
	askConfidence   *prometheus.HistogramVec
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amn",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amn",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "amn",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amn",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total answered questions by confidence tier.",
		},
		[]string{"service", "tier"},
	)
	askRefusals := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amn",
			Subsystem: "ask",
			Name:      "refusals_total",
			Help:      "Total refused questions by reason.",
		},
		[]string{"service", "reason"},
	)
	askDegradations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amn",
			Subsystem: "ask",
			Name:      "degradations_total",
			Help:      "Total best-effort stages that fell back: expansion or rerank.",
		},
		[]string{"service", "stage"},
	)
	askChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amn",
			Subsystem: "ask",
			Name:      "retrieved_chunks",
			Help:      "Distribution of deduplicated chunks per question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	askCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amn",
			Subsystem: "ask",
			Name:      "citations",
			Help:      "Distribution of validated citations per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amn",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Question answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	askConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amn",
			Subsystem: "ask",
			Name:      "confidence_score",
			Help:      "Distribution of confidence scores per question.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askTotal,
		askRefusals,
		askDegradations,
		askChunks,
		askCitations,
		askDuration,
		askConfidence,
	)

	return &APIMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		askTotal:        askTotal,
		askRefusals:     askRefusals,
		askDegradations: askDegradations,
		askChunks:       askChunks,
		askCitations:    askCitations,
		askDuration:     askDuration,
		askConfidence:   askConfidence,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses resource IDs so label cardinality stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/subjects/") && strings.HasSuffix(path, "/ask"):
		return "/v1/subjects/{subject_id}/ask"
	case strings.HasPrefix(path, "/v1/subjects/") && strings.HasSuffix(path, "/notes"):
		return "/v1/subjects/{subject_id}/notes"
	case strings.HasPrefix(path, "/v1/subjects/") && strings.HasSuffix(path, "/coverage"):
		return "/v1/subjects/{subject_id}/coverage"
	case strings.HasPrefix(path, "/v1/subjects/"):
		return "/v1/subjects/{subject_id}"
	case strings.HasPrefix(path, "/v1/notes/"):
		return "/v1/notes/{note_id}"
	default:
		return path
	}
}

// RecordAsk tracks one completed question with its confidence outcome.
func (m *APIMetrics) RecordAsk(service, tier string, score float64, chunks, citations int, duration time.Duration) {
	m.askTotal.WithLabelValues(service, tier).Inc()
	m.askChunks.WithLabelValues(service).Observe(float64(chunks))
	m.askCitations.WithLabelValues(service).Observe(float64(citations))
	m.askDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.askConfidence.WithLabelValues(service).Observe(score)
}

// RecordRefusal tracks a refused question: "gate" for the confidence gate,
// "grounding" for the citation backstop.
func (m *APIMetrics) RecordRefusal(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.askRefusals.WithLabelValues(service, reason).Inc()
}

// RecordDegradation tracks a best-effort stage that fell back to its input:
// "expansion" or "rerank".
func (m *APIMetrics) RecordDegradation(service, stage string) {
	m.askDegradations.WithLabelValues(service, stage).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
