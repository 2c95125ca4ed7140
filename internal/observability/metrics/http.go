package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRequestsTotal      *prometheus.CounterVec
	ragRerankRequests     *prometheus.CounterVec
	ragRetrievalHitTotal  *prometheus.CounterVec
	ragNoContextTotal     *prometheus.CounterVec
	ragEvidenceChunks     *prometheus.HistogramVec
	ragDuration           *prometheus.HistogramVec
	corpusBuildsTotal     *prometheus.CounterVec
	corpusBuildDuration   *prometheus.HistogramVec
	corpusChunksGauge     *prometheus.GaugeVec
	generateFallbackTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total answered retrieval turns.",
		},
		[]string{"service", "endpoint"},
	)
	ragRerankRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "rag",
			Name:      "rerank_requests_total",
			Help:      "Total answered turns by rerank strategy.",
		},
		[]string{"service", "endpoint", "strategy"},
	)
	ragRetrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "rag",
			Name:      "retrieval_hit_total",
			Help:      "Total turns with at least one evidence chunk.",
		},
		[]string{"service", "endpoint"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total turns answered without evidence chunks.",
		},
		[]string{"service", "endpoint"},
	)
	ragEvidenceChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "rag",
			Name:      "evidence_chunks",
			Help:      "Distribution of evidence chunks per answered turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Retrieval pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	corpusBuildsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "corpus",
			Name:      "builds_total",
			Help:      "Total corpus builds by outcome.",
		},
		[]string{"service", "status"},
	)
	corpusBuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "corpus",
			Name:      "build_duration_seconds",
			Help:      "Corpus build duration in seconds, embedding included.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)
	corpusChunksGauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "copilot",
			Subsystem: "corpus",
			Name:      "chunks",
			Help:      "Chunk count of the currently served corpus.",
		},
		[]string{"service"},
	)
	generateFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "rag",
			Name:      "generation_fallback_total",
			Help:      "Total turns that returned the static fallback answer.",
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRequestsTotal,
		ragRerankRequests,
		ragRetrievalHitTotal,
		ragNoContextTotal,
		ragEvidenceChunks,
		ragDuration,
		corpusBuildsTotal,
		corpusBuildDuration,
		corpusChunksGauge,
		generateFallbackTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		ragRequestsTotal:      ragRequestsTotal,
		ragRerankRequests:     ragRerankRequests,
		ragRetrievalHitTotal:  ragRetrievalHitTotal,
		ragNoContextTotal:     ragNoContextTotal,
		ragEvidenceChunks:     ragEvidenceChunks,
		ragDuration:           ragDuration,
		corpusBuildsTotal:     corpusBuildsTotal,
		corpusBuildDuration:   corpusBuildDuration,
		corpusChunksGauge:     corpusChunksGauge,
		generateFallbackTotal: generateFallbackTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
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
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordTurn(service, endpoint, rerankStrategy string, evidenceCount int, duration time.Duration) {
	m.ragRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.ragEvidenceChunks.WithLabelValues(service, endpoint).Observe(float64(evidenceCount))
	m.ragDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if rerankStrategy == "" {
		rerankStrategy = "unknown"
	}
	m.ragRerankRequests.WithLabelValues(service, endpoint, rerankStrategy).Inc()

	if evidenceCount > 0 {
		m.ragRetrievalHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.ragNoContextTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordGenerationFallback(service, endpoint string) {
	m.generateFallbackTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordCorpusBuild(service string, chunks int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.corpusBuildsTotal.WithLabelValues(service, status).Inc()
	if err == nil {
		m.corpusBuildDuration.WithLabelValues(service).Observe(duration.Seconds())
		m.corpusChunksGauge.WithLabelValues(service).Set(float64(chunks))
	}
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
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
