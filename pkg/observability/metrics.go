package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Login metrics
	LoginAttemptsTotal     *prometheus.CounterVec
	LoginDuration          *prometheus.HistogramVec
	RemoteRedirectsTotal   *prometheus.CounterVec
	RemoteCallbacksTotal   *prometheus.CounterVec
	MultipassIssuedTotal   prometheus.Counter
	MultipassErrorsTotal   prometheus.Counter
	ConfirmationEmailTotal *prometheus.CounterVec
	AttendanceTotal        *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipass_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multipass_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multipass_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multipass_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipass_login_attempts_total",
				Help: "Login requests by kind and terminal outcome",
			},
			[]string{"kind", "outcome"},
		),
		LoginDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multipass_login_duration_seconds",
				Help:    "Time spent dispatching a login request",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		RemoteRedirectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipass_remote_redirects_total",
				Help: "Redirects to remote identity providers",
			},
			[]string{"provider", "status"},
		),
		RemoteCallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipass_remote_callbacks_total",
				Help: "Callbacks returning from remote identity providers",
			},
			[]string{"provider", "status"},
		),
		MultipassIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "multipass_tokens_issued_total",
				Help: "Signed multipass tokens issued",
			},
		),
		MultipassErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "multipass_token_errors_total",
				Help: "Multipass issuance failures caused by configuration",
			},
		),
		ConfirmationEmailTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipass_confirmation_emails_total",
				Help: "Account confirmation emails sent",
			},
			[]string{"status"},
		),
		AttendanceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipass_attendance_records_total",
				Help: "Attendance records written on login",
			},
			[]string{"status"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "multipass_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "multipass_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "multipass_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.LoginAttemptsTotal,
		m.LoginDuration,
		m.RemoteRedirectsTotal,
		m.RemoteCallbacksTotal,
		m.MultipassIssuedTotal,
		m.MultipassErrorsTotal,
		m.ConfirmationEmailTotal,
		m.AttendanceTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// The recording helpers below accept a nil receiver so callers can run
// without metrics.

// ObserveLogin records one dispatched login request.
func (m *Metrics) ObserveLogin(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(kind, outcome).Inc()
	m.LoginDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveRemoteRedirect records a remote login start for provider.
func (m *Metrics) ObserveRemoteRedirect(provider string, err error) {
	if m == nil {
		return
	}
	m.RemoteRedirectsTotal.WithLabelValues(provider, statusLabel(err)).Inc()
}

// ObserveRemoteCallback records a completed or rejected provider callback.
func (m *Metrics) ObserveRemoteCallback(provider string, err error) {
	if m == nil {
		return
	}
	m.RemoteCallbacksTotal.WithLabelValues(provider, statusLabel(err)).Inc()
}

// ObserveMultipass records a multipass issuance attempt.
func (m *Metrics) ObserveMultipass(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.MultipassErrorsTotal.Inc()
		return
	}
	m.MultipassIssuedTotal.Inc()
}

// ObserveConfirmationEmail records a confirmation email delivery attempt.
func (m *Metrics) ObserveConfirmationEmail(err error) {
	if m == nil {
		return
	}
	m.ConfirmationEmailTotal.WithLabelValues(statusLabel(err)).Inc()
}

// ObserveAttendance records an attendance write attempt.
func (m *Metrics) ObserveAttendance(err error) {
	if m == nil {
		return
	}
	m.AttendanceTotal.WithLabelValues(statusLabel(err)).Inc()
}

// UpdateDBStats copies connection pool statistics into the gauges.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// pathLabel maps a request to its metric label; nil uses the URL path.
func HTTPMetricsMiddleware(metrics *Metrics, pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	if pathLabel == nil {
		pathLabel = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := pathLabel(r)
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
