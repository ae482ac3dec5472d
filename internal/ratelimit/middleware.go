package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Really-Cool/mcpapi/internal/server"
)

// Middleware enforces a Limiter on HTTP requests.
type Middleware struct {
	limiter   Limiter
	identify  func(*http.Request) string
	logger    *zap.Logger
	decisions *prometheus.CounterVec
}

// NewMiddleware creates a Middleware. reg may be nil.
func NewMiddleware(limiter Limiter, logger *zap.Logger, reg prometheus.Registerer) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Middleware{
		limiter:  limiter,
		identify: Identify,
		logger:   logger,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpapi",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by outcome.",
		}, []string{"decision"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions)
	}
	return m
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// Wrap returns next guarded by the limiter. Backend failures let the request
// through.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.identify(r)
		d, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.decisions.WithLabelValues("error").Inc()
			m.logger.Warn("rate limit check failed, allowing request", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			m.decisions.WithLabelValues("rejected").Inc()
			h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryIn)))
			m.logger.Debug("rate limited", zap.String("key", key), zap.String("path", r.URL.Path))
			server.RateLimited(w, "too many requests, please retry later", r.URL.Path)
			return
		}

		m.decisions.WithLabelValues("allowed").Inc()
		next.ServeHTTP(w, r)
	})
}
