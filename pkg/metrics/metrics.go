// Package metrics exposes client activity to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamesprial/go-reddit-session/pkg/types"
)

// Recorder receives client events. Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveRequest records a completed API request. status is 0 when no response was received.
	ObserveRequest(gateway, method string, status int, d time.Duration)
	// ObserveGrant records a grant exchange outcome.
	ObserveGrant(grant string, err error)
	// ObserveRateLimit records a new rate-limit snapshot.
	ObserveRateLimit(rl types.RateLimit)
}

// Nop discards every event.
type Nop struct{}

func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) ObserveGrant(string, error)                       {}
func (Nop) ObserveRateLimit(types.RateLimit)                 {}

// Prometheus records client events as Prometheus collectors.
type Prometheus struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	GrantsTotal        *prometheus.CounterVec
	RateLimitRemaining prometheus.Gauge
	RateLimitReset     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewPrometheus registers the client collectors on reg. A nil reg uses a fresh registry,
// which Handler then serves.
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Prometheus{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graw_api_requests_total",
				Help: "Total number of Reddit API requests (by gateway, method and status).",
			},
			[]string{"gateway", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graw_api_request_duration_seconds",
				Help:    "Duration of Reddit API requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms → ~10s
			},
			[]string{"gateway", "method"},
		),
		GrantsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graw_token_grants_total",
				Help: "Number of OAuth grant exchanges (by grant type and outcome).",
			},
			[]string{"grant", "outcome"},
		),
		RateLimitRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "graw_ratelimit_remaining",
			Help: "Requests remaining in the current window, as last reported by Reddit.",
		}),
		RateLimitReset: factory.NewGauge(prometheus.GaugeOpts{
			Name: "graw_ratelimit_reset_timestamp_seconds",
			Help: "Unix time at which the current rate-limit window resets.",
		}),
		gatherer: reg,
	}
}

func (p *Prometheus) ObserveRequest(gateway, method string, status int, d time.Duration) {
	p.RequestsTotal.WithLabelValues(gateway, method, strconv.Itoa(status)).Inc()
	p.RequestDuration.WithLabelValues(gateway, method).Observe(d.Seconds())
}

func (p *Prometheus) ObserveGrant(grant string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.GrantsTotal.WithLabelValues(grant, outcome).Inc()
}

func (p *Prometheus) ObserveRateLimit(rl types.RateLimit) {
	p.RateLimitRemaining.Set(float64(rl.Remaining))
	p.RateLimitReset.Set(float64(rl.Reset.Unix()))
}

// Handler serves the registry the collectors were registered on.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
