// Package metrics exposes Prometheus collectors for the HTTP layer and the
// budget alert pipeline.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var requestCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "requests_total",
		Help: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	},
	[]string{"code", "method", "url"},
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "request_duration_seconds",
		Help: "The HTTP request latencies in seconds.",
	},
	[]string{"code", "method", "url"},
)

// BudgetAlerts counts threshold crossings by event kind.
var BudgetAlerts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "budget_alerts_total",
		Help: "Budget threshold crossings detected, partitioned by kind.",
	},
	[]string{"kind"},
)

// NotificationsDispatched counts dispatch attempts by outcome.
var NotificationsDispatched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notification dispatch attempts, partitioned by result.",
	},
	[]string{"result"},
)

// SweepDuration observes how long a full budget alert sweep takes.
var SweepDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "budget_sweep_duration_seconds",
		Help:    "Duration of budget alert sweeps across all users.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	},
)

var collectors = []prometheus.Collector{
	requestCount,
	requestDuration,
	BudgetAlerts,
	NotificationsDispatched,
	SweepDuration,
}

// Register registers all collectors with the default registry. Collectors
// that are already registered are left in place.
func Register() error {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("could not register %v with Prometheus: %w", c, err)
		}
	}
	return nil
}

// Unregister removes all collectors from the default registry.
func Unregister() bool {
	ok := true
	for _, c := range collectors {
		if !prometheus.Unregister(c) {
			ok = false
		}
	}
	return ok
}

// Handler serves the default registry in the Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Middleware updates the request counters.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start).Seconds()

		// Replace URL parameters with their name to keep label cardinality low.
		url := c.Request.URL.Path
		for _, p := range c.Params {
			url = strings.Replace(url, p.Value, ":"+p.Key, 1)
		}

		requestDuration.WithLabelValues(status, c.Request.Method, url).Observe(elapsed)
		requestCount.WithLabelValues(status, c.Request.Method, url).Inc()
	}
}
