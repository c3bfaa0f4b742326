package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Notification gateway requests by operation and final status code.",
	}, []string{"op", "code"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Time spent in a gateway call, retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

// observeRequest records one finished call. code is 0 when no response
// was received.
func observeRequest(op string, code int, err error, d time.Duration) {
	label := strconv.Itoa(code)
	if code == 0 && err != nil {
		label = "error"
	}
	requestsTotal.WithLabelValues(op, label).Inc()
	requestDuration.WithLabelValues(op).Observe(d.Seconds())
}
