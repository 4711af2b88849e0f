package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Device-facing metrics. Labels stay low-cardinality: no channel or serial labels.

var (
	ISAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isapi_requests_total",
		Help: "Total ISAPI requests issued to the device",
	}, []string{"method", "status"}) // status: 2xx, 4xx, 5xx, error

	ISAPIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "isapi_request_duration_ms",
		Help:    "ISAPI request latency in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"method"})

	SnapshotAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isapi_snapshot_attempts_total",
		Help: "Snapshot fetch attempts by outcome",
	}, []string{"result"}) // "ok", "busy", "fallback", "fail"

	DeviceOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hikvision_device_online",
		Help: "1 when the last poll of the device succeeded",
	})

	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hikvision_polls_total",
		Help: "Secondary poller runs",
	}, []string{"target", "result"})
)
