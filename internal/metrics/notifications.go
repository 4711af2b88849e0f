package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hikvision_notifications_total",
		Help: "Inbound alert notifications by outcome",
	}, []string{"result"}) // "dispatched", "ignored", "invalid"

	PendingResets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hikvision_pending_resets",
		Help: "Detection entities waiting for auto-reset",
	})

	AutoResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hikvision_auto_resets_total",
		Help: "Auto-reset timer firings",
	}, []string{"result"}) // "reset", "noop"

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hikvision_events_published_total",
		Help: "Domain events handed to each bus",
	}, []string{"bus", "result"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hikvision_ws_clients",
		Help: "Connected event stream clients",
	})
)
