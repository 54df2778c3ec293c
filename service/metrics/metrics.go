package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_sessions_open",
		Help: "Currently open WebSocket sessions on this gateway.",
	})

	EventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_events_dispatched_total",
		Help: "Per-recipient delivery attempts handled by the fan-out dispatcher.",
	})

	PushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_push_sent_total",
		Help: "Push submissions accepted by the provider.",
	})

	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_push_failures_total",
		Help: "Per-token push failures (stale tokens, timeouts).",
	})
)
