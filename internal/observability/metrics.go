package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatkit_ws_active_connections",
			Help: "Number of open websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"kind", "event"},
	)
	wsReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_ws_reconnects_total",
			Help: "Total number of scheduled reconnect attempts.",
		},
		[]string{"kind"},
	)
	restRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_rest_requests_total",
			Help: "Total number of REST requests by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		wsActiveConnections,
		wsEventsTotal,
		wsReconnectsTotal,
		restRequestsTotal,
	)
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncWSReconnect(kind string) {
	wsReconnectsTotal.WithLabelValues(kind).Inc()
}

func IncRESTRequest(op, outcome string) {
	restRequestsTotal.WithLabelValues(op, outcome).Inc()
}
