// Package metrics holds the process-wide prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stagehub_connected_sessions",
		Help: "Currently connected websocket sessions",
	})

	EventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stagehub_events_emitted_total",
		Help: "Outbound events fanned out to sessions",
	}, []string{"event"})

	CommandsHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stagehub_commands_total",
		Help: "Inbound commands by type and outcome",
	}, []string{"command", "status"})
)

func init() {
	prometheus.MustRegister(ConnectedSessions)
	prometheus.MustRegister(EventsEmitted)
	prometheus.MustRegister(CommandsHandled)
}
