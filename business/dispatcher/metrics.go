package dispatcher

import "github.com/prometheus/client_golang/prometheus"

var actionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "brain_actions_total",
		Help: "Dispatched actions by type and outcome.",
	},
	[]string{"type", "outcome"},
)

func init() {
	prometheus.MustRegister(actionsTotal)
}
