package userstate

import "github.com/prometheus/client_golang/prometheus"

var (
	stateCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_state_cache_total",
			Help: "User state signal cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	stateSignalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_state_signal_errors_total",
			Help: "User state signals that fell back to defaults because history was unavailable.",
		},
		[]string{"signal"},
	)
)

func init() {
	prometheus.MustRegister(stateCacheTotal, stateSignalErrorsTotal)
}
