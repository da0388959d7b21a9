package decision

import "github.com/prometheus/client_golang/prometheus"

var (
	rulesEvaluatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brain_rules_evaluated_total",
		Help: "Rules evaluated across all events.",
	})

	ruleDecodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brain_rule_decode_errors_total",
		Help: "Rules skipped because their conditions or actions could not be decoded.",
	})

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_decisions_total",
			Help: "Matched decisions by execution mode.",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(rulesEvaluatedTotal, ruleDecodeErrorsTotal, decisionsTotal)
}
