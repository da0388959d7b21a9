package brain

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_events_total",
			Help: "Events through the platform brain pipeline by result (processed, skipped, error).",
		},
		[]string{"result"},
	)

	pipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "brain_pipeline_duration_seconds",
		Help:    "Time spent in ProcessEvent.",
		Buckets: prometheus.DefBuckets,
	})

	queueDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_queue_dropped_total",
			Help: "Jobs dropped because a background queue was full or stopped.",
		},
		[]string{"queue"},
	)

	flagLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_flag_loads_total",
			Help: "Feature flag reloads by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, pipelineDuration, queueDroppedTotal, flagLoadsTotal)
}
