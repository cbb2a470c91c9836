package speech

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_utterances_enqueued_total",
		Help: "Utterances accepted into the scheduler queue",
	}, []string{"priority"})

	metricDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_utterances_dropped_total",
		Help: "Utterances dropped before queueing",
	}, []string{"reason"})

	metricPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_utterances_played_total",
		Help: "Utterances fully synthesized and played",
	})

	metricInterrupted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_playbacks_interrupted_total",
		Help: "Normal playbacks cancelled by an interrupt utterance",
	})

	metricSynthesisFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_synthesis_failures_total",
		Help: "Synthesis attempts that failed across all providers",
	})
)
