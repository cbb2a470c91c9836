package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_frames_processed_total",
		Help: "Frames run through the mode controller.",
	})
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "control_commands_total",
		Help: "Commands applied by the controller.",
	}, []string{"intent"})
	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "control_mode_transitions_total",
		Help: "Mode transitions by destination mode.",
	}, []string{"mode"})
	metricLocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_target_locks_total",
		Help: "Times the tracker locked onto a matched target.",
	})
	metricLosses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_target_losses_total",
		Help: "Times a locked target was lost past the grace limit.",
	})
	metricOutages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "control_collaborator_outages_total",
		Help: "Times a vision collaborator was declared down after repeated failures.",
	}, []string{"collaborator"})
)
