package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attention_frames_submitted_total",
		Help: "Frames successfully processed by the vision service.",
	})
	framesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attention_frames_failed_total",
		Help: "Frame submissions that errored and were skipped.",
	})
	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attention_sessions_completed_total",
		Help: "Tracking sessions that persisted a result.",
	})
	lastScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attention_last_session_score",
		Help: "Attentiveness score of the most recently completed session.",
	})
)
