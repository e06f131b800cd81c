// Package metrics exposes prometheus collectors for the practice client.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/patrickJVGH/FluentFlow/internal/bus"
)

var (
	ScoringLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluentflow_scoring_latency_seconds",
			Help:    "Pronunciation scoring latency in seconds",
			Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"drill"},
	)

	Attempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluentflow_attempts_total",
			Help: "Scored attempts by drill and verdict",
		},
		[]string{"drill", "correct", "failed"},
	)

	SynthesisAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluentflow_tts_attempts_total",
			Help: "Speech synthesis attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	SynthesisLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "fluentflow_tts_latency_seconds",
			Help: "Speech synthesis latency in seconds",
		},
		[]string{"provider"},
	)

	Playbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluentflow_playbacks_total",
			Help: "Finished playback requests by status and source",
		},
		[]string{"status", "source"},
	)

	BatchLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluentflow_batch_loads_total",
			Help: "Item batches loaded by mode",
		},
		[]string{"mode"},
	)

	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluentflow_events_total",
			Help: "Bus events by type",
		},
		[]string{"type"},
	)

	AvatarClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fluentflow_avatar_clients",
			Help: "Connected avatar feed clients",
		},
	)

	RecordingsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fluentflow_recordings_purged_total",
			Help: "Recordings deleted by the cleanup job",
		},
	)
)

// ObserveScoring records one scored attempt.
func ObserveScoring(drill string, elapsed time.Duration, correct, failed bool) {
	ScoringLatency.WithLabelValues(drill).Observe(elapsed.Seconds())
	Attempts.WithLabelValues(drill, strconv.FormatBool(correct), strconv.FormatBool(failed)).Inc()
}

// ObserveSynthesis records one provider attempt.
func ObserveSynthesis(provider string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SynthesisAttempts.WithLabelValues(provider, result).Inc()
	SynthesisLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObservePlayback records a finished playback request.
func ObservePlayback(status, source string) {
	if source == "" {
		source = "none"
	}
	Playbacks.WithLabelValues(status, source).Inc()
}

// Subscribe counts every bus event and the batch loads it carries.
func Subscribe(b *bus.EventBus) {
	if b == nil {
		return
	}
	b.SubscribeAll(func(e bus.Event) {
		Events.WithLabelValues(string(e.Type)).Inc()
		if e.Type == bus.EventItemsLoaded {
			if mode, ok := e.Data["mode"].(string); ok {
				BatchLoads.WithLabelValues(mode).Inc()
			}
		}
	})
}
