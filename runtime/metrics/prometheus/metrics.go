// Package prometheus exposes speech runtime activity as Prometheus metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "speechd"

var (
	synthesisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of speech synthesis calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"provider"},
	)

	synthesisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_requests_total",
			Help:      "Total number of speech synthesis calls",
		},
		[]string{"provider", "status"}, // status: success, error
	)

	synthesisCharactersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_characters_total",
			Help:      "Total characters sent for synthesis",
		},
		[]string{"provider"},
	)

	synthesisAudioBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_audio_bytes_total",
			Help:      "Total bytes of synthesized audio",
		},
		[]string{"provider"},
	)

	ttsModeEnabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tts_mode_enabled",
			Help:      "1 when TTS mode is enabled",
		},
	)

	backlogSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backlog_sweep_duration_seconds",
			Help:      "Duration of backlog sweeps in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	backlogMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backlog_messages_total",
			Help:      "Messages handled by backlog sweeps",
		},
		[]string{"outcome"}, // outcome: processed, failed, skipped
	)

	playbackTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_transitions_total",
			Help:      "Playback session status transitions",
		},
		[]string{"status"},
	)

	playbackActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_active",
			Help:      "1 while a playback session exists",
		},
	)

	playbackFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_failures_total",
			Help:      "Total playback failures",
		},
	)

	recognitionSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recognition_sessions_active",
			Help:      "Number of recognition sessions in progress",
		},
	)

	recognitionResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_results_total",
			Help:      "Recognition results delivered",
		},
		[]string{"final"}, // final: true, false
	)

	recognitionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Recognition errors by code",
		},
		[]string{"code"},
	)

	bridgeClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_clients",
			Help:      "Number of pages connected to the bridge",
		},
	)

	allMetrics = []prometheus.Collector{
		synthesisDuration,
		synthesisRequestsTotal,
		synthesisCharactersTotal,
		synthesisAudioBytesTotal,
		ttsModeEnabled,
		backlogSweepDuration,
		backlogMessagesTotal,
		playbackTransitionsTotal,
		playbackActive,
		playbackFailuresTotal,
		recognitionSessionsActive,
		recognitionResultsTotal,
		recognitionErrorsTotal,
		bridgeClients,
	}
)

// RecordSynthesis records one synthesis call.
func RecordSynthesis(provider, status string, durationSeconds float64, audioBytes int) {
	synthesisDuration.WithLabelValues(provider).Observe(durationSeconds)
	synthesisRequestsTotal.WithLabelValues(provider, status).Inc()
	if audioBytes > 0 {
		synthesisAudioBytesTotal.WithLabelValues(provider).Add(float64(audioBytes))
	}
}

// RecordSynthesisCharacters records text sent for synthesis.
func RecordSynthesisCharacters(provider string, chars int) {
	if chars > 0 {
		synthesisCharactersTotal.WithLabelValues(provider).Add(float64(chars))
	}
}

// RecordMode records the TTS mode.
func RecordMode(enabled bool) {
	if enabled {
		ttsModeEnabled.Set(1)
		return
	}
	ttsModeEnabled.Set(0)
}

// RecordBacklogSweep records a finished backlog sweep.
func RecordBacklogSweep(processed, failed, skipped int, durationSeconds float64) {
	backlogSweepDuration.Observe(durationSeconds)
	backlogMessagesTotal.WithLabelValues("processed").Add(float64(processed))
	backlogMessagesTotal.WithLabelValues("failed").Add(float64(failed))
	backlogMessagesTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordPlaybackStatus records a playback transition.
func RecordPlaybackStatus(status string) {
	playbackTransitionsTotal.WithLabelValues(status).Inc()
	if status == "stopped" {
		playbackActive.Set(0)
		return
	}
	playbackActive.Set(1)
}

// RecordPlaybackFailure records a failed playback.
func RecordPlaybackFailure() {
	playbackFailuresTotal.Inc()
}

// RecordRecognitionResult records a delivered transcript.
func RecordRecognitionResult(final bool) {
	label := "false"
	if final {
		label = "true"
	}
	recognitionResultsTotal.WithLabelValues(label).Inc()
}

// RecordRecognitionError records a recognition error.
func RecordRecognitionError(code string) {
	recognitionErrorsTotal.WithLabelValues(code).Inc()
}

// RecordBridgeClients records the number of connected pages.
func RecordBridgeClients(n int) {
	bridgeClients.Set(float64(n))
}
