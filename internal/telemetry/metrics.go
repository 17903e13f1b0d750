/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SegmentsStartedTotal counts schedule segments the engine began.
	SegmentsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnirtv_segments_started_total",
		Help: "Schedule segments the engine began executing",
	}, []string{"channel"})

	// PlaybackResultsTotal counts playback attempts by outcome.
	PlaybackResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnirtv_playback_results_total",
		Help: "Playback attempts by exit status",
	}, []string{"channel", "status"})

	// FillerClipsTotal counts filler clips played during breaks.
	FillerClipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnirtv_filler_clips_total",
		Help: "Filler clips played during breaks",
	}, []string{"channel"})

	// OverridesTotal counts consumed viewer overrides by kind.
	OverridesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnirtv_overrides_total",
		Help: "Viewer override requests consumed",
	}, []string{"kind"})

	// LatenessSeconds records the computed lateness at each slot entry.
	LatenessSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grimnirtv_lateness_seconds",
		Help: "Lateness relative to the nominal slot start, negative when early",
	}, []string{"channel"})

	// TimeoutsTotal counts hard-ceiling terminations.
	TimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnirtv_timeouts_total",
		Help: "Playback attempts terminated at the schedule ceiling",
	}, []string{"channel"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
