/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the core playout data types.
package models

import (
	"strings"
	"time"
)

// SlotKind classifies a schedule segment by its display name sentinel.
type SlotKind string

const (
	SlotMain   SlotKind = "main"
	SlotFiller SlotKind = "filler"
	SlotMisc   SlotKind = "misc"
)

// ScheduleSegment is one scheduled broadcast slot. Segments are built once
// per channel-day by the schedule generator and are read-only to the engine.
type ScheduleSegment struct {
	StartTime       time.Time `json:"-"`
	StartTimeRaw    string    `json:"start_time"`
	SlotDurationSec float64   `json:"slot_duration_total"`
	ShowName        string    `json:"show_name"`
	Video           VideoRef  `json:"video_data"`
	FillerManifest  string    `json:"filler_xml_path"`
	ContentRoot     string    `json:"content_root"`
}

// VideoRef is the nested content descriptor inside a schedule record.
type VideoRef struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// EndTime returns the exclusive end of the segment's slot window.
func (s ScheduleSegment) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.SlotDurationSec * float64(time.Second)))
}

// SlotDuration returns the slot window as a time.Duration.
func (s ScheduleSegment) SlotDuration() time.Duration {
	return time.Duration(s.SlotDurationSec * float64(time.Second))
}

// Kind classifies the segment from its show name sentinel. Slots the
// generator could not fill carry "FILLER", "MISC" or "NO CONTENT" names and
// always catch up rather than drift.
func (s ScheduleSegment) Kind() SlotKind {
	switch strings.ToUpper(strings.TrimSpace(s.ShowName)) {
	case "FILLER":
		return SlotFiller
	case "MISC", "NO CONTENT":
		return SlotMisc
	default:
		return SlotMain
	}
}

// FillerItem is one candidate interstitial clip from a filler manifest.
type FillerItem struct {
	Path     string
	Duration float64
}

// IsRemote reports whether the item's path is a network source.
func (f FillerItem) IsRemote() bool {
	return IsRemotePath(f.Path)
}

// IsRemotePath reports whether a path uses a known remote scheme.
func IsRemotePath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "ftp://")
}

// ExitStatus tags the outcome of one playback attempt.
type ExitStatus string

const (
	// PlaybackCompleted means the player exited zero before the ceiling.
	PlaybackCompleted ExitStatus = "completed"
	// PlaybackTimedOut means the hard ceiling fired; the scheduled time was
	// consumed regardless of why.
	PlaybackTimedOut ExitStatus = "timed_out"
	// PlaybackFailed means the player exited non-zero or never launched.
	PlaybackFailed ExitStatus = "failed"
	// PlaybackSkipped means the requested offset lay beyond the content.
	PlaybackSkipped ExitStatus = "skipped"
)

// PlaybackResult is the outcome of one playback attempt. ActualRunSeconds is
// wall-clock (or simulated) time consumed: the ceiling value on timeout, the
// measured elapsed time otherwise.
type PlaybackResult struct {
	Status           ExitStatus
	ActualRunSeconds float64
	// Interrupted is set when an override fired mid-playback; the player was
	// killed and the engine must re-locate.
	Interrupted bool
}

// Consumed returns the run time as a duration.
func (r PlaybackResult) Consumed() time.Duration {
	return time.Duration(r.ActualRunSeconds * float64(time.Second))
}

// OverrideKind distinguishes the two viewer signal files.
type OverrideKind string

const (
	OverrideChannelSwitch OverrideKind = "channel_switch"
	OverridePlayNow       OverrideKind = "play_now"
)

// OverrideRequest is a consumed viewer signal: either the name of a channel
// to switch to or the path of a video to play immediately.
type OverrideRequest struct {
	Kind    OverrideKind
	Channel string
	Video   string
}
