/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout runs a channel's daily schedule: it locates the live
// segment, plays main content with jump-in and drift handling, packs the
// remaining slot time with filler breaks, and services file-based override
// requests between playbacks.
package playout

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/models"
	"github.com/friendsincode/grimnir_tv/internal/player"
)

// Player starts a single playback and blocks until it ends. The engine and
// the filler controller drive everything through this; tests substitute a
// fake, dry runs substitute the simulated driver path.
type Player interface {
	Play(ctx context.Context, req player.Request, interrupt player.InterruptFunc) models.PlaybackResult
	Terminate()
}

// OverridePoller is the cheap existence probe used at playback boundaries
// and inside the driver's watch loop. It never consumes the request.
type OverridePoller interface {
	Pending() bool
}

// OverrideSource consumes override requests and tracks the active channel.
type OverrideSource interface {
	OverridePoller
	CheckAndConsume() *models.OverrideRequest
	CurrentChannel() (string, bool)
	SetCurrentChannel(name string) error
}

// Recorder persists an as-run entry. Implementations must not block the
// playout loop on storage latency.
type Recorder interface {
	Record(ctx context.Context, entry models.AsRunEntry)
}

// ManifestLoader loads a filler manifest. Injected so engine tests do not
// touch the filesystem.
type ManifestLoader func(path string, logger zerolog.Logger) ([]models.FillerItem, error)
