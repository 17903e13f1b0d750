/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/models"
	"github.com/friendsincode/grimnir_tv/internal/playclock"
	"github.com/friendsincode/grimnir_tv/internal/player"
	"github.com/friendsincode/grimnir_tv/internal/telemetry"
)

// minUsableWindowSec is the smallest remaining window worth attempting a
// clip in; below it the break ends rather than firing a doomed playback.
const minUsableWindowSec = 1.0

// FillerController fills a fixed time window with randomly chosen clips.
type FillerController struct {
	cfg       *config.Config
	player    Player
	clock     playclock.Clock
	overrides OverridePoller
	logger    zerolog.Logger
	rng       *rand.Rand
}

// NewFillerController creates a filler break controller.
func NewFillerController(cfg *config.Config, p Player, clock playclock.Clock, overrides OverridePoller, logger zerolog.Logger) *FillerController {
	return &FillerController{
		cfg:       cfg,
		player:    p,
		clock:     clock,
		overrides: overrides,
		logger:    logger.With().Str("component", "filler").Logger(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RunBreak plays clips from items until windowSec is filled or only an
// unusable sliver remains. Clips are chosen with replacement; an individual
// clip failure consumes a small penalty and the break continues. The break
// never exceeds the window. Returns whether an override interrupted the
// break and how much of the window was actually filled.
func (f *FillerController) RunBreak(ctx context.Context, channel string, items []models.FillerItem, windowSec float64, contentRoot string) (bool, float64) {
	if windowSec < minUsableWindowSec {
		f.logger.Warn().Float64("window_s", windowSec).Msg("break window too short, skipping")
		return false, 0
	}

	if len(items) == 0 {
		// No filler available is a handled state: hold the window open with
		// a plain wait so the schedule clock stays intact.
		f.logger.Warn().Float64("window_s", windowSec).Msg("empty filler manifest, waiting out the window")
		return f.waitOut(ctx, windowSec)
	}

	f.logger.Info().
		Float64("window_s", windowSec).
		Int("pool", len(items)).
		Msg("starting filler break")

	filled := 0.0
	for windowSec-filled >= minUsableWindowSec {
		if f.overrides != nil && f.overrides.Pending() {
			f.logger.Warn().Float64("filled_s", filled).Msg("filler break interrupted by override")
			return true, filled
		}

		clip := items[f.rng.Intn(len(items))]
		remaining := windowSec - filled
		maxRun := math.Min(clip.Duration, remaining)

		res := f.player.Play(ctx, player.Request{
			Path:            resolvePath(contentRoot, clip.Path),
			ContentDuration: clip.Duration,
			MaxRun:          maxRun,
			Label:           filepath.Base(clip.Path),
			Filler:          true,
		}, f.pendingFunc())

		if res.Interrupted {
			return true, filled + res.ActualRunSeconds
		}

		if res.Status == models.PlaybackFailed || res.Status == models.PlaybackSkipped {
			// Consume a fixed penalty so a bad clip cannot spin the loop.
			penalty := math.Min(f.cfg.FillerPenaltySec, remaining)
			f.logger.Error().
				Str("clip", clip.Path).
				Float64("penalty_s", penalty).
				Msg("filler clip failed, consuming penalty")
			if err := f.clock.Sleep(ctx, secs(penalty)); err != nil {
				return false, filled
			}
			filled += penalty
			continue
		}

		telemetry.FillerClipsTotal.WithLabelValues(channel).Inc()
		// Filler is charged its measured time: breaks must pack a variable
		// number of short clips precisely.
		filled += res.ActualRunSeconds
	}

	f.logger.Info().Float64("filled_s", filled).Msg("filler break complete")
	return false, filled
}

// waitOut sleeps through the window in override-poll increments.
func (f *FillerController) waitOut(ctx context.Context, windowSec float64) (bool, float64) {
	poll := f.cfg.OverridePollInterval.Seconds()
	if poll <= 0 {
		poll = 1.0
	}

	waited := 0.0
	for waited < windowSec {
		if f.overrides != nil && f.overrides.Pending() {
			return true, waited
		}
		step := math.Min(poll, windowSec-waited)
		if err := f.clock.Sleep(ctx, secs(step)); err != nil {
			return false, waited
		}
		waited += step
	}
	return false, waited
}

func (f *FillerController) pendingFunc() player.InterruptFunc {
	if f.overrides == nil {
		return nil
	}
	return f.overrides.Pending
}

// resolvePath joins a relative content path against the channel content
// root; remote and absolute paths pass through untouched.
func resolvePath(root, path string) string {
	if models.IsRemotePath(path) || filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
