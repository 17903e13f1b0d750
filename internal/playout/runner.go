/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/playclock"
	"github.com/friendsincode/grimnir_tv/internal/schedule"
)

// Runner drives the engine across broadcast days: it resolves the active
// channel, loads each day's schedule with retry, and restarts the engine
// after channel switches and day rollovers.
type Runner struct {
	cfg       *config.Config
	store     *schedule.Store
	lineup    *config.Lineup
	engine    *Engine
	overrides OverrideSource
	clock     playclock.Clock
	logger    zerolog.Logger
}

// NewRunner assembles the outer playout loop.
func NewRunner(cfg *config.Config, store *schedule.Store, lineup *config.Lineup, engine *Engine, overrides OverrideSource, clock playclock.Clock, logger zerolog.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		store:     store,
		lineup:    lineup,
		engine:    engine,
		overrides: overrides,
		clock:     clock,
		logger:    logger.With().Str("component", "runner").Logger(),
	}
}

// Run executes until the context is canceled. With a simulated clock it
// runs a single day and returns; that is the dry-run mode.
func (r *Runner) Run(ctx context.Context) error {
	channel, err := r.startingChannel()
	if err != nil {
		return err
	}
	r.logger.Info().Str("channel", channel).Msg("playout starting")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		date := r.broadcastDate(r.clock.Now())
		segments, err := r.store.Load(channel, date)
		if err != nil {
			if r.clock.Simulated() {
				return fmt.Errorf("load schedule for %s: %w", channel, err)
			}
			if errors.Is(err, schedule.ErrScheduleNotFound) {
				r.logger.Warn().
					Str("channel", channel).
					Str("path", r.store.Path(channel, date)).
					Dur("retry_in", r.cfg.ScheduleRetryBackoff).
					Msg("schedule not available yet")
			} else {
				r.logger.Error().Err(err).Str("channel", channel).Msg("schedule unusable, retrying")
			}
			if err := r.clock.Sleep(ctx, r.cfg.ScheduleRetryBackoff); err != nil {
				return err
			}
			continue
		}

		result, target := r.engine.RunDay(ctx, Plan{Channel: channel, Date: date, Segments: segments})
		switch result {
		case DayAborted:
			return ctx.Err()

		case DaySwitchChannel:
			if _, ok := r.lineup.Find(target); !ok {
				r.logger.Error().Str("requested", target).Msg("switch to unknown channel ignored")
				continue
			}
			r.logger.Info().Str("from", channel).Str("to", target).Msg("switching channel")
			if err := r.overrides.SetCurrentChannel(target); err != nil {
				r.logger.Error().Err(err).Msg("failed to persist channel state")
			}
			channel = target

		case DayFinished:
			if r.clock.Simulated() {
				return nil
			}
			channel = r.idleUntilNextDay(ctx, channel, date)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// startingChannel restores the persisted channel or falls back to the
// first lineup entry.
func (r *Runner) startingChannel() (string, error) {
	if len(r.lineup.Channels) == 0 {
		return "", errors.New("channel lineup is empty")
	}

	if name, ok := r.overrides.CurrentChannel(); ok {
		if _, found := r.lineup.Find(name); found {
			return name, nil
		}
		r.logger.Warn().Str("channel", name).Msg("persisted channel not in lineup, using default")
	}

	name := r.lineup.Channels[0].Name
	if err := r.overrides.SetCurrentChannel(name); err != nil {
		r.logger.Error().Err(err).Msg("failed to persist channel state")
	}
	return name, nil
}

// idleUntilNextDay holds between broadcast days, still honoring override
// requests so a viewer can switch channels while the schedule is dark.
func (r *Runner) idleUntilNextDay(ctx context.Context, channel string, date time.Time) string {
	r.logger.Info().Str("channel", channel).Msg("day complete, waiting for next schedule")
	for r.broadcastDate(r.clock.Now()).Equal(date) {
		if req := r.overrides.CheckAndConsume(); req != nil {
			if switched, target := r.engine.ServiceOverride(ctx, channel, req); switched {
				if _, ok := r.lineup.Find(target); ok {
					if err := r.overrides.SetCurrentChannel(target); err != nil {
						r.logger.Error().Err(err).Msg("failed to persist channel state")
					}
					return target
				}
				r.logger.Error().Str("requested", target).Msg("switch to unknown channel ignored")
			}
		}
		if err := r.clock.Sleep(ctx, r.cfg.OverridePollInterval); err != nil {
			return channel
		}
	}
	return channel
}

// broadcastDate maps a wall-clock instant to its schedule date. Hours
// before the cutoff belong to the previous day so an overnight block keeps
// playing from yesterday's file.
func (r *Runner) broadcastDate(now time.Time) time.Time {
	if now.Hour() < r.cfg.DayCutoffHour {
		now = now.AddDate(0, 0, -1)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
