/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/events"
	"github.com/friendsincode/grimnir_tv/internal/manifest"
	"github.com/friendsincode/grimnir_tv/internal/models"
	"github.com/friendsincode/grimnir_tv/internal/playclock"
	"github.com/friendsincode/grimnir_tv/internal/player"
	"github.com/friendsincode/grimnir_tv/internal/telemetry"
)

// State names the engine's position in the playout loop.
type State string

const (
	StateLocating         State = "locating"
	StateWaiting          State = "waiting"
	StatePlayingMain      State = "playing_main"
	StatePlayingFiller    State = "playing_filler"
	StateHandlingOverride State = "handling_override"
	StateAdvancing        State = "advancing"
	StateDone             State = "done"
)

// DayResult tells the outer run loop why a day's execution returned.
type DayResult int

const (
	// DayFinished means the last segment's end time passed.
	DayFinished DayResult = iota
	// DaySwitchChannel means a channel switch override fired; the caller
	// must reload the schedule for the new channel.
	DaySwitchChannel
	// DayAborted means the context was canceled.
	DayAborted
)

// Plan is one channel-day of schedule handed to the engine.
type Plan struct {
	Channel  string
	Date     time.Time
	Segments []models.ScheduleSegment
}

// Snapshot is the engine's externally visible state, served by the status
// API and refreshed on every transition.
type Snapshot struct {
	State        State     `json:"state"`
	Channel      string    `json:"channel"`
	ShowName     string    `json:"show_name,omitempty"`
	ContentPath  string    `json:"content_path,omitempty"`
	SegmentStart time.Time `json:"segment_start,omitempty"`
	SegmentEnd   time.Time `json:"segment_end,omitempty"`
	LateSeconds  float64   `json:"late_seconds"`
	RunID        string    `json:"run_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Engine executes a channel's daily schedule against the wall clock (or a
// simulated one), delegating playback to the driver and break packing to
// the filler controller.
type Engine struct {
	cfg          *config.Config
	player       Player
	filler       *FillerController
	overrides    OverrideSource
	clock        playclock.Clock
	bus          *events.Bus
	recorder     Recorder
	loadManifest ManifestLoader
	logger       zerolog.Logger
	tracer       oteltrace.Tracer
	runID        string

	mu       sync.RWMutex
	snap     Snapshot
	segments []models.ScheduleSegment
}

// NewEngine wires an engine for one process run. recorder may be nil when
// the as-run log is disabled.
func NewEngine(cfg *config.Config, p Player, overrides OverrideSource, clock playclock.Clock, bus *events.Bus, recorder Recorder, logger zerolog.Logger) *Engine {
	e := &Engine{
		cfg:          cfg,
		player:       p,
		overrides:    overrides,
		clock:        clock,
		bus:          bus,
		recorder:     recorder,
		loadManifest: manifest.Load,
		logger:       logger.With().Str("component", "engine").Logger(),
		tracer:       otel.Tracer("grimnir_tv/playout"),
		runID:        uuid.NewString(),
	}
	e.filler = NewFillerController(cfg, p, clock, overrides, logger)
	e.snap = Snapshot{State: StateLocating, RunID: e.runID}
	return e
}

// RunID identifies this process run in events and the as-run log.
func (e *Engine) RunID() string { return e.runID }

// Snapshot returns a copy of the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Segments returns the plan currently being executed.
func (e *Engine) Segments() []models.ScheduleSegment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.ScheduleSegment, len(e.segments))
	copy(out, e.segments)
	return out
}

// RunDay executes one channel-day. It returns when the schedule is
// exhausted, a channel switch override fires, or the context is canceled.
// The second return value is the switch target when the result is
// DaySwitchChannel.
func (e *Engine) RunDay(ctx context.Context, plan Plan) (DayResult, string) {
	e.mu.Lock()
	e.segments = append([]models.ScheduleSegment(nil), plan.Segments...)
	e.snap.Channel = plan.Channel
	e.mu.Unlock()

	ctx, daySpan := e.tracer.Start(ctx, "playout.day", oteltrace.WithAttributes(
		attribute.String("channel", plan.Channel),
		attribute.String("run_id", e.runID),
		attribute.Int("segments", len(plan.Segments)),
	))
	defer daySpan.End()

	e.logger.Info().
		Str("channel", plan.Channel).
		Int("segments", len(plan.Segments)).
		Time("now", e.clock.Now()).
		Msg("starting day")

	e.setState(StateLocating, nil, 0)
	idx := e.locate(plan.Segments)
	firstJoin := true

	for {
		if ctx.Err() != nil {
			return DayAborted, ""
		}

		if idx >= len(plan.Segments) {
			e.setState(StateDone, nil, 0)
			e.bus.Publish(events.EventDayComplete, events.Payload{
				"channel": plan.Channel,
				"run_id":  e.runID,
			})
			e.logger.Info().Str("channel", plan.Channel).Msg("schedule exhausted, day complete")
			return DayFinished, ""
		}

		// Overrides are serviced between playbacks; a request found here was
		// dropped while nothing (or filler) was airing.
		if req := e.overrides.CheckAndConsume(); req != nil {
			switched, target := e.handleOverride(ctx, plan, req)
			if ctx.Err() != nil {
				return DayAborted, ""
			}
			if switched {
				return DaySwitchChannel, target
			}
			e.setState(StateLocating, nil, 0)
			idx = e.locate(plan.Segments)
			firstJoin = true
			continue
		}

		seg := plan.Segments[idx]
		now := e.clock.Now()
		late := now.Sub(seg.StartTime).Seconds()
		telemetry.LatenessSeconds.WithLabelValues(plan.Channel).Set(late)

		e.logger.Info().
			Str("show", seg.ShowName).
			Time("slot_start", seg.StartTime).
			Time("now", now).
			Float64("late_s", late).
			Float64("slot_s", seg.SlotDurationSec).
			Msg("evaluating segment")

		if late < 0 {
			if !e.coverGap(ctx, plan, seg, -late, firstJoin) {
				continue // override pending, top of loop consumes it
			}
			if ctx.Err() != nil {
				return DayAborted, ""
			}
			// Snap rather than re-measure so sub-second sleep error never
			// accumulates into drift across slots.
			e.clock.SnapTo(seg.StartTime)
			late = 0
		}

		elapsed := math.Max(0, e.clock.Now().Sub(seg.StartTime).Seconds())
		available := seg.SlotDurationSec - elapsed
		if available < minUsableWindowSec {
			e.logger.Warn().
				Str("show", seg.ShowName).
				Float64("available_s", available).
				Msg("slot already over, advancing")
			idx++
			firstJoin = false
			continue
		}

		offset := e.jumpInOffset(seg, late, firstJoin)
		maxRun := available
		if seg.Video.Duration > 0 {
			maxRun = math.Min(seg.Video.Duration-offset, available)
		}

		if seg.Video.Path == "" || maxRun < e.cfg.MinPlaybackSec {
			// Nothing worth starting; the slot becomes one long break.
			e.setState(StatePlayingFiller, &seg, late)
			e.bus.Publish(events.EventFillerBreak, events.Payload{
				"channel":  plan.Channel,
				"show":     seg.ShowName,
				"window_s": available,
			})
			if interrupted, _ := e.runFiller(ctx, plan, seg, available); interrupted {
				continue
			}
			idx++
			firstJoin = false
			continue
		}

		res := e.playMain(ctx, plan, seg, offset, maxRun, late)
		if res.Interrupted {
			continue
		}

		consumed := res.ActualRunSeconds
		if res.Status == models.PlaybackCompleted &&
			seg.Kind() == models.SlotMain &&
			e.cfg.MainConsumePolicy == config.ConsumeScheduled {
			// Charge the scheduled allotment even on an early exit: content
			// metadata lies often enough that trusting the measured time here
			// would let one short file drag the whole evening forward.
			consumed = maxRun
		}

		remaining := available - consumed
		if remaining >= minUsableWindowSec {
			e.setState(StatePlayingFiller, &seg, late)
			e.bus.Publish(events.EventFillerBreak, events.Payload{
				"channel":  plan.Channel,
				"show":     seg.ShowName,
				"window_s": remaining,
			})
			if interrupted, _ := e.runFiller(ctx, plan, seg, remaining); interrupted {
				continue
			}
		}

		e.setState(StateAdvancing, &seg, late)
		idx++
		firstJoin = false
	}
}

// locate finds the first segment whose slot has not yet ended.
func (e *Engine) locate(segments []models.ScheduleSegment) int {
	now := e.clock.Now()
	for i, seg := range segments {
		if seg.EndTime().After(now) {
			e.logger.Info().
				Int("index", i).
				Str("show", seg.ShowName).
				Time("slot_start", seg.StartTime).
				Msg("located live segment")
			return i
		}
	}
	return len(segments)
}

// jumpInOffset computes the seek position for a late start. Only the first
// segment after a (re)start jumps into main content; later main slots start
// from zero and let the lateness ride. Slots without real programming
// always catch up.
func (e *Engine) jumpInOffset(seg models.ScheduleSegment, late float64, firstJoin bool) float64 {
	if late <= 0 || seg.Video.Duration <= 0 {
		return 0
	}
	if !firstJoin && seg.Kind() == models.SlotMain {
		e.logger.Info().
			Str("show", seg.ShowName).
			Float64("late_s", late).
			Msg("mid-day lateness, playing from start and drifting")
		return 0
	}
	offset := math.Mod(late, seg.Video.Duration)
	e.logger.Info().
		Str("show", seg.ShowName).
		Float64("late_s", late).
		Float64("content_s", seg.Video.Duration).
		Float64("offset_s", offset).
		Msg("jumping into content")
	return offset
}

// coverGap handles a segment that starts in the future. The very first
// matched segment is simply waited for; a gap between slots mid-day is
// covered with filler so the channel never goes dark. Returns false when an
// override interrupted the gap.
func (e *Engine) coverGap(ctx context.Context, plan Plan, seg models.ScheduleSegment, gapSec float64, firstJoin bool) bool {
	if firstJoin {
		e.setState(StateWaiting, &seg, -gapSec)
		e.logger.Info().
			Str("show", seg.ShowName).
			Float64("gap_s", gapSec).
			Msg("early for first segment, waiting")
		interrupted, _ := e.filler.waitOut(ctx, gapSec)
		return !interrupted
	}

	e.setState(StatePlayingFiller, &seg, -gapSec)
	e.logger.Info().
		Str("show", seg.ShowName).
		Float64("gap_s", gapSec).
		Msg("covering schedule gap with filler")
	interrupted, _ := e.runFiller(ctx, plan, seg, gapSec)
	return !interrupted
}

// runFiller loads the segment's manifest and runs a break of windowSec.
func (e *Engine) runFiller(ctx context.Context, plan Plan, seg models.ScheduleSegment, windowSec float64) (bool, float64) {
	ctx, span := e.tracer.Start(ctx, "playout.filler_break", oteltrace.WithAttributes(
		attribute.String("channel", plan.Channel),
		attribute.String("show", seg.ShowName),
		attribute.Float64("window_s", windowSec),
	))
	defer span.End()

	var items []models.FillerItem
	if seg.FillerManifest != "" {
		path := resolvePath(seg.ContentRoot, seg.FillerManifest)
		var err error
		items, err = e.loadManifest(path, e.logger)
		if err != nil {
			e.logger.Error().Err(err).Str("manifest", path).Msg("filler manifest unusable")
			items = nil
		}
	}
	airedAt := e.clock.Now()
	interrupted, filled := e.filler.RunBreak(ctx, plan.Channel, items, windowSec, seg.ContentRoot)
	span.SetAttributes(
		attribute.Float64("filled_s", filled),
		attribute.Bool("interrupted", interrupted),
	)
	if filled > 0 {
		e.record(ctx, models.AsRunEntry{
			Channel:     plan.Channel,
			ShowName:    seg.ShowName,
			ContentPath: seg.FillerManifest,
			SlotStart:   seg.StartTime,
			AiredAt:     airedAt,
			RunSeconds:  filled,
			Status:      models.PlaybackCompleted,
			Filler:      true,
		})
	}
	return interrupted, filled
}

// playMain runs the segment's primary content and records the attempt.
func (e *Engine) playMain(ctx context.Context, plan Plan, seg models.ScheduleSegment, offset, maxRun, late float64) models.PlaybackResult {
	ctx, span := e.tracer.Start(ctx, "playout.segment", oteltrace.WithAttributes(
		attribute.String("channel", plan.Channel),
		attribute.String("show", seg.ShowName),
		attribute.Float64("offset_s", offset),
		attribute.Float64("max_run_s", maxRun),
		attribute.Float64("late_s", late),
	))
	defer span.End()

	e.setState(StatePlayingMain, &seg, late)
	telemetry.SegmentsStartedTotal.WithLabelValues(plan.Channel).Inc()
	e.bus.Publish(events.EventNowAiring, events.Payload{
		"channel":  plan.Channel,
		"show":     seg.ShowName,
		"path":     seg.Video.Path,
		"offset_s": offset,
		"run_id":   e.runID,
	})
	e.bus.Publish(events.EventSlotStart, events.Payload{
		"channel": plan.Channel,
		"show":    seg.ShowName,
		"start":   seg.StartTime,
	})

	airedAt := e.clock.Now()
	res := e.player.Play(ctx, player.Request{
		Path:            resolvePath(seg.ContentRoot, seg.Video.Path),
		ContentDuration: seg.Video.Duration,
		StartOffset:     offset,
		MaxRun:          maxRun,
		Label:           seg.ShowName,
	}, e.overrides.Pending)

	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.Float64("run_s", res.ActualRunSeconds),
	)
	telemetry.PlaybackResultsTotal.WithLabelValues(plan.Channel, string(res.Status)).Inc()
	if res.Status == models.PlaybackTimedOut {
		telemetry.TimeoutsTotal.WithLabelValues(plan.Channel).Inc()
	}
	if res.Status == models.PlaybackFailed && !res.Interrupted {
		e.bus.Publish(events.EventPlaybackFailed, events.Payload{
			"channel": plan.Channel,
			"show":    seg.ShowName,
			"path":    seg.Video.Path,
		})
	}

	e.record(ctx, models.AsRunEntry{
		Channel:       plan.Channel,
		ShowName:      seg.ShowName,
		ContentPath:   seg.Video.Path,
		SlotStart:     seg.StartTime,
		AiredAt:       airedAt,
		OffsetSeconds: offset,
		RunSeconds:    res.ActualRunSeconds,
		LateSeconds:   late,
		Status:        res.Status,
	})

	e.bus.Publish(events.EventSlotEnd, events.Payload{
		"channel": plan.Channel,
		"show":    seg.ShowName,
		"status":  string(res.Status),
		"run_s":   res.ActualRunSeconds,
	})
	return res
}

// ServiceOverride handles an override consumed outside a running day, e.g.
// while idle between schedules. Returns (true, channel) for a switch.
func (e *Engine) ServiceOverride(ctx context.Context, channel string, req *models.OverrideRequest) (bool, string) {
	return e.handleOverride(ctx, Plan{Channel: channel}, req)
}

// handleOverride services a consumed override request, draining any that
// queue up behind it. Returns (true, channel) for a switch.
func (e *Engine) handleOverride(ctx context.Context, plan Plan, req *models.OverrideRequest) (bool, string) {
	for req != nil {
		switch req.Kind {
		case models.OverrideChannelSwitch:
			e.logger.Info().
				Str("from", plan.Channel).
				Str("to", req.Channel).
				Msg("channel switch requested")
			telemetry.OverridesTotal.WithLabelValues(string(req.Kind)).Inc()
			e.bus.Publish(events.EventChannelSwitch, events.Payload{
				"from": plan.Channel,
				"to":   req.Channel,
			})
			// The caller validates the target against the lineup and
			// persists the channel state; a bogus name must not survive
			// a restart.
			return true, req.Channel

		case models.OverridePlayNow:
			ctx, span := e.tracer.Start(ctx, "playout.override", oteltrace.WithAttributes(
				attribute.String("channel", plan.Channel),
				attribute.String("video", req.Video),
			))

			e.setState(StateHandlingOverride, nil, 0)
			e.logger.Info().Str("video", req.Video).Msg("play-now override")
			telemetry.OverridesTotal.WithLabelValues(string(req.Kind)).Inc()
			e.bus.Publish(events.EventOverridePlayNow, events.Payload{
				"channel": plan.Channel,
				"video":   req.Video,
			})

			airedAt := e.clock.Now()
			res := e.player.Play(ctx, player.Request{
				Path:   req.Video,
				MaxRun: e.cfg.OverrideCeilingSec,
				Label:  "override",
			}, e.overrides.Pending)

			e.record(ctx, models.AsRunEntry{
				Channel:     plan.Channel,
				ShowName:    "override",
				ContentPath: req.Video,
				AiredAt:     airedAt,
				RunSeconds:  res.ActualRunSeconds,
				Status:      res.Status,
			})
			span.SetAttributes(
				attribute.String("status", string(res.Status)),
				attribute.Float64("run_s", res.ActualRunSeconds),
			)
			span.End()
		}

		if ctx.Err() != nil {
			return false, ""
		}
		req = e.overrides.CheckAndConsume()
	}
	return false, ""
}

func (e *Engine) record(ctx context.Context, entry models.AsRunEntry) {
	if e.recorder == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.RunID = e.runID
	e.recorder.Record(ctx, entry)
}

func (e *Engine) setState(state State, seg *models.ScheduleSegment, late float64) {
	e.mu.Lock()
	e.snap.State = state
	e.snap.LateSeconds = late
	e.snap.UpdatedAt = e.clock.Now()
	if seg != nil {
		e.snap.ShowName = seg.ShowName
		e.snap.ContentPath = seg.Video.Path
		e.snap.SegmentStart = seg.StartTime
		e.snap.SegmentEnd = seg.EndTime()
	} else {
		e.snap.ShowName = ""
		e.snap.ContentPath = ""
		e.snap.SegmentStart = time.Time{}
		e.snap.SegmentEnd = time.Time{}
	}
	snap := e.snap
	e.mu.Unlock()

	e.bus.Publish(events.EventEngineState, events.Payload{
		"state":   string(snap.State),
		"channel": snap.Channel,
		"show":    snap.ShowName,
	})
}
