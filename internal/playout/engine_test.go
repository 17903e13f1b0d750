/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/models"
	"github.com/friendsincode/grimnir_tv/internal/playclock"
	"github.com/friendsincode/grimnir_tv/internal/player"
)

var fillerPool = []models.FillerItem{{Path: "bumper.mp4", Duration: 100}}

func TestRunDayOnTimeSlotEndsExactlyOnSchedule(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start)
	e, p, _ := testEngine(testCfg(), clock, fillerPool)

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1500, "Movie")},
	}
	result, _ := e.RunDay(context.Background(), plan)

	if result != DayFinished {
		t.Fatalf("result %v, want DayFinished", result)
	}
	if got := clock.Now(); !got.Equal(start.Add(1800 * time.Second)) {
		t.Fatalf("day ended at %v, want 10:30:00", got)
	}

	calls := p.requests()
	if len(calls) != 4 {
		t.Fatalf("got %d plays, want main + 3 filler: %+v", len(calls), calls)
	}
	main := calls[0]
	if main.StartOffset != 0 || main.MaxRun != 1500 || main.Filler {
		t.Fatalf("unexpected main request: %+v", main)
	}
	for _, c := range calls[1:] {
		if !c.Filler || c.MaxRun != 100 {
			t.Fatalf("unexpected filler request: %+v", c)
		}
	}
	if e.Snapshot().State != StateDone {
		t.Fatalf("final state %s, want done", e.Snapshot().State)
	}
}

func TestRunDayEmitsTraceSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start)
	e, _, _ := testEngine(testCfg(), clock, fillerPool)

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1500, "Movie")},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}

	names := map[string]int{}
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}
	if names["playout.day"] != 1 {
		t.Fatalf("spans %v, want one playout.day", names)
	}
	if names["playout.segment"] != 1 || names["playout.filler_break"] != 1 {
		t.Fatalf("spans %v, want a segment and a filler break span", names)
	}

	for _, span := range recorder.Ended() {
		if span.Name() != "playout.segment" {
			continue
		}
		var show, status string
		for _, kv := range span.Attributes() {
			switch kv.Key {
			case "show":
				show = kv.Value.AsString()
			case "status":
				status = kv.Value.AsString()
			}
		}
		if show != "Movie" || status != string(models.PlaybackCompleted) {
			t.Fatalf("segment span attributes show=%q status=%q", show, status)
		}
	}
}

func TestRunDayRecordsMainAndFillerInAsRunLog(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start)
	e, _, _ := testEngine(testCfg(), clock, fillerPool)
	rec := &fakeRecorder{}
	e.recorder = rec

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1500, "Movie")},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}

	entries := rec.recorded()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want main + filler break: %+v", len(entries), entries)
	}
	main := entries[0]
	if main.Filler || main.ShowName != "Movie" || main.RunSeconds != 1500 {
		t.Fatalf("unexpected main entry: %+v", main)
	}
	filler := entries[1]
	if !filler.Filler || filler.RunSeconds != 300 {
		t.Fatalf("unexpected filler entry: %+v", filler)
	}
	if !filler.AiredAt.Equal(start.Add(1500 * time.Second)) {
		t.Fatalf("filler break aired at %v, want 10:25:00", filler.AiredAt)
	}
	for _, entry := range entries {
		if entry.ID == "" || entry.RunID != e.RunID() {
			t.Fatalf("entry missing run identity: %+v", entry)
		}
	}
}

func TestRunDayLateStartJumpsIntoContent(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start.Add(300 * time.Second))
	e, p, _ := testEngine(testCfg(), clock, fillerPool)

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1500, "Movie")},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}

	main := p.requests()[0]
	if main.StartOffset != 300 {
		t.Fatalf("offset %v, want 300 (late %% duration)", main.StartOffset)
	}
	if main.MaxRun != 1200 {
		t.Fatalf("max run %v, want content minus offset", main.MaxRun)
	}
	if got := clock.Now(); !got.Equal(start.Add(1800 * time.Second)) {
		t.Fatalf("day ended at %v, want on-schedule end", got)
	}
}

func TestRunDayLatenessBeyondContentWrapsModulo(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start.Add(1700 * time.Second))
	e, p, _ := testEngine(testCfg(), clock, fillerPool)

	// Lateness 1700 into 1500s content: offset wraps to 200.
	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 3600, 1500, "Marathon")},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}

	if got := p.requests()[0].StartOffset; got != 200 {
		t.Fatalf("offset %v, want 200", got)
	}
}

func TestJumpInOffsetPolicy(t *testing.T) {
	e, _, _ := testEngine(testCfg(), playclock.NewSimulated(time.Now()), nil)
	main := mainSegment(time.Now(), 1800, 1500, "Movie")
	filler := mainSegment(time.Now(), 1800, 1500, "FILLER")

	if got := e.jumpInOffset(main, 300, true); got != 300 {
		t.Fatalf("first segment offset %v, want 300", got)
	}
	if got := e.jumpInOffset(main, 300, false); got != 0 {
		t.Fatalf("mid-day main offset %v, want 0 (drift)", got)
	}
	if got := e.jumpInOffset(filler, 300, false); got != 300 {
		t.Fatalf("non-main slots must catch up, offset %v, want 300", got)
	}
	if got := e.jumpInOffset(main, 0, true); got != 0 {
		t.Fatalf("on-time offset %v, want 0", got)
	}
}

func TestRunDayGapBetweenSlotsIsFilledAndClockSnapped(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	second := start.Add(720 * time.Second) // 120s gap after the first slot
	clock := playclock.NewSimulated(start)
	e, p, _ := testEngine(testCfg(), clock, fillerPool)

	plan := Plan{
		Channel: "retro",
		Segments: []models.ScheduleSegment{
			mainSegment(start, 600, 600, "First"),
			mainSegment(second, 600, 600, "Second"),
		},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}

	calls := p.requests()
	if len(calls) != 4 {
		t.Fatalf("got %d plays, want first + 2 gap clips + second: %+v", len(calls), calls)
	}
	if !calls[1].Filler || !calls[2].Filler {
		t.Fatal("gap must be covered with filler")
	}
	if calls[1].MaxRun != 100 || calls[2].MaxRun != 20 {
		t.Fatalf("gap clips %v/%v, want 100/20", calls[1].MaxRun, calls[2].MaxRun)
	}
	// The second show must start exactly on its slot, not 20ms or 2s off.
	if got := clock.Now(); !got.Equal(second.Add(600 * time.Second)) {
		t.Fatalf("day ended at %v, want second slot end", got)
	}
}

func TestRunDayTooLittleTimeGoesStraightToFiller(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start.Add(1796 * time.Second))
	e, p, _ := testEngine(testCfg(), clock, fillerPool)

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1500, "Movie")},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}

	for _, c := range p.requests() {
		if !c.Filler {
			t.Fatalf("window below minimum playback must not start the show: %+v", c)
		}
	}
}

func TestRunDayConsumePolicyActualBacksFillerWithMeasuredTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

	run := func(policy config.ConsumePolicy) (time.Time, []player.Request) {
		clock := playclock.NewSimulated(start)
		cfg := testCfg()
		cfg.MainConsumePolicy = policy
		e, p, _ := testEngine(cfg, clock, fillerPool)
		p.script = func(req player.Request) models.PlaybackResult {
			if req.Filler {
				return models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: req.MaxRun}
			}
			// Main show exits 300s early against its metadata.
			return models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: req.MaxRun - 300}
		}
		plan := Plan{
			Channel:  "retro",
			Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1500, "Movie")},
		}
		if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
			t.Fatal("expected DayFinished")
		}
		return clock.Now(), p.requests()
	}

	// Scheduled policy charges the full allotment: filler covers only the
	// planned 300s and the day ends 300s before the slot boundary.
	end, _ := run(config.ConsumeScheduled)
	if !end.Equal(start.Add(1500 * time.Second)) {
		t.Fatalf("scheduled policy ended at %v, want start+1500s", end)
	}

	// Actual policy trusts the measured time and fills to the boundary.
	end, _ = run(config.ConsumeActual)
	if !end.Equal(start.Add(1800 * time.Second)) {
		t.Fatalf("actual policy ended at %v, want slot end", end)
	}
}

func TestRunDayTimedOutConsumesScheduledTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start)
	e, p, _ := testEngine(testCfg(), clock, fillerPool)
	p.script = func(req player.Request) models.PlaybackResult {
		if req.Filler {
			return models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: req.MaxRun}
		}
		return models.PlaybackResult{Status: models.PlaybackTimedOut, ActualRunSeconds: req.MaxRun}
	}

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1500, "Hung Show")},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}
	if got := clock.Now(); !got.Equal(start.Add(1800 * time.Second)) {
		t.Fatalf("day ended at %v, want slot end", got)
	}
}

func TestRunDayFailedShowFallsBackToFiller(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start)
	e, p, _ := testEngine(testCfg(), clock, fillerPool)
	p.script = func(req player.Request) models.PlaybackResult {
		if req.Filler {
			return models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: req.MaxRun}
		}
		return models.PlaybackResult{Status: models.PlaybackFailed, ActualRunSeconds: 0}
	}

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 600, 500, "Broken")},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}

	calls := p.requests()
	if len(calls) < 2 {
		t.Fatalf("expected filler after failure, got %+v", calls)
	}
	var filled float64
	for _, c := range calls[1:] {
		if !c.Filler {
			t.Fatalf("expected only filler after failure: %+v", c)
		}
		filled += c.MaxRun
	}
	if filled != 600 {
		t.Fatalf("filler covered %v, want full slot", filled)
	}
}

func TestRunDayChannelSwitchOverride(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start)
	e, _, o := testEngine(testCfg(), clock, fillerPool)
	o.push(&models.OverrideRequest{Kind: models.OverrideChannelSwitch, Channel: "movies"})

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1500, "Movie")},
	}
	result, target := e.RunDay(context.Background(), plan)

	if result != DaySwitchChannel || target != "movies" {
		t.Fatalf("got (%v, %q), want switch to movies", result, target)
	}
	// Persisting the channel state is the runner's job, after it has
	// validated the target against the lineup.
	if name, ok := o.CurrentChannel(); ok {
		t.Fatalf("engine persisted channel state %q before validation", name)
	}
}

func TestRunDayPlayNowOverrideInterruptsAndRelocates(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	clock := playclock.NewSimulated(start)
	e, p, o := testEngine(testCfg(), clock, fillerPool)
	p.script = func(req player.Request) models.PlaybackResult {
		if req.Label == "override" {
			return models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: 60}
		}
		return models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: req.MaxRun}
	}
	o.push(&models.OverrideRequest{Kind: models.OverridePlayNow, Video: "/media/urgent.mp4"})

	plan := Plan{
		Channel:  "retro",
		Segments: []models.ScheduleSegment{mainSegment(start, 1800, 1800, "Movie")},
	}
	if result, _ := e.RunDay(context.Background(), plan); result != DayFinished {
		t.Fatal("expected DayFinished")
	}

	calls := p.requests()
	if len(calls) == 0 || calls[0].Label != "override" {
		t.Fatalf("override must play first, got %+v", calls)
	}
	if calls[0].Path != "/media/urgent.mp4" || calls[0].MaxRun != 7200 {
		t.Fatalf("unexpected override request: %+v", calls[0])
	}
	// After the override the engine relocates and resumes the schedule with
	// a jump-in for the 60 seconds now consumed.
	if len(calls) < 2 || calls[1].Filler || calls[1].StartOffset != 60 {
		t.Fatalf("expected resumed main with jump-in: %+v", calls)
	}
}
