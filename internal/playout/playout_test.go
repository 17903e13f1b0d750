/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/events"
	"github.com/friendsincode/grimnir_tv/internal/models"
	"github.com/friendsincode/grimnir_tv/internal/playclock"
	"github.com/friendsincode/grimnir_tv/internal/player"
)

// fakePlayer advances the simulated clock the way the real driver does in
// dry-run mode. A script hook lets individual tests fail or shorten plays.
type fakePlayer struct {
	clock  *playclock.Simulated
	script func(req player.Request) models.PlaybackResult

	mu    sync.Mutex
	calls []player.Request
}

func (f *fakePlayer) Play(_ context.Context, req player.Request, interrupt player.InterruptFunc) models.PlaybackResult {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if interrupt != nil && interrupt() {
		return models.PlaybackResult{Status: models.PlaybackFailed, Interrupted: true}
	}

	res := models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: req.MaxRun}
	if f.script != nil {
		res = f.script(req)
	}
	f.clock.Advance(time.Duration(res.ActualRunSeconds * float64(time.Second)))
	return res
}

func (f *fakePlayer) Terminate() {}

func (f *fakePlayer) requests() []player.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]player.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeOverrides is an in-memory override source.
type fakeOverrides struct {
	mu      sync.Mutex
	queue   []*models.OverrideRequest
	current string
}

func (f *fakeOverrides) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) > 0
}

func (f *fakeOverrides) CheckAndConsume() *models.OverrideRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil
	}
	req := f.queue[0]
	f.queue = f.queue[1:]
	return req
}

func (f *fakeOverrides) push(req *models.OverrideRequest) {
	f.mu.Lock()
	f.queue = append(f.queue, req)
	f.mu.Unlock()
}

func (f *fakeOverrides) CurrentChannel() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.current != ""
}

func (f *fakeOverrides) SetCurrentChannel(name string) error {
	f.mu.Lock()
	f.current = name
	f.mu.Unlock()
	return nil
}

// fakeRecorder captures as-run entries in memory.
type fakeRecorder struct {
	mu      sync.Mutex
	entries []models.AsRunEntry
}

func (f *fakeRecorder) Record(_ context.Context, entry models.AsRunEntry) {
	f.mu.Lock()
	f.entries = append(f.entries, entry)
	f.mu.Unlock()
}

func (f *fakeRecorder) recorded() []models.AsRunEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AsRunEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

func testCfg() *config.Config {
	return &config.Config{
		MainConsumePolicy:    config.ConsumeScheduled,
		MinPlaybackSec:       5,
		FillerPenaltySec:     5,
		OverrideCeilingSec:   7200,
		OverridePollInterval: time.Second,
		ScheduleRetryBackoff: time.Minute,
		DayCutoffHour:        5,
	}
}

func testEngine(cfg *config.Config, clock *playclock.Simulated, items []models.FillerItem) (*Engine, *fakePlayer, *fakeOverrides) {
	p := &fakePlayer{clock: clock}
	o := &fakeOverrides{}
	e := NewEngine(cfg, p, o, clock, events.NewBus(), nil, zerolog.Nop())
	e.loadManifest = func(string, zerolog.Logger) ([]models.FillerItem, error) {
		return items, nil
	}
	return e, p, o
}

func mainSegment(start time.Time, slotSec, contentSec float64, show string) models.ScheduleSegment {
	return models.ScheduleSegment{
		StartTime:       start,
		SlotDurationSec: slotSec,
		ShowName:        show,
		Video:           models.VideoRef{Path: show + ".mp4", Duration: contentSec},
		FillerManifest:  "filler.xml",
	}
}
