/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package override

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/models"
)

func newTestChannel(t *testing.T) (*Channel, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		OverrideVideoFile:  filepath.Join(dir, "override_video.txt"),
		ChannelRequestFile: filepath.Join(dir, "channel_request.txt"),
		ChannelStateFile:   filepath.Join(dir, "current_channel.txt"),
	}
	return NewChannel(cfg, zerolog.Nop()), cfg
}

func TestCheckAndConsumeReadsAndDeletesVideoFile(t *testing.T) {
	ch, cfg := newTestChannel(t)
	if err := os.WriteFile(cfg.OverrideVideoFile, []byte("/media/special.mp4\n"), 0o644); err != nil {
		t.Fatalf("write signal: %v", err)
	}

	req := ch.CheckAndConsume()
	if req == nil || req.Kind != models.OverridePlayNow {
		t.Fatalf("got %+v, want play-now request", req)
	}
	if req.Video != "/media/special.mp4" {
		t.Fatalf("video %q, want /media/special.mp4", req.Video)
	}
	if _, err := os.Stat(cfg.OverrideVideoFile); !os.IsNotExist(err) {
		t.Fatal("signal file not deleted after consume")
	}
	if ch.CheckAndConsume() != nil {
		t.Fatal("request fired twice")
	}
}

func TestPlayNowTakesPrecedenceOverSwitch(t *testing.T) {
	ch, cfg := newTestChannel(t)
	if err := os.WriteFile(cfg.OverrideVideoFile, []byte("clip.mp4"), 0o644); err != nil {
		t.Fatalf("write signal: %v", err)
	}
	if err := os.WriteFile(cfg.ChannelRequestFile, []byte("movies"), 0o644); err != nil {
		t.Fatalf("write signal: %v", err)
	}

	first := ch.CheckAndConsume()
	if first == nil || first.Kind != models.OverridePlayNow {
		t.Fatalf("first request %+v, want play-now", first)
	}
	second := ch.CheckAndConsume()
	if second == nil || second.Kind != models.OverrideChannelSwitch || second.Channel != "movies" {
		t.Fatalf("second request %+v, want switch to movies", second)
	}
}

func TestEmptySignalFileIgnoredButRemoved(t *testing.T) {
	ch, cfg := newTestChannel(t)
	if err := os.WriteFile(cfg.OverrideVideoFile, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write signal: %v", err)
	}

	if req := ch.CheckAndConsume(); req != nil {
		t.Fatalf("empty file produced request %+v", req)
	}
	if _, err := os.Stat(cfg.OverrideVideoFile); !os.IsNotExist(err) {
		t.Fatal("empty signal file should still be removed")
	}
}

func TestPendingDoesNotConsume(t *testing.T) {
	ch, cfg := newTestChannel(t)
	if ch.Pending() {
		t.Fatal("pending with no signal files")
	}

	if err := os.WriteFile(cfg.ChannelRequestFile, []byte("retro"), 0o644); err != nil {
		t.Fatalf("write signal: %v", err)
	}
	if !ch.Pending() {
		t.Fatal("expected pending")
	}
	if _, err := os.Stat(cfg.ChannelRequestFile); err != nil {
		t.Fatal("Pending must not consume the signal file")
	}
}

func TestChannelStateRoundTrip(t *testing.T) {
	ch, _ := newTestChannel(t)

	if _, ok := ch.CurrentChannel(); ok {
		t.Fatal("expected no persisted channel")
	}
	if err := ch.SetCurrentChannel("movies"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	name, ok := ch.CurrentChannel()
	if !ok || name != "movies" {
		t.Fatalf("got (%q, %v), want (movies, true)", name, ok)
	}
}

func TestRequestSwitchWritesSignalFile(t *testing.T) {
	ch, cfg := newTestChannel(t)
	if err := RequestSwitch(cfg.ChannelRequestFile, "retro"); err != nil {
		t.Fatalf("request switch: %v", err)
	}

	req := ch.CheckAndConsume()
	if req == nil || req.Kind != models.OverrideChannelSwitch || req.Channel != "retro" {
		t.Fatalf("got %+v, want switch to retro", req)
	}
}
