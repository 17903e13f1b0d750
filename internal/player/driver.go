/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player wraps the external media player process.
package player

import (
	"context"
	"errors"
	"net/url"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/models"
	"github.com/friendsincode/grimnir_tv/internal/playclock"
)

// Request describes one playback attempt.
type Request struct {
	Path            string
	ContentDuration float64 // nominal runtime in seconds, 0 when unknown
	StartOffset     float64 // seek position in seconds
	MaxRun          float64 // hard ceiling in seconds
	Label           string  // display name for logging
	Filler          bool
}

// InterruptFunc is polled between wait increments; returning true kills the
// player and marks the result interrupted.
type InterruptFunc func() bool

// Driver launches and supervises the external player. Exactly one player
// process is alive at a time per channel run; Terminate is the single kill
// path shared by timeout enforcement, override interrupts and operator
// shutdown.
type Driver struct {
	cfg    *config.Config
	clock  playclock.Clock
	logger zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewDriver creates a playback driver.
func NewDriver(cfg *config.Config, clock playclock.Clock, logger zerolog.Logger) *Driver {
	return &Driver{
		cfg:    cfg,
		clock:  clock,
		logger: logger.With().Str("component", "player").Logger(),
	}
}

// Play runs one playback attempt and blocks until it finishes, times out,
// fails, or is interrupted. The returned ActualRunSeconds is the ceiling
// value on timeout and the measured elapsed time otherwise; the caller
// decides how much schedule time a clean main-show finish is charged.
func (d *Driver) Play(ctx context.Context, req Request, interrupt InterruptFunc) models.PlaybackResult {
	remote := models.IsRemotePath(req.Path)

	d.logger.Info().
		Str("show", req.Label).
		Str("path", req.Path).
		Bool("remote", remote).
		Bool("filler", req.Filler).
		Float64("offset_s", req.StartOffset).
		Float64("max_run_s", req.MaxRun).
		Msg("playing")

	if req.ContentDuration > 0 && req.StartOffset >= req.ContentDuration {
		d.logger.Warn().
			Str("show", req.Label).
			Float64("offset_s", req.StartOffset).
			Float64("content_s", req.ContentDuration).
			Msg("offset beyond content duration, skipping playback")
		return models.PlaybackResult{Status: models.PlaybackSkipped}
	}

	if req.MaxRun <= 0 {
		return models.PlaybackResult{Status: models.PlaybackSkipped}
	}

	if d.clock.Simulated() {
		d.clock.Advance(secs(req.MaxRun))
		return models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: req.MaxRun}
	}

	return d.playReal(ctx, req, remote, interrupt)
}

func (d *Driver) playReal(ctx context.Context, req Request, remote bool, interrupt InterruptFunc) models.PlaybackResult {
	cmd := d.buildCommand(req, remote)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			// Broken environment, not a bad file.
			d.logger.Error().Err(err).Str("player", d.cfg.PlayerBin).
				Msg("player binary cannot be launched")
		} else {
			d.logger.Error().Err(err).Str("path", req.Path).Msg("failed to start player")
		}
		return models.PlaybackResult{Status: models.PlaybackFailed}
	}

	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		close(exited)
		done <- err
	}()

	d.mu.Lock()
	d.cmd = cmd
	d.exited = exited
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.cmd = nil
		d.exited = nil
		d.mu.Unlock()
	}()

	ceiling := secs(req.MaxRun + d.cfg.PlayerGraceSec)
	poll := d.cfg.OverridePollInterval
	if poll <= 0 {
		poll = time.Second
	}

	for {
		elapsed := time.Since(started)
		remaining := ceiling - elapsed

		if remaining <= 0 {
			// The schedule's ceiling, not an error: the slot's time is
			// consumed whether or not the player cooperated.
			d.logger.Warn().
				Str("show", req.Label).
				Float64("ceiling_s", req.MaxRun+d.cfg.PlayerGraceSec).
				Msg("player exceeded ceiling, terminating group")
			d.killGroup(cmd, exited)
			<-done
			return models.PlaybackResult{Status: models.PlaybackTimedOut, ActualRunSeconds: req.MaxRun}
		}

		if interrupt != nil && interrupt() {
			d.logger.Warn().Str("show", req.Label).Msg("playback interrupted by override")
			d.killGroup(cmd, exited)
			<-done
			return models.PlaybackResult{
				Status:           models.PlaybackFailed,
				ActualRunSeconds: time.Since(started).Seconds(),
				Interrupted:      true,
			}
		}

		wait := poll
		if remaining < wait {
			wait = remaining
		}

		select {
		case err := <-done:
			elapsed := time.Since(started).Seconds()
			if err != nil {
				d.logger.Error().Err(err).
					Str("path", req.Path).
					Float64("elapsed_s", elapsed).
					Msg("player exited non-zero")
				return models.PlaybackResult{Status: models.PlaybackFailed, ActualRunSeconds: elapsed}
			}
			d.logger.Info().
				Str("show", req.Label).
				Float64("elapsed_s", elapsed).
				Msg("playback finished")
			return models.PlaybackResult{Status: models.PlaybackCompleted, ActualRunSeconds: elapsed}
		case <-ctx.Done():
			d.killGroup(cmd, exited)
			<-done
			return models.PlaybackResult{
				Status:           models.PlaybackFailed,
				ActualRunSeconds: time.Since(started).Seconds(),
				Interrupted:      true,
			}
		case <-time.After(wait):
		}
	}
}

// buildCommand assembles the player invocation. Remote sources get a larger
// network cache and reconnect-on-stall; their URLs are percent-encoded since
// archive paths legally contain spaces.
func (d *Driver) buildCommand(req Request, remote bool) *exec.Cmd {
	args := []string{
		"--no-video-title-show",
		"--play-and-exit",
		"--no-loop",
		"--fullscreen",
	}
	if remote {
		args = append(args,
			"--network-caching", itoa(d.cfg.NetworkCachingMS),
			"--http-reconnect",
		)
	}
	args = append(args, "--start-time="+ftoa(req.StartOffset))

	target := req.Path
	if remote {
		target = encodeURL(req.Path)
	}
	args = append(args, target)

	cmd := exec.Command(d.cfg.PlayerBin, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	// Own process group so the player and any children it spawns die as a
	// unit on the kill path.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// Terminate kills the current player process group, if any. Safe to call
// from signal handlers and override handling concurrently with Play.
func (d *Driver) Terminate() {
	d.mu.Lock()
	cmd, exited := d.cmd, d.exited
	d.mu.Unlock()
	if cmd != nil {
		d.killGroup(cmd, exited)
	}
}

func (d *Driver) killGroup(cmd *exec.Cmd, exited <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
		return
	}
	// Escalate only if the group is still alive after the grace period; the
	// pgid may be recycled once Wait has reaped the process.
	go func() {
		select {
		case <-exited:
		case <-time.After(3 * time.Second):
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		}
	}()
}

// encodeURL percent-encodes the path component of a remote URL. The player's
// argument parser cannot tolerate raw spaces in archive paths.
func encodeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.String()
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
