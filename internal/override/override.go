/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package override implements the file-based viewer signal channel.
//
// Peer processes (the guide UI, the channel-switch CLI) communicate with the
// engine through two signal files: presence of the file is the request, its
// single line of text is the argument. Requests are consumed atomically:
// read, then delete, before acting, so an interrupted poll cannot fire the
// same request twice.
package override

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/models"
)

// Channel polls and consumes viewer override requests.
type Channel struct {
	videoFile   string
	requestFile string
	stateFile   string
	logger      zerolog.Logger
}

// NewChannel creates the override channel from config paths.
func NewChannel(cfg *config.Config, logger zerolog.Logger) *Channel {
	return &Channel{
		videoFile:   cfg.OverrideVideoFile,
		requestFile: cfg.ChannelRequestFile,
		stateFile:   cfg.ChannelStateFile,
		logger:      logger.With().Str("component", "override").Logger(),
	}
}

// CheckAndConsume returns the pending override request, if any. Play-now
// requests take precedence over channel switches when both are pending. A
// nil return means no request.
func (c *Channel) CheckAndConsume() *models.OverrideRequest {
	if video, ok := c.consume(c.videoFile); ok {
		c.logger.Warn().Str("video", video).Msg("play-now override detected")
		return &models.OverrideRequest{Kind: models.OverridePlayNow, Video: video}
	}
	if channel, ok := c.consume(c.requestFile); ok {
		c.logger.Warn().Str("channel", channel).Msg("channel switch requested")
		return &models.OverrideRequest{Kind: models.OverrideChannelSwitch, Channel: channel}
	}
	return nil
}

// Pending reports whether either signal file exists, without consuming it.
// Used as the cheap interrupt poll inside playback waits.
func (c *Channel) Pending() bool {
	return exists(c.videoFile) || exists(c.requestFile)
}

// consume reads and deletes a signal file. A failed delete is logged and the
// request is still honored for this call; a rare double-fire beats blocking
// on an override forever.
func (c *Channel) consume(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Error().Err(err).Str("file", path).Msg("failed to read signal file")
		}
		return "", false
	}

	if err := os.Remove(path); err != nil {
		c.logger.Error().Err(err).Str("file", path).Msg("failed to delete consumed signal file")
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		c.logger.Warn().Str("file", path).Msg("ignoring empty signal file")
		return "", false
	}
	return value, true
}

// CurrentChannel reads the persisted channel state, so a restarted engine
// resumes where the viewer left it.
func (c *Channel) CurrentChannel() (string, bool) {
	data, err := os.ReadFile(c.stateFile)
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	return name, name != ""
}

// SetCurrentChannel persists the active channel name.
func (c *Channel) SetCurrentChannel(name string) error {
	if err := os.WriteFile(c.stateFile, []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("write channel state: %w", err)
	}
	return nil
}

// RequestSwitch writes the channel-request signal file. Used by the switch
// CLI, which runs as a separate process from the engine.
func RequestSwitch(requestFile, channel string) error {
	if err := os.WriteFile(requestFile, []byte(channel+"\n"), 0o644); err != nil {
		return fmt.Errorf("write channel request: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
