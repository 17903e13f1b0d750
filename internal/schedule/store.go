/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule loads and validates pre-built channel-day schedules.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/models"
)

var (
	// ErrScheduleNotFound means no schedule file exists for the channel-day.
	// Recoverable: the generator may simply not have run yet.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrScheduleCorrupt means the file exists but failed structural
	// validation badly enough that no segment survived.
	ErrScheduleCorrupt = errors.New("schedule corrupt")
)

// startTimeLayout is the naive local ISO-8601 form the generator writes.
const startTimeLayout = "2006-01-02T15:04:05"

// Store resolves and loads schedule files from a directory.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates a schedule store rooted at dir.
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{dir: dir, logger: logger.With().Str("component", "schedule").Logger()}
}

// Path returns the schedule file path for a channel and date.
func (s *Store) Path(channel string, date time.Time) string {
	name := fmt.Sprintf("%s_%s_schedule.json", channel, date.Format("2006-01-02"))
	return filepath.Join(s.dir, name)
}

// Load reads the schedule for (channel, date), drops invalid records, and
// returns the remainder sorted by start time. A schedule with at least one
// good record is usable; an empty result after filtering is ErrScheduleCorrupt.
func (s *Store) Load(channel string, date time.Time) ([]models.ScheduleSegment, error) {
	path := s.Path(channel, date)
	segments, err := LoadFile(path, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("channel", channel).
		Str("date", date.Format("2006-01-02")).
		Int("segments", len(segments)).
		Msg("schedule loaded")
	return segments, nil
}

// LoadFile parses and validates a single schedule file.
func LoadFile(path string, logger zerolog.Logger) ([]models.ScheduleSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, path)
		}
		return nil, fmt.Errorf("read schedule %s: %w", path, err)
	}

	var raw []models.ScheduleSegment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScheduleCorrupt, path, err)
	}

	segments := make([]models.ScheduleSegment, 0, len(raw))
	for i, seg := range raw {
		start, err := time.ParseInLocation(startTimeLayout, seg.StartTimeRaw, time.Local)
		if err != nil {
			logger.Warn().Int("index", i).Str("start_time", seg.StartTimeRaw).
				Msg("dropping schedule record with unparseable start time")
			continue
		}
		if seg.SlotDurationSec <= 0 {
			logger.Warn().Int("index", i).Float64("slot_duration", seg.SlotDurationSec).
				Msg("dropping schedule record with non-positive slot duration")
			continue
		}
		if seg.Video.Path == "" && seg.FillerManifest == "" {
			logger.Warn().Int("index", i).Str("show", seg.ShowName).
				Msg("dropping schedule record with no content and no filler manifest")
			continue
		}
		seg.StartTime = start
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s: no valid segments", ErrScheduleCorrupt, path)
	}

	// The generator emits sorted records, but the engine depends on order.
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartTime.Before(segments[j].StartTime)
	})

	return segments, nil
}
