/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package asrun persists the as-run log: one row per playback attempt.
package asrun

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_tv/internal/models"
)

// Service writes as-run entries through a buffered queue so database
// latency never stalls the playout loop. Entries are dropped (and counted
// in the log) when the queue is full.
type Service struct {
	db        *gorm.DB
	logger    zerolog.Logger
	queue     chan models.AsRunEntry
	done      chan struct{}
	closeOnce sync.Once
}

// NewService migrates the schema and starts the writer.
func NewService(db *gorm.DB, logger zerolog.Logger) (*Service, error) {
	if err := db.AutoMigrate(&models.AsRunEntry{}); err != nil {
		return nil, err
	}

	s := &Service{
		db:     db,
		logger: logger.With().Str("component", "asrun").Logger(),
		queue:  make(chan models.AsRunEntry, 256),
		done:   make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

// Record queues an entry for persistence. Never blocks.
func (s *Service) Record(_ context.Context, entry models.AsRunEntry) {
	entry.CreatedAt = time.Now()
	select {
	case s.queue <- entry:
	default:
		s.logger.Warn().Str("show", entry.ShowName).Msg("as-run queue full, entry dropped")
	}
}

// Recent returns the newest entries for a channel, most recent first.
// An empty channel matches all channels.
func (s *Service) Recent(ctx context.Context, channel string, limit int) ([]models.AsRunEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("aired_at DESC").Limit(limit)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}
	var entries []models.AsRunEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Close drains queued entries and stops the writer. Safe to call twice.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
		<-s.done
	})
}

func (s *Service) writer() {
	defer close(s.done)
	for entry := range s.queue {
		if err := s.db.Create(&entry).Error; err != nil {
			s.logger.Error().Err(err).Str("show", entry.ShowName).Msg("failed to write as-run entry")
		}
	}
}
