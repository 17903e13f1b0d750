/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the read-only status API. Channel guides poll
// /api/v1/now instead of tailing log files; operators use /api/v1/logs for
// live diagnostics without shell access to the playout host.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/grimnir_tv/internal/asrun"
	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/logbuffer"
	"github.com/friendsincode/grimnir_tv/internal/playout"
	"github.com/friendsincode/grimnir_tv/internal/telemetry"
)

// Server serves engine status over HTTP and Prometheus metrics on a
// separate listener.
type Server struct {
	cfg        *config.Config
	engine     *playout.Engine
	asrunSvc   *asrun.Service
	logBuffer  *logbuffer.Buffer
	logger     zerolog.Logger
	httpServer *http.Server
	metricsSrv *http.Server
}

// New constructs the status server. asrunSvc may be nil.
func New(cfg *config.Config, engine *playout.Engine, asrunSvc *asrun.Service, logBuf *logbuffer.Buffer, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		asrunSvc:  asrunSvc,
		logBuffer: logBuf,
		logger:    logger.With().Str("component", "server").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/now", s.handleNow)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/logs", s.handleLogs)
		r.Get("/asrun", s.handleAsRun)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(router, "status_api"),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())
	s.metricsSrv = &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           metricsMux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	return s
}

// Handler exposes the status API router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs both listeners. Errors after startup are logged, not fatal:
// the playout loop outranks the status API.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("status API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("status API stopped")
		}
	}()
	go func() {
		s.logger.Info().Str("addr", s.metricsSrv.Addr).Msg("metrics listening")
		if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("metrics listener stopped")
		}
	}()
}

// Shutdown stops both listeners.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("status API shutdown")
	}
	if err := s.metricsSrv.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("metrics shutdown")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	segments := s.engine.Segments()
	out := make([]map[string]any, 0, len(segments))
	for _, seg := range segments {
		out = append(out, map[string]any{
			"show_name":  seg.ShowName,
			"start_time": seg.StartTime,
			"end_time":   seg.EndTime(),
			"slot_s":     seg.SlotDurationSec,
			"kind":       string(seg.Kind()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": out})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Descending: true,
		Limit:      100,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			params.Limit = n
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.Since = t
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.logBuffer.Query(params)})
}

func (s *Server) handleAsRun(w http.ResponseWriter, r *http.Request) {
	if s.asrunSvc == nil {
		writeError(w, http.StatusNotFound, "asrun_disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := s.asrunSvc.Recent(r.Context(), r.URL.Query().Get("channel"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("as-run query failed")
		writeError(w, http.StatusInternalServerError, "asrun_query_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
