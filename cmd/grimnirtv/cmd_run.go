/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_tv/internal/asrun"
	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/db"
	"github.com/friendsincode/grimnir_tv/internal/eventbus"
	"github.com/friendsincode/grimnir_tv/internal/events"
	"github.com/friendsincode/grimnir_tv/internal/logbuffer"
	"github.com/friendsincode/grimnir_tv/internal/logging"
	"github.com/friendsincode/grimnir_tv/internal/override"
	"github.com/friendsincode/grimnir_tv/internal/playclock"
	"github.com/friendsincode/grimnir_tv/internal/player"
	"github.com/friendsincode/grimnir_tv/internal/playout"
	"github.com/friendsincode/grimnir_tv/internal/schedule"
	"github.com/friendsincode/grimnir_tv/internal/server"
	"github.com/friendsincode/grimnir_tv/internal/telemetry"
	"github.com/friendsincode/grimnir_tv/internal/version"
)

var (
	runDryRun       bool
	runSimulateTime string
	runChannel      string
	runScheduleFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the playout loop",
	Long:  "Load the active channel's daily schedule and play it until stopped. With --dry-run the day is executed against a simulated clock without launching the player.",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "simulate the day without launching the player")
	runCmd.Flags().StringVar(&runSimulateTime, "simulate-time", "", "start instant for the simulated clock (2006-01-02T15:04:05, implies --dry-run)")
	runCmd.Flags().StringVar(&runChannel, "channel", "", "start on this channel instead of the persisted one")
	runCmd.Flags().StringVar(&runScheduleFile, "schedule-file", "", "play this schedule file for one day instead of the schedule store")
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if runSimulateTime != "" {
		runDryRun = true
	}

	// Run logs go to a per-start file and the in-memory buffer the status
	// API serves.
	logBuf := logbuffer.New(1000)
	logFile, err := logging.OpenRunLogFile(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer logFile.Close()
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, logFile))

	logger.Info().Str("version", version.Version).Bool("dry_run", runDryRun).Msg("Grimnir TV starting")

	if !runDryRun {
		// A missing player binary is a broken install; refuse to start.
		if err := cfg.ValidatePlayer(); err != nil {
			return err
		}
	}

	tracerProvider, err := telemetry.InitTracer(cmd.Context(), telemetry.TracerConfig{
		ServiceName:    "grimnir-tv",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	clock, err := buildClock()
	if err != nil {
		return err
	}

	lineup, err := config.LoadLineup(cfg.LineupPath)
	if err != nil {
		return fmt.Errorf("load lineup: %w", err)
	}

	var recorder playout.Recorder
	var asrunSvc *asrun.Service
	if cfg.DBDSN != "" {
		database, err := db.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect as-run database: %w", err)
		}
		defer func() {
			if err := db.Close(database); err != nil {
				logger.Error().Err(err).Msg("close database")
			}
		}()
		asrunSvc, err = asrun.NewService(database, logger)
		if err != nil {
			return fmt.Errorf("initialize as-run log: %w", err)
		}
		defer asrunSvc.Close()
		recorder = asrunSvc
	} else {
		logger.Info().Msg("as-run log disabled, no DSN configured")
	}

	bus := events.NewBus()
	bridge, err := buildBridge(bus)
	if err != nil {
		// The broker is optional infrastructure; playout continues without it.
		logger.Error().Err(err).Str("bridge", cfg.EventBridge).Msg("event bridge unavailable, continuing without")
	} else if bridge != nil {
		defer func() {
			if err := bridge.Close(); err != nil {
				logger.Error().Err(err).Msg("close event bridge")
			}
		}()
	}

	overrides := override.NewChannel(cfg, logger)
	if runChannel != "" {
		if _, ok := lineup.Find(runChannel); !ok {
			return fmt.Errorf("channel %q not in lineup", runChannel)
		}
		if err := overrides.SetCurrentChannel(runChannel); err != nil {
			return fmt.Errorf("set starting channel: %w", err)
		}
	}

	driver := player.NewDriver(cfg, clock, logger)
	engine := playout.NewEngine(cfg, driver, overrides, clock, bus, recorder, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !runDryRun {
		srv := server.New(cfg, engine, asrunSvc, logBuf, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	defer driver.Terminate()

	if runScheduleFile != "" {
		return runSingleFile(ctx, engine, lineup)
	}

	store := schedule.NewStore(cfg.ScheduleDir, logger)
	runner := playout.NewRunner(cfg, store, lineup, engine, overrides, clock, logger)
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info().Msg("Grimnir TV stopped")
	return nil
}

// runSingleFile plays one explicit schedule file and exits. Used by cron
// style deployments that hand the player a fresh file every morning.
func runSingleFile(ctx context.Context, engine *playout.Engine, lineup *config.Lineup) error {
	segments, err := schedule.LoadFile(runScheduleFile, logger)
	if err != nil {
		return fmt.Errorf("load schedule file: %w", err)
	}

	channel := runChannel
	if channel == "" && len(lineup.Channels) > 0 {
		channel = lineup.Channels[0].Name
	}

	result, target := engine.RunDay(ctx, playout.Plan{Channel: channel, Segments: segments})
	switch result {
	case playout.DaySwitchChannel:
		logger.Warn().Str("to", target).Msg("channel switch requested in single-file mode, exiting")
	case playout.DayAborted:
		return ctx.Err()
	}
	logger.Info().Msg("schedule complete")
	return nil
}

func buildClock() (playclock.Clock, error) {
	if !runDryRun {
		return playclock.NewReal(), nil
	}
	start := time.Now()
	if runSimulateTime != "" {
		parsed, err := time.ParseInLocation("2006-01-02T15:04:05", runSimulateTime, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse --simulate-time: %w", err)
		}
		start = parsed
	}
	logger.Info().Time("start", start).Msg("using simulated clock")
	return playclock.NewSimulated(start), nil
}

func buildBridge(bus *events.Bus) (eventbus.Bridge, error) {
	switch cfg.EventBridge {
	case "nats":
		return eventbus.NewNATSBridge(cfg.NATSURL, bus, logger)
	case "redis":
		return eventbus.NewRedisBridge(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, bus, logger)
	default:
		return nil, nil
	}
}
