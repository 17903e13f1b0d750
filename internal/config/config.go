/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Database backend selection for the as-run log.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// ConsumePolicy decides how much schedule time a cleanly finished main
// program is charged: the scheduled ceiling (stable against bad metadata)
// or the measured run time.
type ConsumePolicy string

const (
	ConsumeScheduled ConsumePolicy = "scheduled"
	ConsumeActual    ConsumePolicy = "actual"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	BaseDir     string // root for schedule data, signal files and logs
	ScheduleDir string
	LogDir      string
	LineupPath  string // YAML channel lineup

	// External player
	PlayerBin         string
	PlayerGraceSec    float64
	NetworkCachingMS  int
	MainConsumePolicy ConsumePolicy

	// Playout behavior
	MinPlaybackSec       float64
	FillerPenaltySec     float64
	OverrideCeilingSec   float64
	OverridePollInterval time.Duration
	ScheduleRetryBackoff time.Duration
	DayCutoffHour        int

	// Signal files
	OverrideVideoFile  string
	ChannelRequestFile string
	ChannelStateFile   string

	// Status API / metrics
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	// As-run log (disabled when DSN is empty)
	DBBackend DatabaseBackend
	DBDSN     string

	// Event bridge: "", "nats" or "redis"
	EventBridge   string
	NATSURL       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	baseDir := getEnv("GRIMNIRTV_BASE_DIR", ".")

	cfg := &Config{
		Environment: getEnv("GRIMNIRTV_ENV", "development"),
		BaseDir:     baseDir,
		ScheduleDir: getEnv("GRIMNIRTV_SCHEDULE_DIR", filepath.Join(baseDir, "schedule_data")),
		LogDir:      getEnv("GRIMNIRTV_LOG_DIR", filepath.Join(baseDir, "logs")),
		LineupPath:  getEnv("GRIMNIRTV_LINEUP", filepath.Join(baseDir, "channel_configs", "lineup.yaml")),

		PlayerBin:         getEnv("GRIMNIRTV_PLAYER_BIN", "cvlc"),
		PlayerGraceSec:    getEnvFloat("GRIMNIRTV_PLAYER_GRACE_SECONDS", 5.0),
		NetworkCachingMS:  getEnvInt("GRIMNIRTV_NETWORK_CACHING_MS", 5000),
		MainConsumePolicy: ConsumePolicy(getEnv("GRIMNIRTV_MAIN_CONSUME_POLICY", string(ConsumeScheduled))),

		MinPlaybackSec:       getEnvFloat("GRIMNIRTV_MIN_PLAYBACK_SECONDS", 5.0),
		FillerPenaltySec:     getEnvFloat("GRIMNIRTV_FILLER_PENALTY_SECONDS", 5.0),
		OverrideCeilingSec:   getEnvFloat("GRIMNIRTV_OVERRIDE_CEILING_SECONDS", 7200),
		OverridePollInterval: time.Duration(getEnvFloat("GRIMNIRTV_OVERRIDE_POLL_SECONDS", 1.0) * float64(time.Second)),
		ScheduleRetryBackoff: time.Duration(getEnvInt("GRIMNIRTV_SCHEDULE_RETRY_SECONDS", 60)) * time.Second,
		DayCutoffHour:        getEnvInt("GRIMNIRTV_DAY_CUTOFF_HOUR", 5),

		OverrideVideoFile:  getEnv("GRIMNIRTV_OVERRIDE_FILE", filepath.Join(baseDir, "override_video.txt")),
		ChannelRequestFile: getEnv("GRIMNIRTV_CHANNEL_REQUEST_FILE", filepath.Join(baseDir, "channel_request.txt")),
		ChannelStateFile:   getEnv("GRIMNIRTV_CHANNEL_STATE_FILE", filepath.Join(baseDir, "current_channel.txt")),

		HTTPBind:    getEnv("GRIMNIRTV_HTTP_BIND", "127.0.0.1"),
		HTTPPort:    getEnvInt("GRIMNIRTV_HTTP_PORT", 8090),
		MetricsBind: getEnv("GRIMNIRTV_METRICS_BIND", "127.0.0.1:9100"),

		DBBackend: DatabaseBackend(getEnv("GRIMNIRTV_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("GRIMNIRTV_DB_DSN", ""),

		EventBridge:   getEnv("GRIMNIRTV_EVENT_BRIDGE", ""),
		NATSURL:       getEnv("GRIMNIRTV_NATS_URL", "nats://localhost:4222"),
		RedisAddr:     getEnv("GRIMNIRTV_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("GRIMNIRTV_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("GRIMNIRTV_REDIS_DB", 0),

		TracingEnabled:    getEnvBool("GRIMNIRTV_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("GRIMNIRTV_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("GRIMNIRTV_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.MainConsumePolicy != ConsumeScheduled && cfg.MainConsumePolicy != ConsumeActual {
		return nil, fmt.Errorf("unsupported main consume policy %q", cfg.MainConsumePolicy)
	}

	switch cfg.EventBridge {
	case "", "nats", "redis":
	default:
		return nil, fmt.Errorf("unsupported event bridge %q", cfg.EventBridge)
	}

	return cfg, nil
}

// ValidatePlayer confirms the external player binary can be located. A
// missing player is a broken environment, fatal at startup.
func (c *Config) ValidatePlayer() error {
	if _, err := exec.LookPath(c.PlayerBin); err != nil {
		return fmt.Errorf("player binary %q not found: %w", c.PlayerBin, err)
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}
