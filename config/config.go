// Package config parses skepa-db's process-level flags/environment:
// flag.* with SKEPADB_*-prefixed environment-variable fallbacks.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the process's runtime options (spec §6 "CLI surface",
// SPEC_FULL.md §3).
type Config struct {
	DataDir            string
	Fsync              bool
	CheckpointInterval time.Duration
	LogLevel           int
}

// Parse reads flags, falling back to SKEPADB_* environment variables, then
// to a hardcoded default.
func Parse() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.DataDir, "datadir", envStr("SKEPADB_DATADIR", "./data"), "data directory")
	flag.BoolVar(&cfg.Fsync, "fsync", envBool("SKEPADB_FSYNC", true), "fsync WAL writes on commit (disable for speed at risk of data loss on crash)")
	flag.DurationVar(&cfg.CheckpointInterval, "checkpoint-interval", envDuration("SKEPADB_CHECKPOINT_INTERVAL", 5*time.Minute), "interval between automatic checkpoints (0 disables)")
	flag.IntVar(&cfg.LogLevel, "log-level", envInt("SKEPADB_LOG_LEVEL", 0), "log verbosity (0=off, 1=statements)")
	flag.Parse()
	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
