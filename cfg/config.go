// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg binds the core's tunables (LRU shape, entry-cache shape,
// pipe buffer size, logging severity/rotation, metrics enablement) to
// cobra/pflag flags and a viper-backed config file, mirroring the
// teacher's BindFlags convention.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Octal is an integer decoded from an octal string flag/config value
// (e.g. file-mode permission bits).
type Octal int

// LogSeverity is a validated, upper-cased logging level string.
type LogSeverity string

// Config is the root of the core's bound configuration tree.
type Config struct {
	AppName string `yaml:"app-name"`

	Debug   DebugConfig   `yaml:"debug"`
	LRU     LRUConfig     `yaml:"lru"`
	Caching CachingConfig `yaml:"caching"`
	Pipe    PipeConfig    `yaml:"pipe"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DebugConfig controls invariant-violation and mutex-contention
// diagnostics, mirroring the teacher's DebugConfig.
type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
	LogMutex                 bool `yaml:"log-mutex"`
}

// LRUConfig binds the unused-vnode LRU's two thresholds.
type LRUConfig struct {
	HotCapacity int `yaml:"hot-capacity"`
	SoftCeiling int `yaml:"soft-ceiling"`
}

// CachingConfig binds the directory-entry cache's generational shape.
type CachingConfig struct {
	EntryCacheGenerations    int `yaml:"entry-cache-generations"`
	EntryCacheGenerationSize int `yaml:"entry-cache-generation-size"`
}

// PipeConfig binds the FIFO/unnamed-pipe engine's ring-buffer capacity.
type PipeConfig struct {
	CapacityBytes int `yaml:"capacity-bytes"`
}

// LoggingConfig binds logging severity and lumberjack rotation policy.
// Not present verbatim in the retrieved teacher package (only its usage,
// in GetDefaultLoggingConfig, was); reconstructed here from that usage
// and from cfg's severity-level constants.
type LoggingConfig struct {
	Severity  LogSeverity             `yaml:"severity"`
	Directory string                  `yaml:"directory"`
	Filename  string                  `yaml:"filename"`
	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

// LogRotateLoggingConfig binds the lumberjack.Logger rotation knobs.
type LogRotateLoggingConfig struct {
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
}

// MetricsConfig toggles the OTel/Prometheus metrics handle the core
// reports node-table, LRU, advisory-lock, pipe, and entry-cache activity
// through.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BindFlags registers every tunable as a pflag and binds it into viper,
// following the teacher's per-flag StringP/BoolP/IntP-then-BindPFlag
// pattern; unlike the teacher's generated version, errors are returned
// immediately rather than accumulated, since cobra commands already
// thread a single error back to main.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "", "The application name of this mount.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Exit when internal invariants are violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants")); err != nil {
		return err
	}

	flagSet.BoolP("debug-mutex", "", false, "Log when a mutex is held too long.")
	if err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug-mutex")); err != nil {
		return err
	}

	flagSet.IntP("lru-hot-capacity", "", DefaultLRUHotCapacity, "Capacity of the unused-vnode LRU's hot array before it drains to the cold list.")
	if err = viper.BindPFlag("lru.hot-capacity", flagSet.Lookup("lru-hot-capacity")); err != nil {
		return err
	}

	flagSet.IntP("lru-soft-ceiling", "", DefaultLRUSoftCeiling, "Advisory high-water mark on the unused-vnode cold list before the low-resource prober reclaims.")
	if err = viper.BindPFlag("lru.soft-ceiling", flagSet.Lookup("lru-soft-ceiling")); err != nil {
		return err
	}

	flagSet.IntP("entry-cache-generations", "", DefaultEntryCacheGenerations, "Number of rotating generations in each mount's directory-entry cache.")
	if err = viper.BindPFlag("caching.entry-cache-generations", flagSet.Lookup("entry-cache-generations")); err != nil {
		return err
	}

	flagSet.IntP("entry-cache-generation-size", "", DefaultEntryCacheGenerationSize, "Entries held per generation before the oldest generation rotates out.")
	if err = viper.BindPFlag("caching.entry-cache-generation-size", flagSet.Lookup("entry-cache-generation-size")); err != nil {
		return err
	}

	flagSet.IntP("pipe-capacity-bytes", "", DefaultPipeCapacityBytes, "Ring-buffer capacity of the FIFO/pipe data engine, in bytes.")
	if err = viper.BindPFlag("pipe.capacity-bytes", flagSet.Lookup("pipe-capacity-bytes")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", INFO, "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-filename", "", "", "Path to the rotated log file; empty logs to stderr.")
	if err = viper.BindPFlag("logging.filename", flagSet.Lookup("log-filename")); err != nil {
		return err
	}

	flagSet.BoolP("metrics-enabled", "", false, "Export node-table, LRU, advisory-lock, pipe, and entry-cache metrics via OTel/Prometheus.")
	if err = viper.BindPFlag("metrics.enabled", flagSet.Lookup("metrics-enabled")); err != nil {
		return err
	}

	return nil
}
