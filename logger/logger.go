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

// Package logger implements the core's severity-leveled logging, wrapping
// the standard library's log.Logger with a lumberjack.Logger rotation
// sink. Severity names and ordering mirror the teacher's cfg package
// (TRACE, DEBUG, INFO, WARNING, ERROR, OFF).
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity is one of the core's six logging levels, ordered from most to
// least verbose. The zero value is Unset rather than Trace, so a zero
// Config can be told apart from an explicit request for Trace-level
// logging.
type Severity int

const (
	Unset Severity = iota
	Trace
	Debug
	Info
	Warning
	Error
	Off
)

func (s Severity) String() string {
	switch s {
	case Unset:
		return "UNSET"
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Off:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps one of the teacher's upper-cased severity strings to
// a Severity, defaulting to Info on an unrecognized value.
func ParseSeverity(s string) Severity {
	switch s {
	case "TRACE":
		return Trace
	case "DEBUG":
		return Debug
	case "INFO":
		return Info
	case "WARNING":
		return Warning
	case "ERROR":
		return Error
	case "OFF":
		return Off
	default:
		return Info
	}
}

// RotateConfig mirrors the teacher's LogRotateLoggingConfig shape, carried
// straight through to the lumberjack.Logger sink it configures.
type RotateConfig struct {
	Directory       string
	Filename        string
	BackupFileCount int
	Compress        bool
	MaxFileSizeMB   int
}

// DefaultRotateConfig matches the teacher's GetDefaultLoggingConfig
// defaults (10 backups, compressed, 512MB per file).
func DefaultRotateConfig() RotateConfig {
	return RotateConfig{
		Filename:        "haiku-vfs.log",
		BackupFileCount: 10,
		Compress:        true,
		MaxFileSizeMB:   512,
	}
}

// Config selects the core's logging severity and rotation policy. An
// empty Filename disables file rotation and logs to stderr instead,
// which is the convenient default for tests and short-lived tools.
type Config struct {
	Severity Severity
	Rotate   RotateConfig
}

// DefaultConfig returns Info severity logging to stderr, with the
// teacher's default rotation policy on standby should a caller later set
// Rotate.Filename.
func DefaultConfig() Config {
	return Config{Severity: Info, Rotate: DefaultRotateConfig()}
}

// Logger is a severity-gated wrapper around a standard log.Logger; below
// its configured Severity, calls are dropped without formatting their
// arguments.
type Logger struct {
	severity atomic.Int32
	std      *log.Logger
	closer   io.Closer
}

// New constructs a Logger per cfg. When cfg.Rotate.Filename is non-empty,
// output is sent through a lumberjack.Logger so long-running deployments
// don't grow an unbounded log file; otherwise output goes to stderr.
func New(cfg Config) *Logger {
	var w io.Writer = os.Stderr
	var closer io.Closer
	if cfg.Rotate.Filename != "" {
		path := cfg.Rotate.Filename
		if cfg.Rotate.Directory != "" {
			path = cfg.Rotate.Directory + string(os.PathSeparator) + cfg.Rotate.Filename
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.Rotate.MaxFileSizeMB,
			MaxBackups: cfg.Rotate.BackupFileCount,
			Compress:   cfg.Rotate.Compress,
		}
		w = lj
		closer = lj
	}

	severity := cfg.Severity
	if severity == Unset {
		severity = Info
	}
	l := &Logger{std: log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds), closer: closer}
	l.severity.Store(int32(severity))
	return l
}

// SetSeverity adjusts the logger's active level without reconstructing
// its output sink, so a running core can raise or lower verbosity.
func (l *Logger) SetSeverity(s Severity) {
	l.severity.Store(int32(s))
}

// Close releases the underlying rotation sink, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) log(s Severity, format string, args ...interface{}) {
	if Severity(l.severity.Load()) > s {
		return
	}
	l.std.Output(3, fmt.Sprintf("[%s] ", s) + fmt.Sprintf(format, args...))
}

func (l *Logger) Tracef(format string, args ...interface{})   { l.log(Trace, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{})   { l.log(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})    { l.log(Info, format, args...) }
func (l *Logger) Warningf(format string, args ...interface{}) { l.log(Warning, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.log(Error, format, args...) }

var (
	globalMu sync.RWMutex
	global   = New(DefaultConfig())
)

// SetGlobal installs l as the package-level logger every vfs subpackage
// reports through via the package functions below. Call once at startup;
// nil restores a fresh stderr-backed default.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if l == nil {
		l = New(DefaultConfig())
	}
	global = l
}

func current() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

func Tracef(format string, args ...interface{})   { current().Tracef(format, args...) }
func Debugf(format string, args ...interface{})   { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})    { current().Infof(format, args...) }
func Warningf(format string, args ...interface{}) { current().Warningf(format, args...) }
func Errorf(format string, args ...interface{})   { current().Errorf(format, args...) }
