// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides a small, prefix-tagged wrapper around the
// standard library logger for compile-time diagnostics. It is never used
// on the query hot path.
package logging

import (
	"io"
	"log"
	"os"
)

// Level controls which messages a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

// Logger wraps a stdlib *log.Logger with a minimum severity filter.
type Logger struct {
	std *log.Logger
	min Level
}

// New returns a Logger writing to w, prefixed with name, filtering out
// anything below min.
func New(w io.Writer, name string, min Level) *Logger {
	return &Logger{
		std: log.New(w, "["+name+"] ", log.LstdFlags),
		min: min,
	}
}

// Default returns a Logger writing to stderr at LevelInfo, matching the
// teacher's convention of a package-ready-to-use logger with no
// configuration required.
func Default(name string) *Logger {
	return New(os.Stderr, name, LevelInfo)
}

func (l *Logger) logf(level Level, tag, format string, args ...any) {
	if l == nil || level < l.min {
		return
	}
	l.std.Printf(tag+format, args...)
}

// Debugf logs a debug-level diagnostic.
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, "DEBUG ", format, args...) }

// Infof logs an info-level diagnostic.
func (l *Logger) Infof(format string, args ...any) { l.logf(LevelInfo, "INFO ", format, args...) }

// Warnf logs a warn-level diagnostic.
func (l *Logger) Warnf(format string, args ...any) { l.logf(LevelWarn, "WARN ", format, args...) }

// Errorf logs an error-level diagnostic.
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, "ERROR ", format, args...) }
