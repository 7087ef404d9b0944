// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "compiler", LevelWarn)

	l.Debugf("vertex %d built", 3)
	l.Infof("compiled %d rules", 10)
	if buf.Len() != 0 {
		t.Fatalf("expected no output below min level, got %q", buf.String())
	}

	l.Warnf("classifier table grew to %d cells", 4096)
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("expected WARN output, got %q", buf.String())
	}
}

func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	l.Infof("should not panic")
}

func TestDefaultWritesToStderr(t *testing.T) {
	l := Default("pktclass")
	if l == nil {
		t.Fatal("Default returned nil")
	}
	if l.std.Writer() != os.Stderr {
		t.Errorf("expected Default to write to os.Stderr, got %v", l.std.Writer())
	}
}
