package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsolatedLoggerWritesToFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.log")

	l := NewIsolatedLogger(path)
	l.Info("STREAM", "delta accepted", map[string]interface{}{"session_id": "s1"})
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "delta accepted") {
		t.Errorf("log file missing entry, got: %s", data)
	}
	if !strings.Contains(string(data), "s1") {
		t.Errorf("log file missing details, got: %s", data)
	}
}

func TestStdLoggerRoutesThroughCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.log")

	l := NewIsolatedLogger(path)
	std := l.StdLogger()
	std.Printf("[ORCH] session %s: fallback initiated", "s2")
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "fallback initiated") {
		t.Errorf("stdlib adapter entry missing from file, got: %s", data)
	}
}
