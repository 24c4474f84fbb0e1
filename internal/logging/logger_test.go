package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	log, err := NewLogger(Options{Dir: dir})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("test_message_from_logging_test")
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "pingwatch.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(b, []byte(`"msg":"test_message_from_logging_test"`)) || !bytes.Contains(b, []byte(`"ts":`)) {
		t.Fatalf("unexpected log line: %s", b)
	}
}

func TestNewLogger_Level(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(Options{Dir: dir, Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("dropped_info")
	log.Warn("kept_warn")
	_ = log.Sync()

	b, _ := os.ReadFile(filepath.Join(dir, "pingwatch.log"))
	if bytes.Contains(b, []byte("dropped_info")) || !bytes.Contains(b, []byte("kept_warn")) {
		t.Fatalf("level not applied: %s", b)
	}

	if _, err := NewLogger(Options{Dir: dir, Level: "loud"}); err != nil {
		t.Fatalf("bad level should fall back, got %v", err)
	}
}
