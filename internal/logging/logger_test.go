package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rescued.log")

	logger, err := New(path, "main")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"hello"`) {
		t.Errorf("log line %q missing msg", line)
	}
	if !strings.Contains(line, `"profile":"main"`) {
		t.Errorf("log line %q missing profile field", line)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}

func TestNewFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rescuetui.log")
	logger, err := NewFileOnly(path, "work")
	if err != nil {
		t.Fatal(err)
	}
	logger.Warn("careful")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"level":"warn"`) {
		t.Errorf("log %q missing warn entry", data)
	}
}
