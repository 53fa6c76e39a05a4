package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "library.db" || cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "lms.yaml")
	body := "database:\n  path: /var/lib/lms/library.db\nlog:\n  level: debug\n  format: json\n"
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LMS_LOG_LEVEL", "warn")

	cfg, err := Load(New(), file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/var/lib/lms/library.db" {
		t.Fatalf("path = %q", cfg.Database.Path)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("env must override file: level = %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Fatalf("format = %q", cfg.Log.Format)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "lms.yaml")
	if err := os.WriteFile(file, []byte("database: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(New(), file); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestNewLogger(t *testing.T) {
	var cfg Config
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level = %v", logger.GetLevel())
	}
	logger.Info("hidden")
	logger.WithField("book_id", 7).Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"book_id":7`) {
		t.Fatalf("unexpected output %q", out)
	}

	cfg.Log.Format = "xml"
	if _, err := cfg.NewLogger(&buf); err == nil {
		t.Fatalf("expected unknown format error")
	}
	cfg.Log.Format = "text"
	cfg.Log.Level = "loud"
	if _, err := cfg.NewLogger(&buf); err == nil {
		t.Fatalf("expected bad level error")
	}
}
