package config

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/bindery/internal/errors"
	"github.com/vango-dev/bindery/pkg/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.Scope.MaxPassDepth != model.DefaultMaxPassDepth {
		t.Errorf("Scope.MaxPassDepth = %d, want %d", cfg.Scope.MaxPassDepth, model.DefaultMaxPassDepth)
	}
	if cfg.Metrics.Namespace != DefaultNamespace || cfg.Tracing.TracerName != DefaultTracerName {
		t.Errorf("names = %q %q", cfg.Metrics.Namespace, cfg.Tracing.TracerName)
	}
	if cfg.Metrics.Enabled || cfg.Tracing.Enabled || cfg.Scope.Strict {
		t.Error("observers and strict mode should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	_, err := Load(t.TempDir())
	if !stderrors.Is(err, errors.New("C002")) {
		t.Errorf("missing file: got %v, want C002", err)
	}

	dir := writeConfig(t, `{
  "logLevel": "debug",
  "scope": {"maxPassDepth": 8, "strict": true},
  "metrics": {"enabled": true, "subsystem": "forms"},
  "tracing": {"enabled": true}
}
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Scope.MaxPassDepth != 8 || !cfg.Scope.Strict {
		t.Errorf("Scope = %+v", cfg.Scope)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Subsystem != "forms" || cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.TracerName != DefaultTracerName {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Path() != filepath.Join(dir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoadFileInvalidJSON(t *testing.T) {
	dir := writeConfig(t, "{\n  \"logLevel\": \"info\",\n  oops\n}\n")

	_, err := LoadFile(filepath.Join(dir, ConfigFileName))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "C001") {
		t.Errorf("expected C001, got: %v", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Location == nil || e.Location.Line != 3 {
		t.Errorf("location = %+v, want line 3", e.Location)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"uppercase level", func(c *Config) { c.LogLevel = "WARN" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"zero depth", func(c *Config) { c.Scope.MaxPassDepth = 0 }, true},
		{"negative depth", func(c *Config) { c.Scope.MaxPassDepth = -3 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !stderrors.Is(err, errors.New("C003")) {
				t.Errorf("error %v is not C003", err)
			}
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := writeConfig(t, `{"scope": {"maxPassDepth": -1}}`)
	if _, err := Load(dir); err == nil {
		t.Error("expected validation error")
	}
}

func TestLevel(t *testing.T) {
	cfg := New()
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		cfg.LogLevel = name
		got, err := cfg.Level()
		if err != nil || got != want {
			t.Errorf("Level(%q) = %v, %v, want %v", name, got, err, want)
		}
	}
}

func TestSave(t *testing.T) {
	cfg := New()
	if err := cfg.Save(); err == nil {
		t.Error("Save without a path should fail")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	cfg.Scope.MaxPassDepth = 12
	cfg.Metrics.Enabled = true
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}
	if !Exists(dir) {
		t.Error("Exists() = false after SaveTo")
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Scope.MaxPassDepth != 12 || !loaded.Metrics.Enabled {
		t.Errorf("loaded = %+v", loaded)
	}

	loaded.LogLevel = "error"
	if err := loaded.Save(); err != nil {
		t.Fatal(err)
	}
	again, _ := Load(dir)
	if again.LogLevel != "error" {
		t.Errorf("LogLevel after Save = %q", again.LogLevel)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil || cfg.Scope.MaxPassDepth != DefaultMaxPassDepth {
		t.Errorf("LoadOrDefault(\"\") = %+v, %v", cfg, err)
	}
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("missing explicit path should fail")
	}
}

func TestScopeOptions(t *testing.T) {
	cfg := New()
	cfg.Scope.MaxPassDepth = 5
	s := model.NewScope(nil, cfg.ScopeOptions()...)
	if s == nil {
		t.Fatal("NewScope returned nil")
	}
	if len(cfg.ScopeOptions()) != 2 {
		t.Errorf("ScopeOptions() len = %d", len(cfg.ScopeOptions()))
	}
}

func TestPosition(t *testing.T) {
	data := []byte("ab\ncd\nef")
	tests := []struct {
		offset    int64
		line, col int
	}{
		{1, 1, 1},
		{2, 1, 2},
		{4, 2, 1},
		{8, 3, 2},
	}
	for _, tt := range tests {
		line, col := position(data, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("position(%d) = %d:%d, want %d:%d", tt.offset, line, col, tt.line, tt.col)
		}
	}
}
