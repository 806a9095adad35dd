package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/livedom/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
	if cfg.QueryTimeout() != 5*time.Second {
		t.Errorf("QueryTimeout() = %v, want 5s", cfg.QueryTimeout())
	}
	if cfg.PollInterval() != 10*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 10ms", cfg.PollInterval())
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q, want %q", cfg.Metrics.Namespace, DefaultNamespace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate should pass for defaults: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if !errors.HasCode(err, "E121") {
		t.Errorf("Load() error = %v, want E121", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "devMode": true,
  "log": {
    "level": "debug"
  },
  "hydration": {
    "strict": true
  },
  "query": {
    "timeoutMs": 250
  },
  "metrics": {
    "enabled": true
  }
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if !cfg.DevMode {
		t.Error("DevMode should be true")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want the default", cfg.Log.Format)
	}
	if !cfg.Hydration.Strict {
		t.Error("Hydration.Strict should be true")
	}
	if cfg.QueryTimeout() != 250*time.Millisecond {
		t.Errorf("QueryTimeout() = %v, want 250ms", cfg.QueryTimeout())
	}
	if cfg.PollInterval() != 10*time.Millisecond {
		t.Errorf("PollInterval() = %v, want the default", cfg.PollInterval())
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics = %+v, want enabled with the default namespace", cfg.Metrics)
	}
	if cfg.Path() != configPath || cfg.Dir() != tmpDir {
		t.Errorf("Path() = %q, Dir() = %q", cfg.Path(), cfg.Dir())
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configYAML := `devMode: true
log:
  format: json
query:
  timeoutMs: 100
  pollIntervalMs: 5
`
	if err := os.WriteFile(filepath.Join(tmpDir, YAMLFileName), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.PollInterval() != 5*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 5ms", cfg.PollInterval())
	}
}

func TestLoadPrefersJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(`{"devMode": true}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, YMLFileName), []byte("devMode: false\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.DevMode || filepath.Base(cfg.Path()) != ConfigFileName {
		t.Errorf("loaded %q, want %s", cfg.Path(), ConfigFileName)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	// The stray comma sits on line 3.
	if err := os.WriteFile(configPath, []byte("{\n  \"devMode\": true,\n  ,\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if !errors.HasCode(err, "E120") {
		t.Fatalf("Expected E120 error, got: %v", err)
	}
	e := errors.FromError(err, "")
	if e.Location == nil || e.Location.Line != 3 {
		t.Errorf("Location = %v, want line 3", e.Location)
	}
}

func TestLoadFile_WrongType(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(`{"query": {"timeoutMs": "fast"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if !errors.HasCode(err, "E120") {
		t.Fatalf("Expected E120 error, got: %v", err)
	}
	if e := errors.FromError(err, ""); e.Location == nil || e.Location.Line != 1 {
		t.Errorf("Location = %v, want line 1", e.Location)
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, YAMLFileName)
	if err := os.WriteFile(configPath, []byte("log: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(configPath); !errors.HasCode(err, "E120") {
		t.Errorf("Expected E120 error, got: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.HasCode(err, "E121") {
		t.Errorf("Expected E121 error, got: %v", err)
	}
}

func TestLoadFile_InvalidValue(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(`{"log": {"level": "loud"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if !errors.HasCode(err, "E122") {
		t.Errorf("Expected E122 error, got: %v", err)
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{ConfigFileName, YAMLFileName} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, name)

			cfg := New()
			cfg.Hydration.Strict = true
			cfg.Query.TimeoutMs = 1500

			// Save should fail without configPath set
			if err := cfg.Save(); err == nil {
				t.Error("Expected error when saving without path")
			}

			if err := cfg.SaveTo(configPath); err != nil {
				t.Fatalf("SaveTo error: %v", err)
			}

			loaded, err := LoadFile(configPath)
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if !loaded.Hydration.Strict || loaded.QueryTimeout() != 1500*time.Millisecond {
				t.Errorf("loaded = %+v, want the saved values", loaded)
			}

			loaded.DevMode = true
			if err := loaded.Save(); err != nil {
				t.Fatalf("Save error: %v", err)
			}
			reloaded, err := LoadFile(configPath)
			if err != nil {
				t.Fatalf("Load error: %v", err)
			}
			if !reloaded.DevMode {
				t.Error("DevMode not persisted by Save")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative timeout", func(c *Config) { c.Query.TimeoutMs = -1 }},
		{"zero poll", func(c *Config) { c.Query.PollIntervalMs = 0 }},
		{"poll above timeout", func(c *Config) { c.Query.TimeoutMs, c.Query.PollIntervalMs = 10, 20 }},
		{"namespace", func(c *Config) { c.Metrics.Namespace = "my-app" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.HasCode(err, "E122") {
				t.Errorf("Validate() = %v, want E122", err)
			}
		})
	}

	cfg := New()
	cfg.Log.Level = "WARN"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate should accept upper-case levels: %v", err)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, want warn", cfg.SlogLevel())
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Logger(&buf).Debug("hidden")
	cfg.Logger(&buf).Info("shown", "n", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("missing JSON record: %s", out)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v, want defaults", cfg.Log)
	}
	if cfg.Query.TimeoutMs != DefaultQueryTimeoutMs || cfg.Query.PollIntervalMs != DefaultPollIntervalMs {
		t.Errorf("Query = %+v, want defaults", cfg.Query)
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q, want %q", cfg.Metrics.Namespace, DefaultNamespace)
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists should be false for empty directory")
	}

	if err := os.WriteFile(filepath.Join(tmpDir, YMLFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if !Exists(tmpDir) {
		t.Error("Exists should be true after creating config")
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Should fail when no config exists
	_, err := FindProjectRoot(nestedDir)
	if !errors.HasCode(err, "E121") {
		t.Errorf("FindProjectRoot error = %v, want E121", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nestedDir)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}
}
