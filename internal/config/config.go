package config

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/livedom/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "livedom.json"

	// YAMLFileName is the name of the YAML configuration file.
	YAMLFileName = "livedom.yaml"

	// YMLFileName is the short-extension YAML configuration file name.
	YMLFileName = "livedom.yml"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultQueryTimeoutMs is the default reference wait of query chains.
	DefaultQueryTimeoutMs = 5000

	// DefaultPollIntervalMs is the default reference poll interval.
	DefaultPollIntervalMs = 10

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "livedom"
)

// fileNames lists the configuration files Load looks for, in order.
var fileNames = []string{ConfigFileName, YAMLFileName, YMLFileName}

// Config represents the complete livedom configuration.
type Config struct {
	// DevMode enables development-only diagnostics.
	DevMode bool `json:"devMode,omitempty" yaml:"devMode,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log" yaml:"log"`

	// Hydration contains hydration configuration.
	Hydration HydrationConfig `json:"hydration" yaml:"hydration"`

	// Query contains query chain configuration.
	Query QueryConfig `json:"query" yaml:"query"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// HydrationConfig contains hydration settings.
type HydrationConfig struct {
	// Strict fails hydration on the first mismatch instead of repairing it.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// QueryConfig contains query chain settings.
type QueryConfig struct {
	// TimeoutMs bounds the wait for a reference handle.
	TimeoutMs int `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`

	// PollIntervalMs is the delay between reference handle checks.
	PollIntervalMs int `json:"pollIntervalMs,omitempty" yaml:"pollIntervalMs,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns on the engine collectors.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Namespace is the metric name prefix.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Query: QueryConfig{
			TimeoutMs:      DefaultQueryTimeoutMs,
			PollIntervalMs: DefaultPollIntervalMs,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// livedom.json, livedom.yaml and livedom.yml, in that order.
func Load(dir string) (*Config, error) {
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E121").
		WithDetail("No livedom.json or livedom.yaml found in " + dir).
		WithSuggestion("Create livedom.json or pass --config")
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, jsonError(path, data, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// jsonError converts a decoding error into E120, locating syntax and type
// errors in the file.
func jsonError(path string, data []byte, err error) error {
	e := errors.New("E120").
		WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
		WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		e = e.WithOffset(path, data, syntaxErr.Offset)
	case stderrors.As(err, &typeErr):
		e = e.WithOffset(path, data, typeErr.Offset)
	}
	return e.Wrap(err)
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML for .yaml
// and .yml files and as indented JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		// Add newline at end of file
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Query.TimeoutMs == 0 {
		c.Query.TimeoutMs = DefaultQueryTimeoutMs
	}
	if c.Query.PollIntervalMs == 0 {
		c.Query.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		return errors.New("E122").
			WithDetailf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.New("E122").
			WithDetailf("log.format %q is not one of text, json", c.Log.Format)
	}
	if c.Query.TimeoutMs <= 0 {
		return errors.New("E122").
			WithDetail("query.timeoutMs must be positive")
	}
	if c.Query.PollIntervalMs <= 0 || c.Query.PollIntervalMs > c.Query.TimeoutMs {
		return errors.New("E122").
			WithDetail("query.pollIntervalMs must be positive and at most query.timeoutMs")
	}
	if strings.ContainsAny(c.Metrics.Namespace, " -.") {
		return errors.New("E122").
			WithDetailf("metrics.namespace %q is not a valid metric name prefix", c.Metrics.Namespace)
	}
	return nil
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// QueryTimeout returns the query chain timeout.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Query.TimeoutMs) * time.Millisecond
}

// PollInterval returns the reference poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Query.PollIntervalMs) * time.Millisecond
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	if l, ok := levels[strings.ToLower(c.Log.Level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// Logger builds a logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range fileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E121").
				WithDetail("No livedom.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
