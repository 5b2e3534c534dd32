package specflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sansecao/spec-workflow-mcp-pro/service/hub"
)

// Storage vendors.
const (
	StorageFS     = "fs"
	StorageMemory = "memory"
)

// Event queue vendors.
const (
	EventsMemory = "memory"
	EventsFS     = "fs"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML, environment variables or flags; zero-valued
// fields inherit the defaults of DefaultConfig.
type Config struct {
	ProjectPath string        `json:"projectPath" yaml:"projectPath" mapstructure:"projectPath"`
	Storage     StorageConfig `json:"storage" yaml:"storage" mapstructure:"storage"`
	Diff        DiffConfig    `json:"diff" yaml:"diff" mapstructure:"diff"`
	Hub         HubConfig     `json:"hub" yaml:"hub" mapstructure:"hub"`
	Events      EventsConfig  `json:"events" yaml:"events" mapstructure:"events"`
	Server      ServerConfig  `json:"server" yaml:"server" mapstructure:"server"`
	Log         LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
	Tracing     TracingConfig `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

type StorageConfig struct {
	Vendor string `json:"vendor" yaml:"vendor" mapstructure:"vendor"`
}

type DiffConfig struct {
	ContextLines int `json:"contextLines" yaml:"contextLines" mapstructure:"contextLines"`
}

type HubConfig struct {
	Buffer   int           `json:"buffer" yaml:"buffer" mapstructure:"buffer"`
	Watch    bool          `json:"watch" yaml:"watch" mapstructure:"watch"`
	Debounce time.Duration `json:"debounce" yaml:"debounce" mapstructure:"debounce"`
}

// EventsConfig controls the approval change queue. The fs vendor keeps
// changes under .spec-workflow/.events so mutations made by other processes
// reach the hub of a running dashboard.
type EventsConfig struct {
	Vendor       string        `json:"vendor" yaml:"vendor" mapstructure:"vendor"`
	Buffer       int           `json:"buffer" yaml:"buffer" mapstructure:"buffer"`
	MaxRetries   int           `json:"maxRetries" yaml:"maxRetries" mapstructure:"maxRetries"`
	RetryDelay   time.Duration `json:"retryDelay" yaml:"retryDelay" mapstructure:"retryDelay"`
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval" mapstructure:"pollInterval"`
}

type ServerConfig struct {
	Addr    string `json:"addr" yaml:"addr" mapstructure:"addr"`
	Metrics bool   `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
	File   string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName" mapstructure:"serviceName"`
	OutputFile  string `json:"outputFile,omitempty" yaml:"outputFile,omitempty" mapstructure:"outputFile"`
}

// DefaultConfig returns the defaults used when a field is not configured.
func DefaultConfig() *Config {
	return &Config{
		ProjectPath: ".",
		Storage:     StorageConfig{Vendor: StorageFS},
		Diff:        DiffConfig{ContextLines: 3},
		Hub:         HubConfig{Buffer: hub.DefaultBuffer, Watch: true, Debounce: hub.DefaultDebounce},
		Events:      EventsConfig{Vendor: EventsMemory, Buffer: 1000, MaxRetries: 3, RetryDelay: 100 * time.Millisecond, PollInterval: 250 * time.Millisecond},
		Server:      ServerConfig{Addr: "127.0.0.1:5000", Metrics: true},
		Log:         LogConfig{Level: "info", Format: "text"},
		Tracing:     TracingConfig{ServiceName: "specflow"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if strings.TrimSpace(c.ProjectPath) == "" {
		errs = append(errs, fmt.Errorf("projectPath is required"))
	}
	switch c.Storage.Vendor {
	case StorageFS, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.vendor must be %s or %s, got %q", StorageFS, StorageMemory, c.Storage.Vendor))
	}
	if c.Diff.ContextLines < 0 {
		errs = append(errs, fmt.Errorf("diff.contextLines must be >= 0"))
	}
	if c.Hub.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("hub.buffer must be > 0"))
	}
	if c.Hub.Debounce < 0 {
		errs = append(errs, fmt.Errorf("hub.debounce must be >= 0"))
	}
	switch c.Events.Vendor {
	case EventsMemory, EventsFS:
	default:
		errs = append(errs, fmt.Errorf("events.vendor must be %s or %s, got %q", EventsMemory, EventsFS, c.Events.Vendor))
	}
	if c.Events.Vendor == EventsFS && c.Storage.Vendor != StorageFS {
		errs = append(errs, fmt.Errorf("events.vendor %s requires storage.vendor %s", EventsFS, StorageFS))
	}
	if c.Events.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("events.pollInterval must be >= 0"))
	}
	if c.Events.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("events.buffer must be > 0"))
	}
	if c.Events.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("events.maxRetries must be >= 0"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
