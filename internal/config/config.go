// Package config loads agentcrew settings.
//
// Sources are applied in order, later ones winning: built-in defaults, a
// .env file, a YAML file, AGENTCREW_* environment variables, command-line
// flags. API keys come only from the environment (or .env).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v2"
)

// ErrMissingCredential is returned when the API key for a selected provider
// is not set.
var ErrMissingCredential = errors.New("missing credential")

// Providers.
const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds every setting of a run.
type Config struct {
	// Provider selects the chat model backend: google, openai or anthropic.
	Provider string `yaml:"provider"`

	// Model is the chat model name. Empty uses the provider default.
	Model string `yaml:"model"`

	// SearchModel is the Gemini model used by search_web.
	SearchModel string `yaml:"search_model"`

	MaxSteps      int           `yaml:"max_steps"`
	MaxToolRounds int           `yaml:"max_tool_rounds"`
	NodeTimeout   time.Duration `yaml:"node_timeout"`

	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`

	// MetricsAddr serves Prometheus /metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`

	// TraceFile exports events as OpenTelemetry spans, written as JSON to
	// this file.
	TraceFile string `yaml:"trace_file"`

	// Markdown renders the final report as styled markdown.
	Markdown bool `yaml:"markdown"`

	// Requirements is the brief given to the workflow. RequirementsFile,
	// when set, replaces it with the file's content.
	Requirements     string `yaml:"requirements"`
	RequirementsFile string `yaml:"requirements_file"`

	// EventsLog writes every event as a JSON line to this file.
	EventsLog string `yaml:"events_log"`

	GoogleAPIKey    string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
}

// StoreConfig selects the step snapshot store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite or mysql
	DSN    string `yaml:"dsn"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:      ProviderGoogle,
		SearchModel:   "gemini-2.5-pro",
		MaxSteps:      25,
		MaxToolRounds: 20,
		Store:         StoreConfig{Driver: "memory"},
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from args (without the program name) and
// the process environment.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("agentcrew", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	envFile := fs.String("env-file", ".env", "dotenv file to load")
	configFile := fs.String("config", "", "path to config YAML file")

	var f Config
	fs.StringVar(&f.Provider, "provider", "", "chat model provider (google, openai, anthropic)")
	fs.StringVar(&f.Model, "model", "", "chat model name")
	fs.StringVar(&f.SearchModel, "search-model", "", "Gemini model for web search")
	fs.IntVar(&f.MaxSteps, "max-steps", 0, "maximum agent turns per run")
	fs.IntVar(&f.MaxToolRounds, "max-tool-rounds", 0, "maximum model calls per agent turn")
	fs.DurationVar(&f.NodeTimeout, "node-timeout", 0, "per-turn timeout (0 disables)")
	fs.StringVar(&f.Store.Driver, "store", "", "snapshot store: memory, sqlite, mysql")
	fs.StringVar(&f.Store.DSN, "store-dsn", "", "store DSN or SQLite path")
	fs.StringVar(&f.Log.Level, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.Log.Format, "log-format", "", "log format: text or json")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&f.TraceFile, "trace-file", "", "export events as OpenTelemetry spans to this file")
	fs.BoolVar(&f.Markdown, "markdown", false, "render the final report as markdown")
	fs.StringVar(&f.Requirements, "requirements", "", "requirements brief")
	fs.StringVar(&f.RequirementsFile, "requirements-file", "", "file holding the requirements brief")
	fs.StringVar(&f.EventsLog, "events-log", "", "write events as JSON lines to this file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("flag parsing error: %w", err)
	}

	if err := loadDotEnv(*envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := Default()
	path := *configFile
	if path == "" {
		path = os.Getenv("AGENTCREW_CONFIG")
	}
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	// Only flags given on the command line override.
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "provider":
			cfg.Provider = f.Provider
		case "model":
			cfg.Model = f.Model
		case "search-model":
			cfg.SearchModel = f.SearchModel
		case "max-steps":
			cfg.MaxSteps = f.MaxSteps
		case "max-tool-rounds":
			cfg.MaxToolRounds = f.MaxToolRounds
		case "node-timeout":
			cfg.NodeTimeout = f.NodeTimeout
		case "store":
			cfg.Store.Driver = f.Store.Driver
		case "store-dsn":
			cfg.Store.DSN = f.Store.DSN
		case "log-level":
			cfg.Log.Level = f.Log.Level
		case "log-format":
			cfg.Log.Format = f.Log.Format
		case "metrics-addr":
			cfg.MetricsAddr = f.MetricsAddr
		case "trace-file":
			cfg.TraceFile = f.TraceFile
		case "markdown":
			cfg.Markdown = f.Markdown
		case "requirements":
			cfg.Requirements = f.Requirements
		case "requirements-file":
			cfg.RequirementsFile = f.RequirementsFile
		case "events-log":
			cfg.EventsLog = f.EventsLog
		}
	})

	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")

	if cfg.RequirementsFile != "" {
		data, err := os.ReadFile(cfg.RequirementsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read requirements file: %w", err)
		}
		cfg.Requirements = string(data)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and that every needed credential is set.
// search_web always runs on Gemini, so GOOGLE_API_KEY is always required.
func (c *Config) Validate() error {
	if c.GoogleAPIKey == "" {
		return fmt.Errorf("%w: GOOGLE_API_KEY not found. Please create a .env file and set your API key", ErrMissingCredential)
	}
	switch c.Provider {
	case ProviderGoogle:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for provider %s", ErrMissingCredential, c.Provider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY is required for provider %s", ErrMissingCredential, c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if c.MaxSteps < 0 {
		return fmt.Errorf("max steps must be >= 0, got %d", c.MaxSteps)
	}
	if c.MaxToolRounds < 0 {
		return fmt.Errorf("max tool rounds must be >= 0, got %d", c.MaxToolRounds)
	}
	if c.NodeTimeout < 0 {
		return fmt.Errorf("node timeout must be >= 0, got %s", c.NodeTimeout)
	}
	switch c.Store.Driver {
	case "", "memory":
	case "sqlite", "mysql":
		if c.Store.DSN == "" {
			return fmt.Errorf("store %s requires a DSN", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return lvl, nil
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("AGENTCREW_" + key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv("AGENTCREW_" + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("AGENTCREW_%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv("AGENTCREW_" + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("AGENTCREW_%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("PROVIDER", &cfg.Provider)
	str("MODEL", &cfg.Model)
	str("SEARCH_MODEL", &cfg.SearchModel)
	num("MAX_STEPS", &cfg.MaxSteps)
	num("MAX_TOOL_ROUNDS", &cfg.MaxToolRounds)
	if v, ok := os.LookupEnv("AGENTCREW_NODE_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("AGENTCREW_NODE_TIMEOUT: %w", err))
		} else {
			cfg.NodeTimeout = d
		}
	}
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_DSN", &cfg.Store.DSN)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	str("TRACE_FILE", &cfg.TraceFile)
	boolean("MARKDOWN", &cfg.Markdown)
	str("REQUIREMENTS", &cfg.Requirements)
	str("REQUIREMENTS_FILE", &cfg.RequirementsFile)
	str("EVENTS_LOG", &cfg.EventsLog)

	return errors.Join(errs...)
}
