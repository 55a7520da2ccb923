package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPaths     []string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	Stdin           bool
	StdinRate       float64
	ShowVersion     bool
	Validate        bool
}

// configPaths collects repeated -config flags as layers.
type configPaths []string

func (c *configPaths) String() string { return fmt.Sprint(*c) }

func (c *configPaths) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func parseFlags(args []string, getenv func(string) string, output io.Writer) (*CLIConfig, error) {
	env := envReader{getenv: getenv}
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(output)

	var paths configPaths
	fs.Var(&paths, "config", "Configuration file, JSON or YAML; repeat to layer (env: LIVEGRAPH_CONFIG)")
	fs.Var(&paths, "c", "Shorthand for -config")

	fs.StringVar(&cfg.LogLevel, "log-level", env.str("LIVEGRAPH_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: LIVEGRAPH_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", env.str("LIVEGRAPH_LOG_FORMAT", "json"),
		"Log format: json, text (env: LIVEGRAPH_LOG_FORMAT)")
	fs.BoolVar(&cfg.Debug, "debug", env.boolean("LIVEGRAPH_DEBUG", false),
		"Enable debug logging (env: LIVEGRAPH_DEBUG)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", env.duration("LIVEGRAPH_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: LIVEGRAPH_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&cfg.Stdin, "stdin", env.boolean("LIVEGRAPH_STDIN", false),
		"Read JSON-lines triple messages from stdin (env: LIVEGRAPH_STDIN)")
	fs.Float64Var(&cfg.StdinRate, "stdin-rate", env.float("LIVEGRAPH_STDIN_RATE", 0),
		"Maximum stdin messages per second, 0 for unlimited (env: LIVEGRAPH_STDIN_RATE)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printDetailedHelp(fs, output) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.ConfigPaths = paths
	if len(cfg.ConfigPaths) == 0 {
		if p := getenv("LIVEGRAPH_CONFIG"); p != "" {
			cfg.ConfigPaths = []string{p}
		}
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}

	for _, p := range cfg.ConfigPaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file not found: %s", p)
		}
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	if cfg.StdinRate < 0 {
		return fmt.Errorf("invalid stdin rate: %v", cfg.StdinRate)
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - real-time incremental graph updates

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run with defaults: WebSocket on :8081, metrics on :9090
  %[1]s

  # Layer a production override on a base file
  %[1]s -config=base.yaml -config=prod.json

  # Feed triples from a file at 500 messages per second
  %[1]s -stdin -stdin-rate=500 < triples.jsonl

  # Validate configuration only
  %[1]s -config=livegraph.yaml -validate

Version: %[2]s
Build: %[3]s
`, appName, Version, BuildTime)
}

// envReader reads typed environment fallbacks for flag defaults.
type envReader struct {
	getenv func(string) string
}

func (e envReader) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	if v := e.getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func (e envReader) float(key string, def float64) float64 {
	if v := e.getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	if v := e.getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
