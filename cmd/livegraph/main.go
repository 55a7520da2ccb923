// Package main implements the livegraph daemon. It keeps a materialized
// triple graph up to date from stdin or NATS and streams every change to
// WebSocket clients and NATS subjects.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/livegraph/config"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "livegraph"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args, os.Getenv, os.Stderr)
	if err == flag.ErrHelp {
		return nil
	}
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s (%s)\n", appName, Version, BuildTime)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPaths)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config", cfg.String())
		return nil
	}

	slog.Info("Starting livegraph",
		"version", Version,
		"build_time", BuildTime,
		"config_paths", cliCfg.ConfigPaths)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	if cliCfg.Stdin {
		a.stdin = os.Stdin
		a.stdinRate = cliCfg.StdinRate
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := a.run(ctx)
	slog.Info("Shutting down", "timeout", cliCfg.ShutdownTimeout)
	if err := a.shutdown(cliCfg.ShutdownTimeout); err != nil {
		slog.Error("Shutdown incomplete", "error", err)
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	slog.Info("Shutdown complete")
	return nil
}

// loadConfig layers every path over the defaults. LIVEGRAPH_* environment
// overrides are applied last.
func loadConfig(paths []string) (*config.Config, error) {
	loader := config.NewLoader()
	for _, p := range paths {
		loader.AddLayer(p)
	}
	return loader.Load()
}
