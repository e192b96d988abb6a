// Package main provides the filewatchrest CLI application.
//
// filewatchrest watches one or more folders for new or changed files,
// debounces bursts, and POSTs a description of each file (optionally with
// its contents) to a remote HTTP endpoint, with retries, a per-endpoint
// circuit breaker, and a read-only diagnostics HTTP endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/0xmhha/filewatchrest/internal/telemetry"
	"github.com/0xmhha/filewatchrest/pkg/config"
	"github.com/0xmhha/filewatchrest/pkg/logger"
	"github.com/0xmhha/filewatchrest/pkg/orchestrator"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	configPath string
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "path to configuration file")
	showVersion := pflag.Bool("version", false, "show version information")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("filewatchrest %s\n", version)
		return nil
	}

	globalOpts := globalOptions{configPath: *configPath}

	args := pflag.Args()
	if len(args) == 0 {
		return runServe(globalOpts, nil)
	}

	switch args[0] {
	case "serve":
		return runServe(globalOpts, args[1:])
	case "status":
		return runStatus(globalOpts, args[1:])
	case "help":
		return showUsage()
	default:
		// No recognized subcommand: treat the first positional argument as
		// a config path and serve.
		return runServe(globalOpts, args)
	}
}

// runServe loads configuration, wires the Orchestrator, and blocks until a
// shutdown signal arrives or the config loader cannot produce a valid
// snapshot.
func runServe(globalOpts globalOptions, positional []string) error {
	resolvedPath := config.ResolvePath(globalOpts.configPath, positional)

	cfg, err := config.NewLoader(resolvedPath).Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewProvider(ctx, cfg.OtelEndpoint, version)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	orch := orchestrator.New(cfg, log)
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	if resolvedPath != "" {
		updates, err := config.Watch(ctx, resolvedPath)
		if err != nil {
			log.Warn("configuration hot-reload disabled", "path", resolvedPath, "error", err)
		} else {
			go watchConfig(ctx, orch, updates, log)
		}
	}

	log.Info("filewatchrest running", "config_path", resolvedPath)
	<-ctx.Done()

	log.Info("shutting down")
	return orch.Stop()
}

// watchConfig applies every validated configuration reload to the running
// Orchestrator until ctx is done.
func watchConfig(ctx context.Context, orch *orchestrator.Orchestrator, updates <-chan *config.Config, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			orch.Reconcile(ctx, cfg)
		}
	}
}

func showUsage() error {
	usage := `filewatchrest - file watcher with resilient HTTP delivery

Usage:
  filewatchrest [flags] [command] [config-path]

Commands:
  serve       Run the watcher/sender pipeline (default command)
  status      Query a running instance's diagnostics endpoint
  help        Show this help message

Flags:
  -c, --config    Path to configuration file
      --version   Show version information

Examples:
  filewatchrest
  filewatchrest --config /etc/filewatchrest/config.json
  filewatchrest status --config /etc/filewatchrest/config.json

Version: %s
`
	fmt.Printf(usage, version)
	return nil
}
