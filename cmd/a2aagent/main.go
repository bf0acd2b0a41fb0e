// Command a2aagent runs a single agent: it registers with a directory,
// holds a websocket connection open, and answers tasks by dispatching to
// registered skills.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/basket/a2a-agent/internal/a2a"
	"github.com/basket/a2a-agent/internal/cardserver"
	"github.com/basket/a2a-agent/internal/config"
	"github.com/basket/a2a-agent/internal/otel"
	"github.com/basket/a2a-agent/internal/shared"
	"github.com/basket/a2a-agent/internal/telemetry"
	"github.com/basket/a2a-agent/internal/tui"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

  %s                  Start the agent (TUI status view if a terminal, daemon otherwise)
  %s -daemon          Force daemon mode (no TUI, logs to stdout)
  %s status           Check running agent health (/healthz)

ENVIRONMENT VARIABLES:
  A2A_HOME             Agent state directory (default: ~/.a2a-agent)
  A2A_NO_TUI           Set to 1 to disable the status TUI
  A2A_AUTH_TOKEN       Bearer token presented to the directory and required of callers

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

func main() {
	daemon := flag.Bool("daemon", false, "run without the status TUI")
	flag.Usage = printUsage
	flag.Parse()

	if args := flag.Args(); len(args) > 0 && strings.ToLower(args[0]) == "status" {
		os.Exit(runStatusCommand())
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("A2A_NO_TUI") == "" && !*daemon

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fatal(nil, "load config", err)
	}

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, interactive)
	if err != nil {
		fatal(nil, "init logger", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		"agent_id", cfg.AgentID,
		"directory_http_url", cfg.DirectoryHTTPURL,
		"directory_ws_url", cfg.DirectoryWSURL,
		"auth_token", shared.RedactEnvValue("auth_token", cfg.AuthToken),
	)

	otelProvider, err := otel.Init(ctx, cfg.OTel)
	if err != nil {
		fatal(logger, "init telemetry provider", err)
	}
	defer otelProvider.Shutdown(ctx)

	rt := a2a.NewRuntime(cfg, a2a.RuntimeOptions{
		Identity: a2a.Identity{
			AgentID:     cfg.AgentID,
			DisplayName: cfg.DisplayName,
			Version:     Version,
		},
		DefaultHandler: echoHandler,
		Logger:         logger,
		Tracer:         otelProvider.Tracer,
		Meter:          otelProvider.Meter,
	})

	if err := registerEchoSkill(rt); err != nil {
		fatal(logger, "register echo skill", err)
	}

	applySkillsManifest(rt, cfg.HomeDir, logger)
	watcher := config.NewWatcher(cfg.HomeDir, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("skills manifest watcher unavailable", "error", err)
	} else {
		go func() {
			for ev := range watcher.Events() {
				if filepath.Base(ev.Path) == "skills.yaml" {
					applySkillsManifest(rt, cfg.HomeDir, logger)
				}
			}
		}()
	}

	capabilities := a2a.Capabilities{StateHistory: true}

	srv := cardserver.New(rt, cfg.AuthToken, func() a2a.Card {
		return rt.Card(capabilities, nil)
	})
	httpServer := &http.Server{Addr: cfg.BindAddr, Handler: srv.Handler()}
	serverErr := make(chan error, 1)
	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		fatal(logger, "bind card server", err)
	}
	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	logger.Info("card server listening", "addr", cfg.BindAddr)

	runtimeErr := make(chan error, 1)
	go func() {
		runtimeErr <- rt.Start(ctx, capabilities, nil)
	}()

	if interactive {
		go func() {
			snapshot := func() tui.Snapshot {
				return tui.SnapshotFromRuntime(rt)
			}
			if err := tui.Run(ctx, snapshot); err != nil && ctx.Err() == nil {
				logger.Error("status view exited with error", "error", err)
			}
			stop()
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("card server error", "error", err)
	case err := <-runtimeErr:
		logger.Error("agent runtime exited", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	rt.Stop()
	logger.Info("shutdown complete")
}

// applySkillsManifest overlays skills.yaml's descriptive metadata onto
// already-registered skills. Called at startup and again on every
// manifest change - metadata only, never handler logic.
func applySkillsManifest(rt *a2a.Runtime, homeDir string, logger *slog.Logger) {
	manifest, err := config.LoadSkillsManifest(homeDir)
	if err != nil {
		logger.Warn("skills manifest unreadable, keeping registered metadata", "error", err)
		return
	}
	for _, entry := range manifest.Skills {
		if !rt.Registry.UpdateMetadata(entry.Name, entry.Description, entry.Categories) {
			logger.Warn("skills manifest names an unregistered skill", "skill", entry.Name)
		}
	}
}

func fatal(logger *slog.Logger, step string, err error) {
	if logger != nil {
		logger.Error("startup failure", "step", step, "error", err)
	} else {
		fmt.Fprintf(os.Stderr, "startup failure: %s: %v\n", step, err)
	}
	os.Exit(1)
}
