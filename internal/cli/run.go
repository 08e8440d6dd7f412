package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"pgfnsync/internal/automation/stats"
	"pgfnsync/internal/platform/config"
	"pgfnsync/internal/platform/httpserver"
)

// Mode is what a single invocation does.
type Mode string

const (
	ModeOnce       Mode = "once"
	ModeContinuous Mode = "continuous"
	ModeServer     Mode = "server"
	ModeTest       Mode = "test"
)

// ModeFor resolves flags against the configured default.
func ModeFor(opts RootOptions, cfg config.AutomationConfig) Mode {
	switch {
	case opts.Test:
		return ModeTest
	case opts.Server:
		return ModeServer
	case cfg.ContinuousMode:
		return ModeContinuous
	default:
		return ModeOnce
	}
}

// Engine is what the commands drive.
type Engine interface {
	CheckConnections(ctx context.Context) error
	RunOnce(ctx context.Context) (stats.Summary, error)
	RunContinuously(ctx context.Context) error
	Stop()
}

// runtime is everything a mode needs, built once per invocation.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	engine  Engine
	monitor http.Handler
	close   func()
}

type builder func(ctx context.Context) (*runtime, error)

func run(ctx context.Context, out io.Writer, opts RootOptions, build builder) error {
	rt, err := build(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	mode := ModeFor(opts, rt.cfg.Automation)
	rt.logger.InfoContext(ctx, "starting automation",
		"mode", mode,
		"version", Version,
		"pipeline", rt.cfg.Bitrix.TargetPipeline,
		"stages", rt.cfg.Bitrix.TargetStages,
	)

	switch mode {
	case ModeTest:
		return runTest(ctx, out, rt)
	case ModeServer:
		return runServer(ctx, rt)
	case ModeContinuous:
		return rt.engine.RunContinuously(ctx)
	default:
		return runOnce(ctx, out, rt)
	}
}

func runTest(ctx context.Context, out io.Writer, rt *runtime) error {
	if err := rt.engine.CheckConnections(ctx); err != nil {
		fmt.Fprintf(out, "connectivity check failed: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "connectivity check passed: crm and registry reachable")
	return nil
}

func runOnce(ctx context.Context, out io.Writer, rt *runtime) error {
	summary, err := rt.engine.RunOnce(ctx)
	if summary.ExecutionID != "" {
		fmt.Fprintln(out, summary.String())
	}
	return err
}

// runServer serves the monitor until the loop ends. A stopped loop shuts the
// server down; a failed server stops the loop.
func runServer(ctx context.Context, rt *runtime) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := httpserver.New(rt.cfg.Monitor.Addr, rt.monitor)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return rt.engine.RunContinuously(gctx)
	})
	g.Go(func() error {
		err := httpserver.Serve(gctx, srv, rt.logger)
		if err != nil {
			rt.engine.Stop()
			return fmt.Errorf("monitor server: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
