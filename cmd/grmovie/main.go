// Command grmovie is the CLI entrypoint for the batch GRMHD frame renderer.
//
// It parses flags, validates configuration, detects the launcher allocation,
// and either runs environment diagnostics (--check) or the render pipeline.
// Under a multi-rank allocation rank 0 coordinates and the remaining ranks
// pull frame units off a TCP queue; standalone it renders on a local pool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/afd-tools/grmovie/internal/check"
	"github.com/afd-tools/grmovie/internal/cluster"
	"github.com/afd-tools/grmovie/internal/config"
	"github.com/afd-tools/grmovie/internal/display"
	"github.com/afd-tools/grmovie/internal/logging"
	"github.com/afd-tools/grmovie/internal/pipeline"
	"github.com/afd-tools/grmovie/internal/pool"
	"github.com/afd-tools/grmovie/internal/render"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap — the logger doesn't exist yet, so errors go
	// directly to stderr via fmt. Once logging.New succeeds, all output
	// goes through the logger for consistent formatting and log-file capture.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "grmovie: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "grmovie: %v\n", err)
		return 1
	}

	// The launcher allocation decides who we are. --no-mpi and --debug both
	// pin the whole batch to the local pool on this rank.
	alloc := cluster.Detect()
	distributed := alloc.Distributed() && !cfg.NoMPI && !cfg.Debug
	coordinator := !distributed || alloc.Coordinator()

	log, err := logging.New(&cfg, coordinator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grmovie: %v\n", err)
		return 1
	}
	defer log.Close()

	// Phase 2: Signal handling — cancel the context on SIGINT/SIGTERM so
	// in-flight frames finish and queued ones are abandoned cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("interrupt received, finishing in-flight frames")
		cancel()
	}()

	if cfg.CheckOnly {
		if distributed && !alloc.Coordinator() {
			return 0 // Only rank 0 reports.
		}
		if !check.RunCheck(ctx, &cfg, alloc, log.Logger) {
			return 1
		}
		return 0
	}

	// Phase 3: Worker ranks hand their life to the pull loop and never
	// return until the coordinator runs out of units.
	if distributed && !alloc.Coordinator() {
		if err := pool.RunWorker(ctx, log.Logger, render.NewEngine(&cfg, log.Logger)); err != nil {
			log.Error("worker failed", "rank", alloc.Rank, "err", err)
			return 1
		}
		return 0
	}

	// Phase 4: Coordinator (or standalone) path.
	if logging.IsTerminal() {
		display.PrintBanner()
	}
	if distributed {
		log.Info("launcher allocation",
			"launcher", alloc.Launcher,
			"world", alloc.World,
			"render_ranks", alloc.World-1)
	}

	// Fail fast if the plotter is missing before any unit is queued.
	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("dependency check failed", "err", err)
		return 1
	}

	if cfg.Debug {
		stop, err := startProfile(cfg.ProfileOut)
		if err != nil {
			log.Error("cpu profile failed to start", "path", cfg.ProfileOut, "err", err)
			return 1
		}
		defer stop()
		log.Info("debug mode", "workers", 1, "profile", cfg.ProfileOut)
	}

	var p pool.Pool
	if distributed {
		c, err := pool.NewCoordinator(log.Logger, "")
		if err != nil {
			log.Error("coordinator failed to start", "err", err)
			return 1
		}
		// Close is idempotent; this covers the early returns the pipeline's
		// own close does not reach.
		defer c.Close()
		p = c
		log.Info("distributed pool ready", "addr", c.Addr(), "workers", alloc.World-1)
	}

	stats, err := pipeline.Run(ctx, &cfg, log, p)
	if err != nil {
		log.Error("batch failed", "err", err)
		return 1
	}
	if stats.Fatal() {
		return 1
	}
	// Debug runs exist to chase a failure, so surface it in the exit code.
	if cfg.Debug && stats.Failed > 0 {
		return 1
	}
	return 0
}

// startProfile begins a CPU profile and returns the stop closure.
func startProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
