// Package check verifies the rendering environment: the external plotter,
// the launcher allocation, and optionally a sample dump. RunCheck backs the
// --check flag; CheckDeps is the fail-fast gate before a batch dispatches.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/afd-tools/grmovie/internal/cluster"
	"github.com/afd-tools/grmovie/internal/config"
	"github.com/afd-tools/grmovie/internal/display"
	"github.com/afd-tools/grmovie/internal/dump"
	"github.com/afd-tools/grmovie/internal/plan"
	"github.com/afd-tools/grmovie/internal/render"
)

// ErrPlotterNotFound is returned by CheckDeps when the figure helper is
// required but does not resolve.
var ErrPlotterNotFound = errors.New("plotter not found on PATH")

// probePatience bounds the sample probe so a wedged HDF5 read cannot hang
// the check.
const probePatience = 30 * time.Second

// RunCheck runs the --check flow: plotter resolution and version, launcher
// allocation, CPU and memory resources, and a header probe of any sample
// paths the user passed. Everything is reported; only a missing plotter
// flips the return to false, since every other finding has a workaround.
func RunCheck(ctx context.Context, cfg *config.Config, alloc cluster.Alloc, log *slog.Logger) bool {
	log.Info("environment check", "plotter", cfg.Plotter)

	ok := checkPlotter(ctx, cfg, log)
	checkAllocation(alloc, log)
	checkResources(log)
	for _, path := range cfg.Paths {
		checkSample(ctx, cfg, log, path)
	}
	return ok
}

// checkPlotter resolves the helper and asks it for its version.
func checkPlotter(ctx context.Context, cfg *config.Config, log *slog.Logger) bool {
	path, err := exec.LookPath(cfg.Plotter)
	if err != nil {
		log.Error("plotter missing, install it or pass --plotter", "cmd", cfg.Plotter)
		log.Info("movie types with a native renderer still work without it")
		return false
	}
	log.Info("plotter found", "path", path)

	out, err := exec.CommandContext(ctx, path, "version").Output()
	if err != nil {
		log.Warn("plotter version call failed", "err", err)
		return true
	}
	log.Info("plotter version", "version", firstLine(string(out)))
	return true
}

func checkAllocation(alloc cluster.Alloc, log *slog.Logger) {
	if !alloc.Distributed() {
		log.Info("no launcher allocation detected, batches use the local pool")
		return
	}
	log.Info("launcher allocation",
		"launcher", alloc.Launcher,
		"rank", alloc.Rank,
		"world", alloc.World,
		"render_ranks", alloc.World-1)
}

func checkResources(log *slog.Logger) {
	log.Info("logical cpus", "count", runtime.NumCPU())
	avail, err := plan.AvailableBytes()
	if err != nil {
		log.Warn("memory probe failed, auto sizing falls back to cpus", "err", err)
		return
	}
	log.Info("memory available", "size", display.FormatBytes(avail))
}

// checkSample probes the header of one user-supplied dump or run directory
// and reports the numbers the planner would work from.
func checkSample(ctx context.Context, cfg *config.Config, log *slog.Logger, path string) {
	info, err := os.Stat(path)
	if err != nil {
		log.Error("sample path unreadable", "path", path, "err", err)
		return
	}

	file := path
	if info.IsDir() {
		files, err := dump.List(path, cfg.Multizone)
		if err != nil {
			log.Error("sample directory has no dumps", "path", path, "err", err)
			return
		}
		file = files[0]
		log.Info("sample run", "path", path, "dumps", len(files))
	}

	pctx, cancel := context.WithTimeout(ctx, probePatience)
	defer cancel()
	h, err := dump.Probe(pctx, cfg.Plotter, file)
	if err != nil {
		log.Error("sample probe failed", "dump", file, "err", err)
		return
	}
	log.Info("sample dump",
		"dump", filepath.Base(file),
		"t", h.T,
		"grid", fmt.Sprintf("%dx%dx%d", h.N1, h.N2, h.N3),
		"working_set", display.FormatBytes(plan.WorkingSet(h)))
}

// CheckDeps verifies the external plotter resolves before any unit is built.
// A batch whose movie types all render natively has no subprocess to fork
// and skips the requirement.
func CheckDeps(cfg *config.Config) error {
	if len(cfg.MovieTypes) > 0 && allNative(cfg.MovieTypes) {
		return nil
	}
	if _, err := exec.LookPath(cfg.Plotter); err != nil {
		return fmt.Errorf("%w: %q (install it or pass --plotter)", ErrPlotterNotFound, cfg.Plotter)
	}
	return nil
}

func allNative(types []string) bool {
	for _, t := range types {
		if !render.Native(t) {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
