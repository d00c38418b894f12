package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/afd-tools/grmovie/internal/config"
	"github.com/afd-tools/grmovie/internal/diag"
	"github.com/afd-tools/grmovie/internal/display"
	"github.com/afd-tools/grmovie/internal/dump"
	"github.com/afd-tools/grmovie/internal/logging"
	"github.com/afd-tools/grmovie/internal/movie"
	"github.com/afd-tools/grmovie/internal/naming"
	"github.com/afd-tools/grmovie/internal/plan"
	"github.com/afd-tools/grmovie/internal/pool"
	"github.com/afd-tools/grmovie/internal/render"
)

// movieDir is one (run, movie type) output target.
type movieDir struct {
	movieType string
	dir       string
}

// runPlan is everything prepared for one run before dispatch.
type runPlan struct {
	run      dump.Run
	diagPath string
	scheme   naming.Scheme
	dirs     []movieDir
	units    []pool.Unit
	repr     *dump.Header // Largest probed dump, feeds the pool sizing.
}

// Run is the coordinator's batch entry point. With p nil it sizes and owns a
// local pool; a non-nil p is the already-listening distributed backend and
// the allocation fixed its worker count, so planning is skipped. Either way
// every unit of every run goes out in one dispatch pass and one drain.
func Run(ctx context.Context, cfg *config.Config, log *logging.Log, p pool.Pool) (RunStats, error) {
	start := time.Now()
	var stats RunStats

	runs, derrs := dump.Discover(cfg.Paths, cfg.Multizone)
	for _, err := range derrs {
		log.Error("discovery failed", "err", err)
		stats.NoFiles++
	}
	if len(runs) == 0 {
		log.Error("no runs to process")
		return stats, nil
	}
	stats.Runs = len(runs)

	logBatchHeader(cfg, log, runs)

	var units []pool.Unit
	var plans []runPlan
	var repr *dump.Header
	for _, run := range runs {
		rp, err := prepareRun(ctx, cfg, log, run, &stats, len(units))
		if err != nil {
			log.Error("run setup failed", "run", run.Root, "err", err)
			stats.BatchErrors++
			continue
		}
		units = append(units, rp.units...)
		plans = append(plans, rp)
		if rp.repr != nil && (repr == nil || rp.repr.ZoneBytes() > repr.ZoneBytes()) {
			repr = rp.repr
		}
	}
	stats.Units = len(units)

	if cfg.DryRun {
		logDryRun(log, plans)
		logSummary(cfg, log, &stats, time.Since(start))
		return stats, nil
	}

	if p == nil {
		workers, err := plan.Workers(plan.Request{
			Explicit: cfg.Workers,
			Files:    len(units),
			Header:   repr,
			BudgetGB: cfg.MemGB,
			Debug:    cfg.Debug,
		})
		if err != nil {
			stats.BatchErrors++
			return stats, err
		}
		log.Info("worker pool sized", "workers", workers, "units", len(units))
		p = pool.NewLocal(render.NewEngine(cfg, log.Logger), workers)
	}
	defer p.Close()

	for _, u := range units {
		p.Submit(ctx, u)
	}

	dctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	sum, derr := p.Drain(dctx)

	stats.Rendered += sum.Rendered
	stats.Failed += sum.Failed
	logFailures(log, sum.Errors)
	stats.FrameBytes = frameBytes(units, sum.Errors)

	if derr != nil {
		stats.BatchErrors++
		log.Error("batch abandoned",
			"err", derr,
			"rendered", sum.Rendered,
			"outstanding", len(units)-sum.Rendered-sum.Failed)
		logSummary(cfg, log, &stats, time.Since(start))
		return stats, derr
	}

	if cfg.Assemble {
		assembleAll(ctx, cfg, log, plans, &stats, sum.Failed)
	}

	logSummary(cfg, log, &stats, time.Since(start))
	return stats, nil
}

// prepareRun readies one run: diagnostics, headers, naming, output dirs,
// and the unit list. Unit IDs continue from idBase so they stay unique
// across runs.
func prepareRun(ctx context.Context, cfg *config.Config, log *logging.Log, run dump.Run, stats *RunStats, idBase int) (runPlan, error) {
	rp := runPlan{run: run}
	log.Info("run", "root", run.Root, "dumps", len(run.Files))

	if !cfg.NoDiag {
		table, src, attempts := diag.Load(run.Root)
		for _, a := range attempts {
			log.Debug("diagnostics candidate rejected", "source", a.Source, "err", a.Err)
		}
		if table != nil {
			rp.diagPath = src
			log.Info("diagnostics", "source", src, "rows", table.Len())
		} else {
			log.Warn("no diagnostics found", "run", run.Root)
		}
	}

	headers := probeRun(ctx, cfg, log, run.Files)
	for _, f := range run.Files {
		if headers[f] == nil {
			stats.Unprobed++
		}
	}
	if len(headers) == 0 {
		return rp, fmt.Errorf("no dump header could be read")
	}

	end := cfg.TEnd
	if end < 0 {
		end = maxTime(headers)
	}
	rp.scheme = naming.Derive(end)
	log.Debug("frame naming", "digits", rp.scheme.Digits, "fine", rp.scheme.Fine)

	auditCadence(log, run.Root, headers)

	for _, mt := range cfg.MovieTypes {
		dir := naming.FrameDir(run.Root, cfg.BasePath, cfg.OutPath, mt)
		if !cfg.DryRun {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return rp, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		rp.dirs = append(rp.dirs, movieDir{movieType: mt, dir: dir})
	}

	id := idBase
	for _, f := range run.Files {
		h := headers[f]
		if h == nil {
			continue
		}
		if h.T < cfg.TStart || (cfg.TEnd >= 0 && h.T > cfg.TEnd) {
			continue
		}
		if rp.repr == nil || h.ZoneBytes() > rp.repr.ZoneBytes() {
			rp.repr = h
		}
		name := rp.scheme.FrameName(h.T)
		for _, md := range rp.dirs {
			out := filepath.Join(md.dir, name)
			if cfg.Resume {
				if _, err := os.Stat(out); err == nil {
					stats.Skipped++
					continue
				}
			}
			rp.units = append(rp.units, pool.Unit{
				ID:        id,
				Dump:      f,
				DumpTime:  h.T,
				MovieType: md.movieType,
				OutPath:   out,
				DiagPath:  rp.diagPath,
				Options:   cfg.PlotArgs(md.movieType),
			})
			id++
		}
	}
	return rp, nil
}

// probeRun reads every dump header with a live counter on a terminal.
func probeRun(ctx context.Context, cfg *config.Config, log *logging.Log, files []string) map[string]*dump.Header {
	isTTY := logging.IsTerminal()
	headers, errs := dump.ProbeAll(ctx, cfg.Plotter, files, 0, func(done, total int) {
		printProbeProgress(isTTY, done, total)
	})
	if isTTY {
		clearProbeProgress()
	}
	for _, err := range errs {
		log.Warn("probe failed", "err", err)
	}
	return headers
}

func maxTime(headers map[string]*dump.Header) float64 {
	end := 0.0
	for _, h := range headers {
		if h.T > end {
			end = h.T
		}
	}
	return end
}

// assembleAll packs each movie's frame directory into an AVI. Any unit
// failure skips the whole step: a movie with holes is worse than no movie.
func assembleAll(ctx context.Context, cfg *config.Config, log *logging.Log, plans []runPlan, stats *RunStats, failed int) {
	if failed > 0 {
		log.Warn("skipping assembly, batch had failures", "failed", failed)
		return
	}
	for _, rp := range plans {
		for _, md := range rp.dirs {
			out := filepath.Join(filepath.Dir(md.dir), md.movieType+".avi")
			n, err := movie.Assemble(ctx, md.dir, out, cfg.FPS)
			if errors.Is(err, movie.ErrNoFrames) {
				// A window can exclude every dump; an empty dir is not a batch error.
				log.Warn("nothing to assemble", "movie", md.movieType, "dir", md.dir)
				continue
			}
			if err != nil {
				log.Error("assembly failed", "movie", md.movieType, "err", err)
				stats.BatchErrors++
				continue
			}
			attrs := []any{"out", out, "frames", n, "fps", cfg.FPS}
			if fi, err := os.Stat(out); err == nil {
				attrs = append(attrs, "size", display.FormatBytes(fi.Size()))
				if fb := dirFrameBytes(md.dir); fb > 0 {
					attrs = append(attrs, "vs_frames", display.FormatBytesWithSign(fi.Size()-fb))
				}
			}
			log.Info("movie assembled", attrs...)
		}
	}
}

// dirFrameBytes sums the frame files in one movie directory.
func dirFrameBytes(dir string) int64 {
	frames, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return 0
	}
	var total int64
	for _, f := range frames {
		if fi, err := os.Stat(f); err == nil {
			total += fi.Size()
		}
	}
	return total
}

// frameBytes totals the on-disk size of every frame this batch produced.
func frameBytes(units []pool.Unit, errs []pool.UnitError) int64 {
	failed := make(map[int]bool, len(errs))
	for _, ue := range errs {
		failed[ue.Unit.ID] = true
	}
	var total int64
	for _, u := range units {
		if failed[u.ID] {
			continue
		}
		if fi, err := os.Stat(u.OutPath); err == nil {
			total += fi.Size()
		}
	}
	return total
}

// --- Logging helpers ---

const failureLogCap = 20

func logBatchHeader(cfg *config.Config, log *logging.Log, runs []dump.Run) {
	log.Info("starting batch", "movies", strings.Join(cfg.MovieTypes, ", "), "runs", len(runs))
	if cfg.TStart > 0 || cfg.TEnd >= 0 {
		endLabel := "open"
		if cfg.TEnd >= 0 {
			endLabel = fmt.Sprintf("%g", cfg.TEnd)
		}
		log.Info("time window", "start", cfg.TStart, "end", endLabel)
	}
	log.Info("plotter", "cmd", cfg.Plotter)
	if cfg.OutPath != "" {
		log.Info("output mapping", "base", cfg.BasePath, "out", cfg.OutPath)
	}
	if cfg.Resume {
		log.Info("resume on, existing frames kept")
	}
	if cfg.DryRun {
		log.Info("dry run, nothing will render")
	}
}

func logDryRun(log *logging.Log, plans []runPlan) {
	for _, rp := range plans {
		counts := make(map[string]int, len(rp.dirs))
		for _, u := range rp.units {
			counts[u.MovieType]++
		}
		for _, md := range rp.dirs {
			log.Info("would render",
				"run", rp.run.Root,
				"movie", md.movieType,
				"frames", counts[md.movieType],
				"dir", md.dir)
		}
	}
}

func logFailures(log *logging.Log, errs []pool.UnitError) {
	for i, ue := range errs {
		if i == failureLogCap {
			log.Error("more failures suppressed", "count", len(errs)-failureLogCap)
			return
		}
		log.Error("frame failed",
			"movie", ue.Unit.MovieType,
			"dump", filepath.Base(ue.Unit.Dump),
			"err", ue.Err)
	}
}

func logSummary(cfg *config.Config, log *logging.Log, stats *RunStats, elapsed time.Duration) {
	attrs := []any{
		"runs", stats.Runs,
		"rendered", stats.Rendered,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"dur", elapsed.Round(time.Second),
	}
	if stats.Rendered > 0 {
		attrs = append(attrs, "rate", display.FormatRate(stats.Rendered, elapsed))
	}
	log.Info("batch done", attrs...)
	if stats.Unprobed > 0 {
		log.Warn("dumps dropped at probe", "count", stats.Unprobed)
	}
	if stats.FrameBytes > 0 {
		log.Info("frames written", "size", display.FormatBytes(stats.FrameBytes))
	}
	if cfg.DryRun {
		log.Info("dry run complete", "units", stats.Units)
	}
}
