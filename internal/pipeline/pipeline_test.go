package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/afd-tools/grmovie/internal/config"
	"github.com/afd-tools/grmovie/internal/logging"
	"github.com/afd-tools/grmovie/internal/pool"
	"github.com/afd-tools/grmovie/internal/render"
)

// writeRun lays out a dump directory; each file's content is its own
// simulated time, which the stub plotter echoes back as the header.
func writeRun(t *testing.T, times ...float64) string {
	t.Helper()
	root := t.TempDir()
	for i, tm := range times {
		name := fmt.Sprintf("dump_%08d.h5", i)
		if err := os.WriteFile(filepath.Join(root, name), []byte(fmt.Sprintf("%g", tm)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// stubPlotter answers "info --json <dump>" from the dump's content and
// "frame ... --out <png> ..." by copying a prebuilt PNG into place.
func stubPlotter(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	tpl := filepath.Join(dir, "template.png")
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	f, err := os.Create(tpl)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	script := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "info" ]; then
  t=$(cat "$3")
  echo "{\"t\": $t, \"n1\": 8, \"n2\": 8, \"n3\": 8, \"n_prim\": 8}"
  exit 0
fi
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--out" ]; then out="$a"; fi
  prev="$a"
done
cp %s "$out"
`, tpl)

	path := filepath.Join(dir, "grmplot")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietConfig(t *testing.T, root string) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.MovieTypes = []string{"log_rho"}
	cfg.Paths = []string{root}
	cfg.Plotter = stubPlotter(t)
	cfg.Workers = 2
	cfg.LogLevel = config.LevelError
	cfg.ColorMode = config.ColorNever
	return cfg
}

func quietLog(t *testing.T, cfg *config.Config) *logging.Log {
	t.Helper()
	log, err := logging.New(cfg, true)
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return log
}

// frameSet lists the PNG frames under dir in name order.
func frameSet(t *testing.T, dir string) []string {
	t.Helper()
	frames, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	return frames
}

// --- batch pipeline tests ---

func TestRunRendersEveryFrame(t *testing.T) {
	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	log := quietLog(t, &cfg)

	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Runs != 1 || stats.Units != 4 || stats.Rendered != 4 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 1 run, 4 units, 4 rendered, 0 failed", stats)
	}
	if stats.Fatal() {
		t.Errorf("Fatal() = true on a clean batch")
	}
	if stats.FrameBytes == 0 {
		t.Errorf("FrameBytes = 0, want the written frame sizes")
	}

	// End time 15 gives two digits, so short-run fine naming applies.
	frameDir := filepath.Join(root, "frames_log_rho")
	for _, name := range []string{"frame_t00.00.png", "frame_t05.00.png", "frame_t10.00.png", "frame_t15.00.png"} {
		if _, err := os.Stat(filepath.Join(frameDir, name)); err != nil {
			t.Errorf("missing frame %s: %v", name, err)
		}
	}
}

func TestRunWindowFiltersUnits(t *testing.T) {
	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	cfg.TStart = 5
	cfg.TEnd = 10
	log := quietLog(t, &cfg)

	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Units != 2 || stats.Rendered != 2 {
		t.Errorf("stats = %+v, want 2 units rendered inside [5, 10]", stats)
	}
}

func TestRunResumeSkipsExistingFrames(t *testing.T) {
	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	cfg.Resume = true
	log := quietLog(t, &cfg)

	frameDir := filepath.Join(root, "frames_log_rho")
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(frameDir, "frame_t05.00.png"), []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Skipped != 1 || stats.Units != 3 || stats.Rendered != 3 {
		t.Errorf("stats = %+v, want 1 skipped, 3 rendered", stats)
	}
}

func TestRunResumeIdempotent(t *testing.T) {
	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	log := quietLog(t, &cfg)

	if _, err := Run(context.Background(), &cfg, log, nil); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	frameDir := filepath.Join(root, "frames_log_rho")
	before := frameSet(t, frameDir)
	if len(before) != 4 {
		t.Fatalf("first run wrote %d frames, want 4", len(before))
	}

	cfg.Resume = true
	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}
	if stats.Units != 0 || stats.Rendered != 0 || stats.Skipped != 4 {
		t.Errorf("stats = %+v, want 4 skipped and zero units dispatched", stats)
	}
	if stats.Fatal() {
		t.Errorf("Fatal() = true on a fully resumed batch")
	}

	after := frameSet(t, frameDir)
	if len(after) != len(before) {
		t.Fatalf("frame count changed across resumed re-run: %d != %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("frame set changed: %s became %s", before[i], after[i])
		}
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	cfg.DryRun = true
	log := quietLog(t, &cfg)

	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Units != 4 || stats.Rendered != 0 {
		t.Errorf("stats = %+v, want 4 counted units and nothing rendered", stats)
	}

	frames, _ := filepath.Glob(filepath.Join(root, "frames_log_rho", "*.png"))
	if len(frames) != 0 {
		t.Errorf("dry run wrote %d frames", len(frames))
	}
}

func TestRunEmptyPathIsFatal(t *testing.T) {
	cfg := quietConfig(t, t.TempDir())
	log := quietLog(t, &cfg)

	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.NoFiles != 1 {
		t.Errorf("NoFiles = %d, want 1", stats.NoFiles)
	}
	if !stats.Fatal() {
		t.Errorf("Fatal() = false for a path without dumps")
	}
}

func TestRunAssemblesMovies(t *testing.T) {
	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	cfg.Assemble = true
	log := quietLog(t, &cfg)

	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Fatal() {
		t.Fatalf("stats = %+v, want a clean batch", stats)
	}

	avi := filepath.Join(root, "log_rho.avi")
	if fi, err := os.Stat(avi); err != nil || fi.Size() == 0 {
		t.Errorf("movie not assembled at %s: %v", avi, err)
	}
}

func TestRunAssembleSkipsEmptyWindow(t *testing.T) {
	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	cfg.Assemble = true
	cfg.TStart = 100 // Past every dump, so the frame dir stays empty.
	log := quietLog(t, &cfg)

	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Units != 0 {
		t.Errorf("Units = %d, want 0 inside an excluding window", stats.Units)
	}
	if stats.Fatal() {
		t.Errorf("stats = %+v, an empty frame dir must not fail the batch", stats)
	}
	if _, err := os.Stat(filepath.Join(root, "log_rho.avi")); !os.IsNotExist(err) {
		t.Errorf("movie written for an empty frame dir")
	}
}

func TestRunMultipleMovieTypes(t *testing.T) {
	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	cfg.MovieTypes = []string{"log_rho", "prims"}
	log := quietLog(t, &cfg)

	stats, err := Run(context.Background(), &cfg, log, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Units != 8 || stats.Rendered != 8 {
		t.Errorf("stats = %+v, want 8 units across two movie types", stats)
	}
	for _, sub := range []string{"frames_log_rho", "frames_prims"} {
		frames, _ := filepath.Glob(filepath.Join(root, sub, "*.png"))
		if len(frames) != 4 {
			t.Errorf("%s holds %d frames, want 4", sub, len(frames))
		}
	}
}

func TestRunWithDistributedPool(t *testing.T) {
	t.Setenv(pool.EnvCoordFile, filepath.Join(t.TempDir(), "coord"))

	root := writeRun(t, 0, 5, 10, 15)
	cfg := quietConfig(t, root)
	log := quietLog(t, &cfg)

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := pool.NewCoordinator(discard, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	var wg sync.WaitGroup
	workerErrs := make([]error, 2)
	for i := range workerErrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			workerErrs[i] = pool.RunWorker(context.Background(), discard, render.NewEngine(&cfg, discard))
		}(i)
	}

	stats, err := Run(context.Background(), &cfg, log, c)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Rendered != 4 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 4 rendered over the wire", stats)
	}

	wg.Wait()
	for i, werr := range workerErrs {
		if werr != nil {
			t.Errorf("worker %d returned %v, want nil", i, werr)
		}
	}
}

// --- stats tests ---

func TestRunStatsFatal(t *testing.T) {
	tests := []struct {
		name  string
		stats RunStats
		want  bool
	}{
		{"clean", RunStats{Runs: 1, Rendered: 10}, false},
		{"unit failures alone stay zero", RunStats{Rendered: 8, Failed: 2}, false},
		{"missing files", RunStats{NoFiles: 1}, true},
		{"batch error", RunStats{BatchErrors: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.Fatal(); got != tt.want {
				t.Errorf("Fatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- cadence audit tests ---

func TestComputeStatsClassify(t *testing.T) {
	// Near-regular spacing with one huge gap.
	dts := []float64{4.9, 5.0, 5.1, 4.95, 5.05, 5.0, 4.9, 5.1, 50}
	b := computeStats(dts)
	if !b.valid {
		t.Fatal("computeStats() not valid for spread data")
	}
	if got := b.classify(50); got != "extreme" {
		t.Errorf("classify(50) = %q, want extreme", got)
	}
	if got := b.classify(5); got != "" {
		t.Errorf("classify(5) = %q, want normal", got)
	}
}

func TestComputeStatsDegenerate(t *testing.T) {
	if b := computeStats([]float64{5, 5}); b.valid {
		t.Errorf("computeStats() valid for too few samples")
	}
	if b := computeStats([]float64{5, 5, 5, 5, 5}); b.valid {
		t.Errorf("computeStats() valid for zero IQR")
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	if got := percentile(sorted, 25); got != 1.75 {
		t.Errorf("percentile(25) = %g, want 1.75", got)
	}
	if got := percentile(sorted, 100); got != 4 {
		t.Errorf("percentile(100) = %g, want 4", got)
	}
}
