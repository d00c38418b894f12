package check

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/afd-tools/grmovie/internal/cluster"
	"github.com/afd-tools/grmovie/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeStubPlotter drops a shell script that answers the version and header
// probe calls, and returns its path.
func writeStubPlotter(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grmplot")
	script := `#!/bin/sh
case "$1" in
version) echo "grmplot 2.1.0";;
info) echo '{"t": 250.0, "n1": 64, "n2": 64, "n3": 1, "n_prim": 8}';;
esac
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckDeps(t *testing.T) {
	stub := writeStubPlotter(t)

	tests := []struct {
		name    string
		types   []string
		plotter string
		wantErr error
	}{
		{"native only skips lookup", []string{"fluxes"}, "definitely-not-a-command", nil},
		{"external type needs plotter", []string{"log_rho"}, "definitely-not-a-command", ErrPlotterNotFound},
		{"mixed list needs plotter", []string{"fluxes", "log_rho"}, "definitely-not-a-command", ErrPlotterNotFound},
		{"plotter present", []string{"log_rho"}, stub, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.MovieTypes = tt.types
			cfg.Plotter = tt.plotter
			err := CheckDeps(&cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckDeps = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunCheck_PlotterMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Plotter = "grmplot"

	if RunCheck(context.Background(), &cfg, cluster.Alloc{World: 1}, discardLogger()) {
		t.Error("RunCheck = true with no plotter on PATH, want false")
	}
}

func TestRunCheck_WithSampleRun(t *testing.T) {
	run := t.TempDir()
	for _, f := range []string{"dump_00000000.h5", "dump_00000001.h5"} {
		if err := os.WriteFile(filepath.Join(run, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Plotter = writeStubPlotter(t)
	cfg.Paths = []string{run}

	alloc := cluster.Alloc{Rank: 0, World: 4, Launcher: "slurm"}
	if !RunCheck(context.Background(), &cfg, alloc, discardLogger()) {
		t.Error("RunCheck = false with a working plotter, want true")
	}
}

func TestRunCheck_SingleDumpFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dump_00000042.h5")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Plotter = writeStubPlotter(t)
	cfg.Paths = []string{file}

	if !RunCheck(context.Background(), &cfg, cluster.Alloc{World: 1}, discardLogger()) {
		t.Error("RunCheck = false, want true")
	}
}
