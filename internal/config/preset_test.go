package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePreset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grmovie.hcl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestApplyPreset_FillsUnsetFlags(t *testing.T) {
	path := writePreset(t, `
workers = 16
mem_gb  = 64
timeout = "6h"
plotter = "pyharm-plot"
fps     = 30

movie "log_rho" {
  vmin = -5
  vmax = 1
  log  = true
}

movie "fluxes" {
  size = 8.5
}
`)

	cfg := DefaultConfig()
	cfg.ConfigFile = path
	if err := applyPreset(&cfg, map[string]bool{}); err != nil {
		t.Fatal(err)
	}

	if cfg.Workers != 16 {
		t.Errorf("Workers = %d, want 16", cfg.Workers)
	}
	if cfg.MemGB != 64 {
		t.Errorf("MemGB = %g, want 64", cfg.MemGB)
	}
	if cfg.Timeout != 6*time.Hour {
		t.Errorf("Timeout = %v, want 6h", cfg.Timeout)
	}
	if cfg.Plotter != "pyharm-plot" {
		t.Errorf("Plotter = %q, want pyharm-plot", cfg.Plotter)
	}
	if cfg.FPS != 30 {
		t.Errorf("FPS = %d, want 30", cfg.FPS)
	}

	opts := cfg.PlotArgs("log_rho")
	if opts["vmin"] != "-5" || opts["vmax"] != "1" || opts["log"] != "true" {
		t.Errorf("log_rho options = %v", opts)
	}
	if opts := cfg.PlotArgs("fluxes"); opts["size"] != "8.5" {
		t.Errorf("fluxes options = %v", opts)
	}
}

func TestApplyPreset_FlagsWin(t *testing.T) {
	path := writePreset(t, `
workers = 16
plotter = "pyharm-plot"
`)

	cfg := DefaultConfig()
	cfg.ConfigFile = path
	cfg.Workers = 4
	set := map[string]bool{"nthreads": true, "plotter": true}
	if err := applyPreset(&cfg, set); err != nil {
		t.Fatal(err)
	}

	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, explicitly set flag must win", cfg.Workers)
	}
	if cfg.Plotter != "grmplot" {
		t.Errorf("Plotter = %q, explicitly set flag must win", cfg.Plotter)
	}
}

func TestApplyPreset_BadTimeout(t *testing.T) {
	path := writePreset(t, `timeout = "whenever"`)

	cfg := DefaultConfig()
	cfg.ConfigFile = path
	if err := applyPreset(&cfg, map[string]bool{}); err == nil {
		t.Error("applyPreset should reject an unparsable timeout")
	}
}

func TestApplyPreset_MissingDefaultIsFine(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg := DefaultConfig()
	if err := applyPreset(&cfg, map[string]bool{}); err != nil {
		t.Errorf("no preset file should be fine, got: %v", err)
	}
}

func TestApplyPreset_MissingExplicitFileFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfigFile = filepath.Join(t.TempDir(), "absent.hcl")
	if err := applyPreset(&cfg, map[string]bool{}); err == nil {
		t.Error("an explicit --config path that does not exist should fail")
	}
}
