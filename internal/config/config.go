// Package config holds runtime configuration: defaults, CLI flag parsing,
// preset-file loading, and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// --- Enum types for validated string fields ---

// LogLevel is the minimum severity the coordinator prints.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info" // Default.
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Slog maps the level onto the slog scale.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat selects the log handler.
type LogFormat string

const (
	LogAuto LogFormat = "auto" // Tinted text, colorless when stderr is not a TTY (default).
	LogText LogFormat = "text" // Tinted text regardless of destination.
	LogJSON LogFormat = "json" // One JSON object per line.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stderr is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then mutated by [ParseFlags] before being passed (by pointer) to packages
// that need it. Fields are grouped by concern with inline documentation of
// defaults.
type Config struct {
	// Request (set from positional args).
	MovieTypes []string // Figure types to render, one frame set each.
	Paths      []string // Run directories and/or individual dump files.

	// Time window in simulation units.
	TStart float64 // Default: 0.
	TEnd   float64 // Default: -1 (open; resolved from the last dump).

	// Output mapping.
	BasePath string // Input root replaced by OutPath when deriving frame dirs. Env: GRM_BASE_PATH.
	OutPath  string // Output root. Env: GRM_OUT_PATH. Empty: frames land next to the dumps.

	// Execution.
	Workers    int           // Default: 0 (auto-size from memory and CPUs).
	MemGB      float64       // Memory budget in GiB for auto sizing. Default: 0 (probe available).
	Timeout    time.Duration // Drain guard for the whole batch. Default: 12h.
	NoMPI      bool          // Force the local backend even under a launcher allocation.
	Debug      bool          // Sequential rendering plus a CPU profile.
	ProfileOut string        // pprof output path. Default: "grmovie.pprof".

	// Behavior flags.
	Resume    bool // Skip units whose frame file already exists.
	DryRun    bool
	Multizone bool // Merge numbered zone subdirectories into one run.
	NoDiag    bool // Skip the diagnostics search entirely.
	Assemble  bool // Pack frames into an AVI after a clean drain.
	FPS       int  // Assembly frame rate. Default: 24.

	// Plotter subprocess.
	Plotter string // Figure helper command. Default: "grmplot". Env: GRM_PLOTTER.

	// Global plot overrides, applied to every movie type. Empty means unset.
	VMin string
	VMax string

	// Per-movie-type options loaded from the preset file.
	moviePresets map[string]map[string]string

	// Display and logging.
	LogLevel  LogLevel  // Default: "info".
	LogFormat LogFormat // Default: "auto".
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	CheckOnly bool      // Run --check diagnostics and exit.

	ConfigFile string // Explicit preset file path (--config).
}

// DefaultConfig returns a Config with all defaults applied. Used as the base
// before [ParseFlags] applies CLI, environment, and preset overrides.
func DefaultConfig() Config {
	return Config{
		TStart:     0,
		TEnd:       -1,
		Workers:    0,
		MemGB:      0,
		Timeout:    12 * time.Hour,
		FPS:        24,
		Plotter:    "grmplot",
		ProfileOut: "grmovie.pprof",
		LogLevel:   LevelInfo,
		LogFormat:  LogAuto,
		ColorMode:  ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges. When not in CheckOnly mode,
// it also requires the movie-type list and at least one path.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		// valid
	default:
		return errors.New("invalid log level (use 'debug', 'info', 'warn' or 'error')")
	}

	switch c.LogFormat {
	case LogAuto, LogText, LogJSON:
		// valid
	default:
		return errors.New("invalid log format (use 'auto', 'text' or 'json')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.Workers < 0 {
		return errors.New("nthreads must not be negative")
	}
	if c.MemGB < 0 {
		return errors.New("mem must not be negative")
	}
	if c.FPS <= 0 {
		return errors.New("fps must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.TEnd >= 0 && c.TEnd < c.TStart {
		return fmt.Errorf("end time %g precedes start time %g", c.TEnd, c.TStart)
	}
	if _, err := parseOptFloat(c.VMin, "vmin"); err != nil {
		return err
	}
	if _, err := parseOptFloat(c.VMax, "vmax"); err != nil {
		return err
	}

	if c.CheckOnly {
		return nil
	}
	if len(c.MovieTypes) == 0 {
		return errors.New("need a movie-type list (e.g. 'log_rho' or 'simplest,fluxes')")
	}
	if len(c.Paths) == 0 {
		return errors.New("need at least one run directory or dump file")
	}
	return nil
}

// PlotArgs returns the plot option record for one movie type: preset-file
// values first, global CLI overrides on top. The map is owned by the caller
// and safe to serialize into a work unit.
func (c *Config) PlotArgs(movieType string) map[string]string {
	out := map[string]string{}
	for k, v := range c.moviePresets[movieType] {
		out[k] = v
	}
	if c.VMin != "" {
		out["vmin"] = c.VMin
	}
	if c.VMax != "" {
		out["vmax"] = c.VMax
	}
	return out
}

// parseOptFloat validates an optional numeric flag value; empty passes.
func parseOptFloat(s, name string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number (got %q)", name, s)
	}
	return v, nil
}
