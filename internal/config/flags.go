package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into window, paths, execution, behavior, plotter, display,
// and utility. Preset-file and environment values are applied after Parse so
// explicitly passed flags always win.

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// version is shown in --version and help; override at build time with
// -ldflags "-X github.com/afd-tools/grmovie/internal/config.version=...".
var version = "1.0.0-dev"

// ParseFlags parses os.Args into cfg. On --help or --version it prints and exits.
// On error it returns non-nil (e.g. unknown flag, missing positional args).
func ParseFlags(cfg *Config) error {
	fs := flag.NewFlagSet("grmovie", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	// Color and exit flags are captured here and applied to cfg after Parse,
	// the same way preset values are gated on what the user actually passed.
	var extra extraFlags

	defineWindowFlags(fs, cfg)
	definePathFlags(fs, cfg)
	defineExecutionFlags(fs, cfg)
	defineBehaviorFlags(fs, cfg)
	definePlotterFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &extra)
	defineUtilityFlags(fs, cfg, &extra)

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	applyExtraFlags(cfg, &extra)

	if extra.showHelp {
		printUsage(fs)
		os.Exit(0)
	}
	if extra.showVersion {
		fmt.Fprintln(os.Stdout, "grmovie v"+version)
		os.Exit(0)
	}

	if err := parsePositionalArgs(fs, cfg); err != nil {
		return err
	}
	if err := applyPreset(cfg, set); err != nil {
		return err
	}
	applyEnvOverrides(cfg, set)
	return nil
}

// extraFlags holds flags that are applied after Parse: color mode overrides
// and the two exit-after-printing switches.
type extraFlags struct {
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// defineWindowFlags registers --start and --end.
func defineWindowFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Float64Var(&cfg.TStart, "start", cfg.TStart, "First simulation time to render")
	fs.Float64Var(&cfg.TEnd, "end", cfg.TEnd, "Last simulation time to render")
}

// definePathFlags registers --base-path and --out-path.
func definePathFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.BasePath, "base-path", cfg.BasePath, "Input root replaced in output mapping")
	fs.StringVar(&cfg.OutPath, "out-path", cfg.OutPath, "Output root for frame directories")
}

// defineExecutionFlags registers -n/--nthreads, --mem, --timeout, --no-mpi, --debug, --profile.
func defineExecutionFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Workers, "nthreads", cfg.Workers, "Worker count (0 = auto)")
	fs.IntVar(&cfg.Workers, "n", cfg.Workers, "Same as --nthreads")
	fs.Float64Var(&cfg.MemGB, "mem", cfg.MemGB, "Memory budget in GiB for auto sizing (0 = probe)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Wall-clock guard for the whole batch")
	fs.BoolVar(&cfg.NoMPI, "no-mpi", false, "Stay on the local pool even under a launcher")
	fs.BoolVar(&cfg.Debug, "debug", false, "Sequential rendering plus a CPU profile")
	fs.StringVar(&cfg.ProfileOut, "profile", cfg.ProfileOut, "CPU profile output path")
}

// defineBehaviorFlags registers resume, dry-run, multizone, no-diag, assemble, fps.
func defineBehaviorFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.Resume, "resume", false, "Skip frames that already exist")
	fs.BoolVar(&cfg.Resume, "r", false, "Same as --resume")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Plan only; do not render")
	fs.BoolVar(&cfg.DryRun, "d", false, "Same as --dry-run")
	fs.BoolVar(&cfg.Multizone, "multizone", false, "Merge zone subdirectories into one run")
	fs.BoolVar(&cfg.NoDiag, "no-diag", false, "Skip the diagnostics search")
	fs.BoolVar(&cfg.Assemble, "assemble", false, "Pack frames into <type>.avi after a clean batch")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "Assembly frame rate")
}

// definePlotterFlags registers --plotter, --vmin, --vmax, --config.
func definePlotterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Plotter, "plotter", cfg.Plotter, "Figure helper command")
	fs.StringVar(&cfg.VMin, "vmin", "", "Color scale floor for every movie type")
	fs.StringVar(&cfg.VMax, "vmax", "", "Color scale ceiling for every movie type")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Preset file path")
}

// defineDisplayFlags registers --color, --no-color, --log-level, --log-format, --log.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, x *extraFlags) {
	fs.BoolVar(&x.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&x.noColor, "no-color", false, "Disable colored logs")
	fs.Var(&logLevelValue{&cfg.LogLevel}, "log-level", "Log level: debug | info | warn | error")
	fs.Var(&logFormatValue{&cfg.LogFormat}, "log-format", "Log format: auto | text | json")
	fs.StringVar(&cfg.LogFile, "log", "", "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", "", "Same as --log")
}

// defineUtilityFlags registers --check, --version and --help (exit after printing).
func defineUtilityFlags(fs *flag.FlagSet, cfg *Config, x *extraFlags) {
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run environment diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.BoolVar(&x.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&x.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&x.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&x.showHelp, "h", false, "Same as --help")
}

// applyExtraFlags copies the captured color switches into cfg.
func applyExtraFlags(cfg *Config, x *extraFlags) {
	if x.noColor {
		cfg.ColorMode = ColorNever
	} else if x.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// parsePositionalArgs splits the positionals into the movie-type list and the
// dump paths. In CheckOnly mode the positionals are optional; any paths given
// become probe samples.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if cfg.CheckOnly {
		for _, p := range args {
			cfg.Paths = append(cfg.Paths, NormalizeDirArg(p))
		}
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("need a movie-type list and at least one path")
	}
	for _, t := range strings.Split(args[0], ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			cfg.MovieTypes = append(cfg.MovieTypes, t)
		}
	}
	if len(cfg.MovieTypes) == 0 {
		return fmt.Errorf("empty movie-type list %q", args[0])
	}
	for _, p := range args[1:] {
		cfg.Paths = append(cfg.Paths, NormalizeDirArg(p))
	}
	return nil
}

// applyEnvOverrides fills path and plotter settings from the environment when
// the corresponding flag was not passed. Flags win over the environment; the
// environment wins over the preset file.
func applyEnvOverrides(cfg *Config, set map[string]bool) {
	if !set["base-path"] {
		if v := os.Getenv("GRM_BASE_PATH"); v != "" {
			cfg.BasePath = NormalizeDirArg(v)
		}
	}
	if !set["out-path"] {
		if v := os.Getenv("GRM_OUT_PATH"); v != "" {
			cfg.OutPath = NormalizeDirArg(v)
		}
	}
	if !set["plotter"] {
		if v := os.Getenv("GRM_PLOTTER"); v != "" {
			cfg.Plotter = v
		}
	}
}

// printUsage writes the help text to stderr. Column-aligned for readability.
func printUsage(fs *flag.FlagSet) {
	const col1 = 28 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "grmovie v" + version + " - batch frame renderer for GRMHD dumps"},
		{"", ""},
		{"  grmovie [OPTIONS] <movie-type[,movie-type...]> <path>...", ""},
		{"", ""},
		{"Window", ""},
		{"  --start <t>", "First simulation time to render (default: 0)"},
		{"  --end <t>", "Last simulation time to render (default: last dump)"},
		{"", ""},
		{"Paths", ""},
		{"  --base-path <dir>", "Input root replaced in output mapping (env GRM_BASE_PATH)"},
		{"  --out-path <dir>", "Output root for frame directories (env GRM_OUT_PATH)"},
		{"", ""},
		{"Execution", ""},
		{"  -n, --nthreads <n>", "Worker count (default: auto from memory and CPUs)"},
		{"  --mem <GiB>", "Memory budget for auto sizing (default: probe system)"},
		{"  --timeout <dur>", "Wall-clock guard for the batch (default: 12h)"},
		{"  --no-mpi", "Stay on the local pool even under a launcher"},
		{"  --debug", "Sequential rendering plus a CPU profile"},
		{"  --profile <path>", "CPU profile output (default: grmovie.pprof)"},
		{"", ""},
		{"Behavior", ""},
		{"  -r, --resume", "Skip frames that already exist"},
		{"  -d, --dry-run", "Plan only; do not render"},
		{"  --multizone", "Merge zone subdirectories into one run"},
		{"  --no-diag", "Skip the diagnostics search"},
		{"  --assemble", "Pack frames into <type>.avi after a clean batch"},
		{"  --fps <n>", "Assembly frame rate (default: 24)"},
		{"", ""},
		{"Plotter", ""},
		{"  --plotter <cmd>", "Figure helper command (default: grmplot, env GRM_PLOTTER)"},
		{"  --vmin <v>, --vmax <v>", "Color scale overrides for every movie type"},
		{"  --config <path>", "Preset file (default: ./grmovie.hcl when present)"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  --log-level <level>", "debug | info | warn | error (default: info)"},
		{"  --log-format <fmt>", "auto | text | json (default: auto)"},
		{"  -l, --log <path>", "Append logs to file"},
		{"", ""},
		{"Utility", ""},
		{"  -c, --check", "Environment diagnostics (plotter, launcher) and exit"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(os.Stderr)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(os.Stderr, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(os.Stderr, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(os.Stderr, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapters so we can use enum types (LogLevel, LogFormat) with flag.Var.

type logLevelValue struct{ p *LogLevel }

func (v *logLevelValue) String() string { return string(*v.p) }
func (v *logLevelValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug":
		*v.p = LevelDebug
	case "info":
		*v.p = LevelInfo
	case "warn", "warning":
		*v.p = LevelWarn
	case "error":
		*v.p = LevelError
	default:
		return fmt.Errorf("invalid log level %q (use 'debug', 'info', 'warn' or 'error')", s)
	}
	return nil
}

type logFormatValue struct{ p *LogFormat }

func (v *logFormatValue) String() string { return string(*v.p) }
func (v *logFormatValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "auto":
		*v.p = LogAuto
	case "text":
		*v.p = LogText
	case "json":
		*v.p = LogJSON
	default:
		return fmt.Errorf("invalid log format %q (use 'auto', 'text' or 'json')", s)
	}
	return nil
}
