package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/afd-tools/grmovie/internal/config"
)

// ANSI colors for ad-hoc output (banner, summary tables); empty when disabled.
var (
	Red     = ""
	Green   = ""
	Yellow  = ""
	Blue    = ""
	Cyan    = ""
	Magenta = ""
	NC      = ""
)

// Log wraps the process logger together with the optional file sink.
// Call Close() when done if LogFile was set.
type Log struct {
	*slog.Logger
	file *os.File
}

// New builds the logger from cfg. Worker ranks pass coordinator=false and are
// capped at ERROR so batch output comes from exactly one process.
func New(cfg *config.Config, coordinator bool) (*Log, error) {
	color := colorEnabled(cfg.ColorMode)

	level := cfg.LogLevel.Slog()
	if cfg.Debug {
		level = slog.LevelDebug
	}
	if !coordinator {
		level = slog.LevelError
	}

	l := &Log{}
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.file = f
		w = io.MultiWriter(os.Stderr, f)
		// The file shares the writer; keep it free of escape codes.
		color = false
	}
	setColors(color)

	if cfg.LogFormat == config.LogJSON {
		l.Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
		return l, nil
	}
	l.Logger = slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    !color,
	}))
	return l, nil
}

// Close closes the log file if one was opened.
func (l *Log) Close() error {
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func colorEnabled(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return isTerminal(os.Stderr) && os.Getenv("NO_COLOR") == "" && strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether stdout is a terminal. Progress lines and the
// banner are suppressed when it is not.
func IsTerminal() bool {
	return isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func setColors(on bool) {
	if on {
		Red = "\033[1;91m"
		Green = "\033[1;92m"
		Yellow = "\033[1;93m"
		Blue = "\033[1;94m"
		Cyan = "\033[1;96m"
		Magenta = "\033[1;95m"
		NC = "\033[0m"
	} else {
		Red, Green, Yellow, Blue, Cyan, Magenta, NC = "", "", "", "", "", "", ""
	}
}
