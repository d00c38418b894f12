package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/afd-tools/grmovie/internal/config"
	"github.com/afd-tools/grmovie/internal/pool"
)

// Renderer produces the frame for one unit.
type Renderer interface {
	Render(ctx context.Context, u pool.Unit) error
}

// Engine routes units to renderers and is what the worker pool executes.
// Movie types with a native renderer are drawn in-process; everything else
// goes through the external plotter.
type Engine struct {
	log     *slog.Logger
	plotter Renderer
	native  map[string]Renderer
}

// nativeTypes names the movie types drawn in-process, without the plotter.
var nativeTypes = map[string]bool{
	"fluxes": true,
}

// Native reports whether a movie type has an in-process renderer.
func Native(movieType string) bool { return nativeTypes[movieType] }

// NewEngine wires the production renderers from the config.
func NewEngine(cfg *config.Config, log *slog.Logger) *Engine {
	return &Engine{
		log:     log,
		plotter: &PlotterRenderer{Plotter: cfg.Plotter, Tee: cfg.Debug},
		native: map[string]Renderer{
			"fluxes": NewFluxRenderer(),
		},
	}
}

// Execute renders one unit and reports how long it took. A failure carries
// the movie type and dump name so a summary line is enough to locate it.
func (e *Engine) Execute(ctx context.Context, u pool.Unit) error {
	r := e.plotter
	if nr, ok := e.native[u.MovieType]; ok {
		r = nr
	}

	start := time.Now()
	if err := r.Render(ctx, u); err != nil {
		return fmt.Errorf("%s frame for %s: %w", u.MovieType, filepath.Base(u.Dump), err)
	}
	e.log.Debug("frame rendered",
		"movie", u.MovieType,
		"dump", filepath.Base(u.Dump),
		"out", filepath.Base(u.OutPath),
		"dur", time.Since(start).Round(time.Millisecond))
	return nil
}
