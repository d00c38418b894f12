package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/afd-tools/grmovie/internal/diag"
	"github.com/afd-tools/grmovie/internal/pool"
)

// fluxColumns are the diagnostic series a fluxes frame shows, in axis order:
// the first present column takes the primary axis, the second the secondary.
var fluxColumns = []string{"mdot", "phi_b"}

// FluxRenderer draws diagnostic time series directly, no plotter involved.
// Each frame is the whole mdot and phi_b history with a cursor at the dump's
// time, so the assembled movie reads as a sweep across the run. Tables are
// parsed once per diagnostics file and shared across units.
type FluxRenderer struct {
	mu     sync.Mutex
	tables map[string]*diag.Table
}

func NewFluxRenderer() *FluxRenderer {
	return &FluxRenderer{tables: make(map[string]*diag.Table)}
}

func (f *FluxRenderer) Render(ctx context.Context, u pool.Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.DiagPath == "" {
		return errors.New("fluxes frames need diagnostics and the run has none")
	}
	table, err := f.table(u.DiagPath)
	if err != nil {
		return err
	}

	type fluxSeries struct {
		name   string
		ts, vs []float64
	}
	var avail []fluxSeries
	for _, name := range fluxColumns {
		ts, vs := finitePairs(table.Times(), table.Series(name))
		if len(ts) >= 2 {
			avail = append(avail, fluxSeries{name, ts, vs})
		}
	}
	if len(avail) == 0 {
		return fmt.Errorf("diagnostics %s carry no usable mdot or phi_b series", filepath.Base(u.DiagPath))
	}

	colors := map[string]chart.Style{
		"mdot":  {StrokeColor: chart.ColorBlue, StrokeWidth: 1.5},
		"phi_b": {StrokeColor: chart.ColorGreen, StrokeWidth: 1.5},
	}
	series := make([]chart.Series, 0, len(avail)+1)
	for i, s := range avail {
		cs := chart.ContinuousSeries{
			Name:    s.name,
			XValues: s.ts,
			YValues: s.vs,
			Style:   colors[s.name],
		}
		if i == 1 {
			cs.YAxis = chart.YAxisSecondary
		}
		series = append(series, cs)
	}

	// Time cursor, spanning the primary axis.
	ymin, ymax := minMax(avail[0].vs)
	if ymax == ymin {
		ymax = ymin + 1
	}
	series = append(series, chart.ContinuousSeries{
		XValues: []float64{u.DumpTime, u.DumpTime},
		YValues: []float64{ymin, ymax},
		Style: chart.Style{
			StrokeColor:     chart.ColorRed,
			StrokeWidth:     1.0,
			StrokeDashArray: []float64{4.0, 2.0},
		},
	})

	graph := chart.Chart{
		Title:  fmt.Sprintf("t = %.5g", u.DumpTime),
		Width:  1280,
		Height: 720,
		XAxis:  chart.XAxis{Name: "t [GM/c^3]"},
		YAxis:  chart.YAxis{Name: avail[0].name},
		Series: series,
	}
	if len(avail) > 1 {
		graph.YAxisSecondary = chart.YAxis{Name: avail[1].name}
	}

	return writeChart(&graph, u.OutPath)
}

// table parses a diagnostics file at most once.
func (f *FluxRenderer) table(path string) (*diag.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[path]; ok {
		return t, nil
	}
	t, err := diag.LoadFile(path)
	if err != nil {
		return nil, err
	}
	f.tables[path] = t
	return t, nil
}

// writeChart renders to a sibling temp file and renames it into place, so a
// kill mid-render never leaves a half-written frame for --resume to trust.
func writeChart(graph *chart.Chart, out string) error {
	tmp := out + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, out)
}

// finitePairs drops samples where either coordinate is NaN or infinite.
func finitePairs(ts, vs []float64) ([]float64, []float64) {
	if len(ts) != len(vs) || len(ts) == 0 {
		return nil, nil
	}
	outT := make([]float64, 0, len(ts))
	outV := make([]float64, 0, len(vs))
	for i := range ts {
		if !finite(ts[i]) || !finite(vs[i]) {
			continue
		}
		outT = append(outT, ts[i])
		outV = append(outV, vs[i])
	}
	return outT, outV
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func minMax(vs []float64) (float64, float64) {
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
