package dump

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Probe runs a single plotter info call against path and returns the parsed
// header. This is a metadata read; the dump's arrays are never loaded here.
func Probe(ctx context.Context, plotter, path string) (*Header, error) {
	cmd := exec.CommandContext(ctx, plotter, "info", "--json", path)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s info %q: %w", plotter, path, err)
	}

	return ParseHeaderJSON(out)
}

// ParseHeaderJSON converts raw plotter info output into a Header.
// Exported for testing without a real plotter binary.
func ParseHeaderJSON(data []byte) (*Header, error) {
	var raw headerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse header JSON: %w", err)
	}
	if raw.T == nil {
		return nil, fmt.Errorf("header JSON carries no time field")
	}
	return &Header{
		T:           *raw.T,
		N1:          raw.N1,
		N2:          raw.N2,
		N3:          raw.N3,
		NPrim:       raw.NPrim,
		DumpCadence: raw.DumpCadence,
	}, nil
}

// headerJSON is the plotter info wire format.
type headerJSON struct {
	T           *float64 `json:"t"`
	N1          int      `json:"n1"`
	N2          int      `json:"n2"`
	N3          int      `json:"n3"`
	NPrim       int      `json:"n_prim"`
	DumpCadence float64  `json:"dump_cadence"`
}

// ProbeAll reads the headers of a whole run concurrently. The result map
// holds every file that probed cleanly; per-file failures come back as
// problems and leave their file out of the map. A non-nil progress callback
// is invoked serially after each file, done counting from 1.
func ProbeAll(ctx context.Context, plotter string, files []string, workers int, progress func(done, total int)) (map[string]*Header, []error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex
	headers := make(map[string]*Header, len(files))
	var errs []error
	done := 0

	p := pool.New().WithMaxGoroutines(workers)
	for _, f := range files {
		p.Go(func() {
			h, err := Probe(ctx, plotter, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			} else {
				headers[f] = h
			}
			done++
			if progress != nil {
				progress(done, len(files))
			}
		})
	}
	p.Wait()

	return headers, errs
}
