// Package plan sizes the worker pool for a run: an explicit request wins,
// else a memory fit against one representative dump, else the CPU count,
// and never more workers than files.
package plan

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/afd-tools/grmovie/internal/dump"
)

// Request carries the sizing inputs for one run.
type Request struct {
	Explicit int          // Requested worker count; 0 means auto.
	Files    int          // Units the run will dispatch.
	Header   *dump.Header // Representative dump, may be nil.
	BudgetGB float64      // Memory budget; 0 means probe available memory.
	Debug    bool         // Debug runs are strictly sequential.
}

// loadFactor scales a dump's raw primitive bytes to the working set one
// render holds: derived grids, coordinate caches, and the figure canvas.
const loadFactor = 10

// safetyMargin keeps the pool from claiming every available byte.
const safetyMargin = 0.8

// WorkingSet estimates the resident bytes one render of a dump holds.
func WorkingSet(h *dump.Header) int64 {
	if h == nil {
		return 0
	}
	return h.ZoneBytes() * loadFactor
}

// AvailableBytes probes the memory currently available on this node.
func AvailableBytes() (int64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return int64(vm.Available), nil
}

// Workers decides the worker count, always between 1 and the number of
// files. An explicit memory budget that cannot be applied for lack of header
// metadata is an error; the automatic probe degrades to the CPU count.
func Workers(req Request) (int, error) {
	files := req.Files
	if files < 1 {
		files = 1
	}
	if req.Debug {
		return 1, nil
	}
	if req.Explicit > 0 {
		return clamp(req.Explicit, files), nil
	}

	cpu := runtime.NumCPU()
	perWorker := WorkingSet(req.Header)
	if perWorker <= 0 {
		if req.BudgetGB > 0 {
			return 0, fmt.Errorf("memory budget of %g GiB set but dump header lacks grid dimensions", req.BudgetGB)
		}
		return clamp(cpu, files), nil
	}

	budget := int64(req.BudgetGB * float64(1<<30))
	if req.BudgetGB <= 0 {
		avail, err := AvailableBytes()
		if err != nil {
			return clamp(cpu, files), nil
		}
		budget = avail
	}

	w := int(float64(budget) * safetyMargin / float64(perWorker))
	if w > cpu {
		w = cpu
	}
	return clamp(w, files), nil
}

func clamp(w, files int) int {
	if w > files {
		w = files
	}
	if w < 1 {
		w = 1
	}
	return w
}
