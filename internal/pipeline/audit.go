package pipeline

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/afd-tools/grmovie/internal/dump"
	"github.com/afd-tools/grmovie/internal/logging"
)

// cadenceWarnCap bounds how many spacing warnings one run may log.
const cadenceWarnCap = 5

// auditCadence flags irregular spacing in a run's dump sequence. A solver
// crash or a purged checkpoint leaves a hole and the assembled movie jumps
// there; better to hear about it before rendering thousands of frames.
func auditCadence(log *logging.Log, root string, headers map[string]*dump.Header) {
	times := make([]float64, 0, len(headers))
	for _, h := range headers {
		times = append(times, h.T)
	}
	sort.Float64s(times)
	if len(times) < 5 {
		return
	}

	dts := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		dts[i-1] = times[i] - times[i-1]
	}
	b := computeStats(dts)
	if !b.valid {
		return
	}

	warned := 0
	for i, dt := range dts {
		class := b.classify(dt)
		if class == "" {
			continue
		}
		if warned == cadenceWarnCap {
			log.Warn("more spacing warnings suppressed", "run", root)
			return
		}
		log.Warn("irregular dump spacing",
			"run", root, "after_t", times[i], "dt", dt, "severity", class)
		warned++
	}
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// printProbeProgress shows a live probe counter. On a TTY it writes an
// inline \r-overwritten line; otherwise it is a no-op (the probe warnings
// already provide enough breadcrumbs in piped or logged output).
func printProbeProgress(isTTY bool, done, total int) {
	if !isTTY || total == 0 {
		return
	}
	pct := done * 100 / total
	status := fmt.Sprintf("  probing [%d/%d] %d%%", done, total, pct)
	if len(status) < 80 {
		status += strings.Repeat(" ", 80-len(status))
	}
	fmt.Fprintf(os.Stdout, "\r%s", status)
}

// clearProbeProgress erases the inline progress line on a TTY.
func clearProbeProgress() {
	fmt.Fprintf(os.Stdout, "\r%s\r", strings.Repeat(" ", 80))
}
