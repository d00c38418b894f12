package display

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB, PiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	if exp >= len(suffixes) {
		exp = len(suffixes) - 1
		div = 1
		for i := 0; i <= exp; i++ {
			div *= unit
		}
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatBytesWithSign prefixes with + or - for delta display (e.g. "- 1.2 GiB").
func FormatBytesWithSign(bytes int64) string {
	sign := ""
	if bytes > 0 {
		sign = "+ "
	} else if bytes < 0 {
		sign = "- "
		bytes = -bytes
	}
	return sign + FormatBytes(bytes)
}

// FormatRate returns a batch throughput label. Above one frame per second it
// reads in frames/s; big 3D dumps render far slower than that, so the slow
// range switches to frames/min.
func FormatRate(frames int, elapsed time.Duration) string {
	if frames <= 0 || elapsed <= 0 {
		return "0 frames/s"
	}
	perSec := float64(frames) / elapsed.Seconds()
	if perSec >= 1 {
		return fmt.Sprintf("%.1f frames/s", perSec)
	}
	return fmt.Sprintf("%.1f frames/min", perSec*60)
}
