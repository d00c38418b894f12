// Package naming fixes how frames are named and where they land: the
// zero-padded timestamp scheme shared by every frame of a run, and the
// mapping from a run directory to its frames_<movie-type> output directory.
package naming

import (
	"fmt"
	"math"
)

// Scheme fixes frame naming for one run: the zero-padding width for integer
// timestamps, and the fine mode short runs use so sub-unit times do not
// collide onto one name.
type Scheme struct {
	Digits int
	Fine   bool
}

// Derive computes the scheme from a run's end time: enough digits to print
// the largest reached time as an integer, fine mode when fewer than three.
// A duration at or below zero takes a single digit; no logarithm is involved,
// so the zero edge needs no special case.
func Derive(end float64) Scheme {
	digits := 1
	if end > 0 {
		n := int64(math.Floor(end + 1))
		for n >= 10 {
			n /= 10
			digits++
		}
	}
	return Scheme{Digits: digits, Fine: digits < 3}
}

// FrameName renders one frame's filename from its simulated time.
// Normal mode rounds to the nearest whole time unit; fine mode keeps
// hundredths.
func (s Scheme) FrameName(t float64) string {
	if s.Fine {
		return fmt.Sprintf("frame_t%0*.2f.png", s.Digits+3, t)
	}
	return fmt.Sprintf("frame_t%0*d.png", s.Digits, int64(math.Round(t)))
}
