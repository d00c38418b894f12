// Package pool runs render units on one of two mutually exclusive backends:
// a bounded local worker pool, or a coordinator/worker queue spanning the
// ranks of a launcher allocation. The dispatcher upstream sees one interface
// and never learns which backend is under it.
package pool

import (
	"context"
	"errors"
)

// Unit is one frame's worth of work, fully serializable so it can cross the
// wire to another rank. Units are independent and idempotent: re-rendering
// one overwrites the same output file.
type Unit struct {
	ID        int               `json:"id"`
	Dump      string            `json:"dump"`
	DumpTime  float64           `json:"dump_time"`
	MovieType string            `json:"movie_type"`
	OutPath   string            `json:"out_path"`
	DiagPath  string            `json:"diag_path,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
}

// Executor renders one unit. The render package provides the production
// implementation; tests substitute their own.
type Executor interface {
	Execute(ctx context.Context, u Unit) error
}

// UnitError ties a failed unit to its cause.
type UnitError struct {
	Unit Unit
	Err  error
}

// Summary is the drain result of one batch. Unit failures are isolated:
// they are counted and carried here, never propagated as a batch error.
type Summary struct {
	Rendered int
	Failed   int
	Errors   []UnitError
}

// ErrDrainTimeout marks a batch abandoned because the wall-clock guard
// elapsed before every unit was acknowledged.
var ErrDrainTimeout = errors.New("drain timed out")

// Pool accepts units and waits them out. Submit queues without blocking on
// completion; Drain blocks until every outstanding unit is done or ctx
// expires, which is fatal for the batch. A pool is done after Drain; Close
// releases whatever the backend holds.
type Pool interface {
	Submit(ctx context.Context, u Unit)
	Drain(ctx context.Context) (Summary, error)
	Close() error
}
