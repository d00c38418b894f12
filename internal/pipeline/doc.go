// Package pipeline orchestrates one batch: resolve runs, probe dump
// headers, build frame units, size the pool, dispatch, and report.
//
// Types:
//   - RunStats (Runs, Units, Rendered, Skipped, Failed, Unprobed, NoFiles,
//     BatchErrors, FrameBytes; Fatal method drives the exit code)
//
// Functions:
//   - Run(ctx, cfg, log, pool) → RunStats, error
//     Batch runner: discover runs → per run: diagnostics → probe headers →
//     cadence audit → naming scheme → frame dirs → units (window and
//     resume filters) → size a local pool when none was injected →
//     submit everything → drain → assemble movies when asked.
//
// Split across runner.go (flow), audit.go (probe progress and cadence
// outlier detection), stats.go (counters).
package pipeline
