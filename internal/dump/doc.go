// Package dump finds solver output files and reads their headers through the
// external plotter. A single JSON info call per file keeps HDF5 parsing on
// the physics side of the process boundary.
//
// Types:
//   - Header: the slice of dump metadata the orchestrator needs
//     (time, zone counts, primitive count, cadence).
//   - Run: one simulation's root directory plus its dump files in order.
//
// Functions:
//   - Discover(paths, multizone) → runs, problems
//     Directory args become one run each; a pure file list is one run.
//   - List(dir, multizone) → files
//     Pattern ladder preferring KHARMA output over iharm3d.
//   - Probe(ctx, plotter, path) → *Header
//     Runs `<plotter> info --json <path>`.
//   - ProbeAll(ctx, plotter, files, workers, progress) → headers, problems
//     Concurrent metadata pass over a whole run.
package dump
