// Package render turns one unit into one frame file.
//
// Types:
//   - Renderer: Render(ctx, Unit) → error, one frame per call.
//   - Engine: pool.Executor that picks the renderer for a unit's movie type,
//     times the render, and wraps failures with the dump name.
//   - PlotterRenderer: forks the external figure helper
//     (<plotter> frame <type> --out <png> [options] <dump>), stderr captured
//     for the error report. The helper owns the figure catalog, so unknown
//     movie types are its problem to reject.
//   - FluxRenderer: draws the accretion rate and magnetic flux series
//     against time in-process, with a cursor at the unit's dump time. The
//     only renderer that needs diagnostics and the only one that works
//     without the helper installed.
//
// Functions:
//   - BuildArgs(plotter, Unit) → []string, the exact argv, exported so tests
//     can check commands without forking.
package render
