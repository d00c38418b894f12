package dump

// Header is the metadata block of one dump, as reported by the plotter's
// info command. The full header stays inside the physics library; only the
// fields the orchestrator acts on are carried across.
type Header struct {
	T           float64 // Simulated time of the snapshot.
	N1          int     // Zones in x1.
	N2          int     // Zones in x2.
	N3          int     // Zones in x3.
	NPrim       int     // Primitive variables per zone.
	DumpCadence float64 // Solver output interval; 0 when unknown.
}

// ZoneBytes is the in-memory size of one full primitive-variable load of the
// dump, the basis of the planner's per-worker estimate. Zero when the header
// lacks grid dimensions.
func (h *Header) ZoneBytes() int64 {
	if h.N1 <= 0 || h.N2 <= 0 || h.N3 <= 0 || h.NPrim <= 0 {
		return 0
	}
	return int64(h.N1) * int64(h.N2) * int64(h.N3) * int64(h.NPrim) * 8
}

// Run is one simulation's output set: the directory it lives in plus its
// dump files in deterministic order. Root governs the diagnostics search and
// the output-path mapping.
type Run struct {
	Root  string
	Files []string
}
