package pipeline

// RunStats tracks aggregate counters across one batch invocation.
type RunStats struct {
	Runs        int   // Run directories processed.
	Units       int   // Frame units dispatched (or counted, on a dry run).
	Rendered    int
	Skipped     int   // Existing frames kept by --resume.
	Failed      int   // Units that errored; never fatal on their own.
	Unprobed    int   // Dumps dropped because their header would not read.
	NoFiles     int   // Requested paths with no discoverable dumps.
	BatchErrors int   // Setup or drain failures affecting the whole batch.
	FrameBytes  int64 // Bytes of frame files written by this invocation.
}

// Fatal reports whether the batch must fail the process exit code: a path
// with nothing to render, or a batch-level error. Individual frame failures
// are counted and reported but do not trip this.
func (s *RunStats) Fatal() bool {
	return s.NoFiles > 0 || s.BatchErrors > 0
}
