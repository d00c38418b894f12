package diag

import "sort"

// Table is a read-only diagnostic time series: named scalar columns over a
// shared time axis, ascending after load. A nil *Table is the valid
// "no diagnostics" state; every method tolerates it.
type Table struct {
	names []string
	cols  map[string][]float64
	time  []float64
}

// Len returns the number of samples.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.time)
}

// Columns returns the column names in file order, lower-cased.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return t.names
}

// Times returns the time axis. Callers must not mutate it.
func (t *Table) Times() []float64 {
	if t == nil {
		return nil
	}
	return t.time
}

// Series returns one column by name, nil when absent.
func (t *Table) Series(name string) []float64 {
	if t == nil {
		return nil
	}
	return t.cols[normalize(name)]
}

// Value linearly interpolates a column at time at, clamping outside the
// covered range. The second return is false when the column is absent or
// empty.
func (t *Table) Value(name string, at float64) (float64, bool) {
	vs := t.Series(name)
	if len(vs) == 0 {
		return 0, false
	}
	ts := t.time
	i := sort.SearchFloat64s(ts, at)
	switch {
	case i == 0:
		return vs[0], true
	case i == len(ts):
		return vs[len(vs)-1], true
	}
	t0, t1 := ts[i-1], ts[i]
	if t1 == t0 {
		return vs[i], true
	}
	frac := (at - t0) / (t1 - t0)
	return vs[i-1] + frac*(vs[i]-vs[i-1]), true
}

// Window returns the samples of one column with t0 <= time <= t1, along with
// the matching slice of the time axis.
func (t *Table) Window(name string, t0, t1 float64) (times, values []float64) {
	vs := t.Series(name)
	if len(vs) == 0 {
		return nil, nil
	}
	ts := t.time
	lo := sort.SearchFloat64s(ts, t0)
	hi := sort.Search(len(ts), func(i int) bool { return ts[i] > t1 })
	if lo >= hi {
		return nil, nil
	}
	return ts[lo:hi], vs[lo:hi]
}
