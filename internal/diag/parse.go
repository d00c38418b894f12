package diag

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Column headers look like "# [1]=time [2]=dt [3]=mdot"; both solver history
// files and post-processed logs share the convention.
var columnRe = regexp.MustCompile(`\[\d+\]=(\S+)`)

// LoadFile opens and parses one diagnostics file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse reads the shared diagnostics text format: comment lines naming the
// columns, then whitespace-separated numeric rows. Repeated headers and
// overlapping time ranges left by solver restarts are tolerated; rows written
// after a restart replace the stale tail they overlap.
func Parse(r io.Reader) (*Table, error) {
	var names []string
	var rows [][]float64

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if cols := parseColumns(line); cols != nil {
				names = cols
			}
			continue
		}
		if names == nil {
			return nil, fmt.Errorf("data before any column header")
		}
		row := parseRow(line, len(names))
		if row != nil {
			rows = append(rows, row)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if names == nil {
		return nil, fmt.Errorf("no column header found")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows")
	}

	ti := timeColumn(names)
	if ti < 0 {
		return nil, fmt.Errorf("no time column among %v", names)
	}
	rows = dropRestartOverlap(rows, ti)

	t := &Table{names: names, cols: make(map[string][]float64, len(names))}
	for i, name := range names {
		col := make([]float64, len(rows))
		for j, row := range rows {
			col[j] = row[i]
		}
		t.cols[name] = col
	}
	t.time = t.cols[names[ti]]
	return t, nil
}

// parseColumns extracts lower-cased column names from a header comment,
// nil when the comment carries none.
func parseColumns(line string) []string {
	matches := columnRe.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = normalize(m[1])
	}
	return names
}

// parseRow reads one data line. Rows with the wrong field count or
// unparsable numbers are dropped rather than failing the file; a crashed
// solver commonly leaves a truncated final line.
func parseRow(line string, want int) []float64 {
	fields := strings.Fields(line)
	if len(fields) != want {
		return nil
	}
	row := make([]float64, want)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		row[i] = v
	}
	return row
}

func timeColumn(names []string) int {
	for i, n := range names {
		if n == "time" || n == "t" {
			return i
		}
	}
	return -1
}

// dropRestartOverlap keeps the time axis strictly increasing. When a row's
// time falls at or before the running tail, the solver restarted from an
// earlier checkpoint; the overlapped tail is discarded and the newer rows win.
func dropRestartOverlap(rows [][]float64, ti int) [][]float64 {
	out := rows[:0]
	for _, row := range rows {
		for len(out) > 0 && out[len(out)-1][ti] >= row[ti] {
			out = out[:len(out)-1]
		}
		out = append(out, row)
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
