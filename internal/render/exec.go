package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/afd-tools/grmovie/internal/pool"
)

// PlotterRenderer forks the figure helper once per frame. With Tee set the
// helper's stderr streams through in real time as well as being captured,
// which is how sequential debug runs surface matplotlib tracebacks.
type PlotterRenderer struct {
	Plotter string
	Tee     bool
}

// BuildArgs constructs the complete helper argument slice for a unit.
// Option keys are emitted sorted so the command is reproducible; an option
// valued "true" becomes a bare switch and "false" is left out entirely.
func BuildArgs(plotter string, u pool.Unit) []string {
	args := make([]string, 0, 8+2*len(u.Options))
	args = append(args, plotter, "frame", u.MovieType, "--out", u.OutPath)

	keys := make([]string, 0, len(u.Options))
	for k := range u.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := u.Options[k]; v {
		case "true":
			args = append(args, "--"+k)
		case "false":
		default:
			args = append(args, "--"+k, v)
		}
	}

	args = append(args, u.Dump)
	return args
}

func (p *PlotterRenderer) Render(ctx context.Context, u pool.Unit) error {
	args := BuildArgs(p.Plotter, u)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var stderrBuf bytes.Buffer
	if p.Tee {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	if err := cmd.Run(); err != nil {
		if line := lastStderrLine(stderrBuf.String()); line != "" {
			return fmt.Errorf("%w: %s", err, line)
		}
		return err
	}
	return nil
}

// lastStderrLine picks the final non-blank line of a helper's stderr, which
// for a Python traceback is the exception itself.
func lastStderrLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
