package dump

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoDumps marks a supplied directory with no discoverable dump files.
var ErrNoDumps = errors.New("no dump files found")

// Listing patterns in preference order. KHARMA output wins when a directory
// carries both formats; restart files never match.
var listPatterns = []string{
	"*.out0.*.phdf",
	filepath.Join("dumps_kharma", "*.out0.*.phdf"),
	"dump_*.h5",
	filepath.Join("dumps", "dump_*.h5"),
}

// Discover classifies the user paths into runs. Directories become one run
// each; when no supplied path is a directory the whole list is a single
// explicit run; a stray file next to directory args is a one-file run.
// Problems (missing paths, empty directories) are returned alongside the
// usable runs so one bad path does not abort its siblings.
func Discover(paths []string, multizone bool) ([]Run, []error) {
	var runs []Run
	var errs []error
	var loose []string
	anyDir := false

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("stat %q: %w", p, err))
			continue
		}
		if !info.IsDir() {
			loose = append(loose, p)
			continue
		}
		anyDir = true
		files, err := List(p, multizone)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		runs = append(runs, Run{Root: p, Files: files})
	}

	if len(loose) > 0 {
		if anyDir {
			for _, f := range loose {
				runs = append(runs, Run{Root: filepath.Dir(f), Files: []string{f}})
			}
		} else {
			sort.Strings(loose)
			runs = append(runs, Run{Root: filepath.Dir(loose[0]), Files: loose})
		}
	}
	return runs, errs
}

// List enumerates the dump files of one run directory, first pattern match
// wins. Multizone mode scans the immediate subdirectories instead and merges
// their dumps into one list.
func List(dir string, multizone bool) ([]string, error) {
	var files []string
	var err error
	if multizone {
		files, err = listZones(dir)
	} else {
		files, err = list(dir)
	}
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%q: %w", dir, ErrNoDumps)
	}
	return files, nil
}

func list(dir string) ([]string, error) {
	for _, pat := range listPatterns {
		files, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", dir, err)
		}
		if len(files) > 0 {
			sort.Strings(files)
			return files, nil
		}
	}
	return nil, nil
}

func listZones(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub, err := list(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, sub...)
	}
	sort.Strings(files)
	return files, nil
}
