package naming

import (
	"path/filepath"
	"strings"
)

// FrameDir builds the output directory for one (run, movie-type) pair.
// The run root is re-rooted from basePath onto outPath, then
// frames_<movieType> is appended:
//
//	no outPath:                <runRoot>/frames_<type>
//	runRoot under basePath:    <outPath>/<runRoot relative to basePath>/frames_<type>
//	otherwise:                 <outPath>/<basename of runRoot>/frames_<type>
func FrameDir(runRoot, basePath, outPath, movieType string) string {
	root := runRoot
	if outPath != "" {
		root = filepath.Join(outPath, filepath.Base(runRoot))
		if basePath != "" {
			if rel, err := filepath.Rel(basePath, runRoot); err == nil && !outsideBase(rel) {
				root = filepath.Join(outPath, rel)
			}
		}
	}
	return filepath.Join(root, "frames_"+movieType)
}

// outsideBase reports whether a Rel result escapes the base directory.
func outsideBase(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
