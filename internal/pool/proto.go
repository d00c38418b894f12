package pool

import (
	"os"
	"path/filepath"
)

// CoordFile is the rendezvous file the coordinator writes into the working
// directory so that workers launched on other ranks can find its listener.
const CoordFile = ".grmovie-coord"

// EnvCoordFile overrides the rendezvous location, for launchers whose ranks
// do not share a working directory.
const EnvCoordFile = "GRM_COORD"

// Wire ops. Workers send next/done requests, the coordinator answers with a
// unit, a wait (queue empty but batch still open), an exit, or an ack.
const (
	opNext = "next"
	opDone = "done"
	opUnit = "unit"
	opWait = "wait"
	opExit = "exit"
	opOK   = "ok"
)

type request struct {
	Op  string `json:"op"`
	ID  int    `json:"id"`
	Err string `json:"err,omitempty"`
}

type response struct {
	Op   string `json:"op"`
	Unit *Unit  `json:"unit,omitempty"`
}

// coordPath resolves where the rendezvous file lives for this process.
func coordPath() string {
	if p := os.Getenv(EnvCoordFile); p != "" {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return CoordFile
	}
	return filepath.Join(wd, CoordFile)
}
