// Package cluster identifies the launcher allocation a process runs under.
// Rank and world size come from the environment set by SLURM, Open MPI, or a
// PMI launcher; detection happens once at startup and the result is passed
// down, never re-queried.
package cluster

import (
	"os"
	"strconv"
)

// Alloc describes this process's place in the allocation.
type Alloc struct {
	Rank     int
	World    int
	Launcher string // "slurm", "openmpi", "pmi", "pmix"; empty when standalone.
}

// Launcher environment conventions, first full match wins.
var launchers = []struct {
	name     string
	rankVar  string
	worldVar string
}{
	{"slurm", "SLURM_PROCID", "SLURM_NTASKS"},
	{"openmpi", "OMPI_COMM_WORLD_RANK", "OMPI_COMM_WORLD_SIZE"},
	{"pmi", "PMI_RANK", "PMI_SIZE"},
	{"pmix", "PMIX_RANK", "PMIX_SIZE"},
}

// Detect reads the launcher environment. A standalone process is rank 0 of a
// world of one.
func Detect() Alloc {
	for _, l := range launchers {
		rank, okR := intEnv(l.rankVar)
		world, okW := intEnv(l.worldVar)
		if okR && okW && rank >= 0 && world >= 1 && rank < world {
			return Alloc{Rank: rank, World: world, Launcher: l.name}
		}
	}
	return Alloc{Rank: 0, World: 1}
}

// Distributed reports whether more than one rank shares the batch.
func (a Alloc) Distributed() bool { return a.World > 1 }

// Coordinator reports whether this rank owns submissions and output.
func (a Alloc) Coordinator() bool { return a.Rank == 0 }

func intEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
