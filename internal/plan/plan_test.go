package plan

import (
	"runtime"
	"testing"

	"github.com/afd-tools/grmovie/internal/dump"
)

func TestWorkers_ExplicitRequest(t *testing.T) {
	w, err := Workers(Request{Explicit: 6, Files: 100})
	if err != nil {
		t.Fatal(err)
	}
	if w != 6 {
		t.Errorf("Workers = %d, want the explicit 6", w)
	}
}

func TestWorkers_CappedByFiles(t *testing.T) {
	w, err := Workers(Request{Explicit: 32, Files: 3})
	if err != nil {
		t.Fatal(err)
	}
	if w != 3 {
		t.Errorf("Workers = %d, want 3 (never more workers than files)", w)
	}
}

func TestWorkers_DebugIsSequential(t *testing.T) {
	w, err := Workers(Request{Explicit: 16, Files: 100, Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	if w != 1 {
		t.Errorf("Workers = %d, want 1 in debug mode", w)
	}
}

func TestWorkers_AutoFallsBackToCPUs(t *testing.T) {
	w, err := Workers(Request{Files: 1000})
	if err != nil {
		t.Fatal(err)
	}
	want := runtime.NumCPU()
	if want > 1000 {
		want = 1000
	}
	if w != want {
		t.Errorf("Workers = %d, want CPU count %d", w, want)
	}
}

func TestWorkers_MemoryBudgetFit(t *testing.T) {
	// 64^3 zones, 8 primitives: 16 MiB raw, 160 MiB per worker after the
	// load factor. A 1 GiB budget at 0.8 margin fits 5 workers.
	hdr := &dump.Header{N1: 64, N2: 64, N3: 64, NPrim: 8}
	w, err := Workers(Request{Files: 100, Header: hdr, BudgetGB: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := 5
	if c := runtime.NumCPU(); c < want {
		want = c
	}
	if w != want {
		t.Errorf("Workers = %d, want %d", w, want)
	}
}

func TestWorkers_TinyBudgetStillRunsOne(t *testing.T) {
	hdr := &dump.Header{N1: 288, N2: 128, N3: 128, NPrim: 8}
	w, err := Workers(Request{Files: 10, Header: hdr, BudgetGB: 0.001})
	if err != nil {
		t.Fatal(err)
	}
	if w != 1 {
		t.Errorf("Workers = %d, want 1 (floor of the pool)", w)
	}
}

func TestWorkers_BudgetWithoutHeaderFails(t *testing.T) {
	if _, err := Workers(Request{Files: 10, BudgetGB: 8}); err == nil {
		t.Error("an explicit budget with no header estimate should fail")
	}
	if _, err := Workers(Request{Files: 10, Header: &dump.Header{}, BudgetGB: 8}); err == nil {
		t.Error("an explicit budget with a dimensionless header should fail")
	}
}

func TestWorkers_Bounds(t *testing.T) {
	hdr := &dump.Header{N1: 128, N2: 64, N3: 64, NPrim: 8}
	for _, files := range []int{1, 2, 7, 64, 1000} {
		for _, explicit := range []int{0, 1, 5, 200} {
			w, err := Workers(Request{Explicit: explicit, Files: files, Header: hdr, BudgetGB: 4})
			if err != nil {
				t.Fatal(err)
			}
			if w < 1 || w > files {
				t.Fatalf("Workers(explicit=%d, files=%d) = %d, outside [1, %d]",
					explicit, files, w, files)
			}
		}
	}
}
