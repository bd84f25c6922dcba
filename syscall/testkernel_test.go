package syscall

import (
	"bytes"
	"testing"

	"zjos-go/abi"
	"zjos-go/env"
	"zjos-go/mm"
)

// newTestKernel builds a Kernel over a fresh table with one CPU and no
// idle-slot interference for caller allocation beyond slot 0.
func newTestKernel(t *testing.T, nenv int) (*Kernel, *env.Table) {
	k, tbl, _ := newTestKernelWithConsole(t, nenv)
	return k, tbl
}

func newTestKernelWithConsole(t *testing.T, nenv int) (*Kernel, *env.Table, *bytes.Buffer) {
	t.Helper()
	tbl, err := env.NewTable(nenv, 1, mm.NewArena())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	out := &bytes.Buffer{}
	k := NewKernel(tbl, tbl.Allocator(), NewConsole(out))
	return k, tbl, out
}

func allocUser(t *testing.T, tbl *env.Table, parent *env.Env) *env.Env {
	t.Helper()
	tbl.Lock()
	defer tbl.Unlock()
	e, err := tbl.Alloc(parent)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	e.Status = abi.StatusRunnable
	return e
}
