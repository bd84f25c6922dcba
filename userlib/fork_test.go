package userlib

import (
	"bytes"
	"testing"

	"zjos-go/abi"
	"zjos-go/env"
	"zjos-go/mm"
	zsyscall "zjos-go/syscall"
)

func newTestEnv(t *testing.T, tbl *env.Table, k *zsyscall.Kernel) *Env {
	t.Helper()
	tbl.Lock()
	e, err := tbl.Alloc(nil)
	tbl.Unlock()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	return &Env{Kernel: k, Self: e}
}

// Fork COW: parent writes 0xAA into a page, forks, child writes
// 0xBB; parent must still observe 0xAA and the child must observe
// 0xBB.
func TestForkCOWIsolation(t *testing.T) {
	tbl, err := env.NewTable(16, 1, mm.NewArena())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	k := zsyscall.NewKernel(tbl, tbl.Allocator(), zsyscall.NewConsole(&bytes.Buffer{}))

	parent := newTestEnv(t, tbl, k)
	if err := parent.EnableCOWFork(); err != nil {
		t.Fatalf("EnableCOWFork: %v", err)
	}

	const va = 0x4000
	if _, err := parent.call(abi.SysPageAlloc, 0, va, uintptr(abi.PteU|abi.PteW), 0, 0); err != nil {
		t.Fatalf("page_alloc: %v", err)
	}
	if err := parent.WritePage(va, []byte{0xAA}); err != nil {
		t.Fatalf("parent WritePage: %v", err)
	}

	childID, err := parent.Fork()
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	childEnv := tbl.EnvAt(childID.Slot())
	child := &Env{Kernel: k, Self: childEnv}

	// Both sides should now see the pre-fork contents, shared COW.
	parentBytes, err := parent.ReadPage(va)
	if err != nil {
		t.Fatalf("parent ReadPage: %v", err)
	}
	if parentBytes[0] != 0xAA {
		t.Fatalf("parent byte = %#x, want 0xAA", parentBytes[0])
	}
	childBytes, err := child.ReadPage(va)
	if err != nil {
		t.Fatalf("child ReadPage: %v", err)
	}
	if childBytes[0] != 0xAA {
		t.Fatalf("child byte before its own write = %#x, want 0xAA", childBytes[0])
	}

	if err := child.WritePage(va, []byte{0xBB}); err != nil {
		t.Fatalf("child WritePage: %v", err)
	}

	parentBytes, _ = parent.ReadPage(va)
	childBytes, _ = child.ReadPage(va)
	if parentBytes[0] != 0xAA {
		t.Errorf("parent byte after child's write = %#x, want 0xAA (mutually invisible)", parentBytes[0])
	}
	if childBytes[0] != 0xBB {
		t.Errorf("child byte after its own write = %#x, want 0xBB", childBytes[0])
	}
}

// TestDuppageMarksBothSidesCOW verifies the "duplicate remapping in
// the parent is required" rule: after
// forking a writable page, the parent's own mapping must also have
// become PTE_COW, not still PTE_W, so a parent write also faults.
func TestDuppageMarksBothSidesCOW(t *testing.T) {
	tbl, err := env.NewTable(16, 1, mm.NewArena())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	k := zsyscall.NewKernel(tbl, tbl.Allocator(), zsyscall.NewConsole(&bytes.Buffer{}))
	parent := newTestEnv(t, tbl, k)
	if err := parent.EnableCOWFork(); err != nil {
		t.Fatalf("EnableCOWFork: %v", err)
	}

	const va = 0x4000
	if _, err := parent.call(abi.SysPageAlloc, 0, va, uintptr(abi.PteU|abi.PteW), 0, 0); err != nil {
		t.Fatalf("page_alloc: %v", err)
	}
	if _, err := parent.Fork(); err != nil {
		t.Fatalf("Fork: %v", err)
	}

	_, perm, ok := tbl.Allocator().PageLookup(parent.Self.AS, va)
	if !ok {
		t.Fatal("expected parent's mapping to survive fork")
	}
	if perm&abi.PteW != 0 {
		t.Error("parent's writable page must become PTE_COW (not PTE_W) after fork")
	}
	if perm&abi.PteCOW == 0 {
		t.Error("parent's mapping must carry PTE_COW after fork")
	}
}

// A read-only page (no PTE_W, no PTE_COW) is duplicated as-is: both
// sides keep plain read-only access, no fault handler involved.
func TestDuppageLeavesReadOnlyPagesAlone(t *testing.T) {
	tbl, err := env.NewTable(16, 1, mm.NewArena())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	k := zsyscall.NewKernel(tbl, tbl.Allocator(), zsyscall.NewConsole(&bytes.Buffer{}))
	parent := newTestEnv(t, tbl, k)
	if err := parent.EnableCOWFork(); err != nil {
		t.Fatalf("EnableCOWFork: %v", err)
	}

	const va = 0x4000
	if _, err := parent.call(abi.SysPageAlloc, 0, va, uintptr(abi.PteU), 0, 0); err != nil {
		t.Fatalf("page_alloc: %v", err)
	}
	childID, err := parent.Fork()
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	childEnv := tbl.EnvAt(childID.Slot())

	_, perm, ok := tbl.Allocator().PageLookup(childEnv.AS, va)
	if !ok {
		t.Fatal("expected the read-only page to be duplicated into the child")
	}
	if perm != abi.PteU {
		t.Errorf("child perm = %#x, want plain PTE_U (unchanged)", perm)
	}
}
