// Package demo seeds the environment table with small, self-contained
// programs that exercise the kernel core end to end: no assertions
// here, just named scenarios the boot command can run and narrate
// over the console.
package demo

import (
	"fmt"

	"zjos-go/abi"
	"zjos-go/env"
	"zjos-go/mm"
	zsyscall "zjos-go/syscall"
	"zjos-go/userlib"
)

// Names lists the scenarios the boot command accepts via --scenario.
var Names = []string{"hello", "ipc", "forkcow"}

func writeString(alloc mm.PageAllocator, e *env.Env, va uintptr, s string) error {
	frame, err := alloc.PageAlloc()
	if err != nil {
		return err
	}
	copy(frame.Bytes(), s)
	return alloc.PageInsert(e.AS, va, frame, abi.PteU)
}

// Hello seeds one RUNNABLE environment per name, each printing a
// greeting and yielding a fixed number of rounds before destroying
// itself. With one CPU the interleaved output shows strict
// round-robin order.
func Hello(tbl *env.Table, names []string, rounds int) error {
	tbl.Lock()
	defer tbl.Unlock()

	for _, name := range names {
		e, err := tbl.Alloc(nil)
		if err != nil {
			return fmt.Errorf("alloc %s: %w", name, err)
		}
		msg := fmt.Sprintf("hello from %s\n", name)
		if err := writeString(tbl.Allocator(), e, 0x1000, msg); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		e.Status = abi.StatusRunnable
		n := len(msg)
		e.Program = func(k env.Kernel, self *env.Env) {
			for i := 0; i < rounds; i++ {
				k.Syscall(self, abi.SysCputs, 0x1000, uintptr(n), 0, 0, 0)
				k.Syscall(self, abi.SysYield, 0, 0, 0, 0, 0)
			}
			k.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
		}
	}
	return nil
}

// IPC seeds a parent/child pair: the parent writes a byte into a
// fresh page, offers it over ipc_try_send, and the child's ipc_recv
// picks up both the value and the page, after which the child prints
// a fixed confirmation line seeded at boot.
func IPC(k *zsyscall.Kernel, tbl *env.Table) error {
	tbl.Lock()
	parent, err := tbl.Alloc(nil)
	if err != nil {
		tbl.Unlock()
		return fmt.Errorf("alloc parent: %w", err)
	}
	child, err := tbl.Alloc(nil)
	if err != nil {
		tbl.Unlock()
		return fmt.Errorf("alloc child: %w", err)
	}
	if err := writeString(tbl.Allocator(), child, 0x3000, "child: received page and value\n"); err != nil {
		tbl.Unlock()
		return err
	}
	parent.Status = abi.StatusRunnable
	child.Status = abi.StatusRunnable
	tbl.Unlock()

	childID := child.ID
	parent.Program = func(pk env.Kernel, self *env.Env) {
		pk.Syscall(self, abi.SysPageAlloc, 0, 0x2000, uintptr(abi.PteU|abi.PteW), 0, 0)
		if frame, _, ok := k.Alloc.PageLookup(self.AS, 0x2000); ok {
			frame.Bytes()[0] = 0x2a
		}
		for {
			r := pk.Syscall(self, abi.SysIPCTrySend, uintptr(childID), 42, 0x2000, uintptr(abi.PteU|abi.PteW), 0)
			if r == 0 {
				break
			}
			pk.Syscall(self, abi.SysYield, 0, 0, 0, 0, 0)
		}
		pk.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
	}
	child.Program = func(pk env.Kernel, self *env.Env) {
		pk.Syscall(self, abi.SysIPCRecv, 0x4000, 0, 0, 0, 0)
		pk.Syscall(self, abi.SysCputs, 0x3000, 31, 0, 0, 0)
		pk.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
	}
	return nil
}

// ForkCOW seeds one environment that installs the copy-on-write fork
// handler, writes a byte, forks, and has the child overwrite its own
// copy: the two environments end up observing different bytes at the
// same virtual address. The child is driven
// directly from the parent's goroutine rather than through the
// scheduler (Fork marks it RUNNABLE, and the parent sets it back to
// NOT_RUNNABLE right after), since the point here is to show the page
// tables diverge, not to exercise another dispatch.
func ForkCOW(k *zsyscall.Kernel, tbl *env.Table) error {
	tbl.Lock()
	parent, err := tbl.Alloc(nil)
	if err != nil {
		tbl.Unlock()
		return fmt.Errorf("alloc parent: %w", err)
	}
	if err := writeString(tbl.Allocator(), parent, 0x5000, "parent still sees 0xAA, child now sees 0xBB\n"); err != nil {
		tbl.Unlock()
		return err
	}
	parent.Status = abi.StatusRunnable
	tbl.Unlock()

	parent.Program = func(pk env.Kernel, self *env.Env) {
		ue := &userlib.Env{Kernel: k, Self: self}
		if err := ue.EnableCOWFork(); err != nil {
			pk.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
			return
		}
		const va = 0x4000
		pk.Syscall(self, abi.SysPageAlloc, 0, va, uintptr(abi.PteU|abi.PteW), 0, 0)
		if err := ue.WritePage(va, []byte{0xAA}); err != nil {
			pk.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
			return
		}

		childID, err := ue.Fork()
		if err != nil {
			pk.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
			return
		}

		// Keep the child out of the scheduler's RUNNABLE sweep: its
		// divergence is demonstrated here, synchronously, not through
		// its own dispatch.
		pk.Syscall(self, abi.SysEnvSetStatus, uintptr(childID), uintptr(abi.NotRunnable), 0, 0, 0)

		tbl.Lock()
		childEnv := tbl.EnvAt(childID.Slot())
		tbl.Unlock()
		childUE := &userlib.Env{Kernel: k, Self: childEnv}
		if err := childUE.WritePage(va, []byte{0xBB}); err != nil {
			pk.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
			return
		}

		pk.Syscall(self, abi.SysCputs, 0x5000, 44, 0, 0, 0)
		pk.Syscall(self, abi.SysEnvDestroy, uintptr(childID), 0, 0, 0, 0)
		pk.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
	}
	return nil
}

// Seed dispatches to the named scenario.
func Seed(name string, k *zsyscall.Kernel, tbl *env.Table) error {
	switch name {
	case "hello":
		return Hello(tbl, []string{"A", "B", "C"}, 5)
	case "ipc":
		return IPC(k, tbl)
	case "forkcow":
		return ForkCOW(k, tbl)
	default:
		return fmt.Errorf("unknown scenario %q (want one of %v)", name, Names)
	}
}
