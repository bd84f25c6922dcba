// Package userlib is the user-space runtime a Program links against:
// copy-on-write fork built purely out of the syscalls the kernel
// exposes, plus a page-fault handler installed through
// env_set_pgfault_upcall.
//
// On real hardware the fault path is a trap: a write to a read-only
// COW page faults into the kernel, which bounces control to a
// user-mode trampoline recorded by env_set_pgfault_upcall. This model
// has no trap delivery, so a direct in-process callback registry
// (below) substitutes for the trampoline; the syscall's own
// validation (the upcall address must resolve to a mapped user page)
// and every other step of duppage and fork are unchanged.
package userlib

import (
	"fmt"
	"sync"

	"zjos-go/abi"
	"zjos-go/env"
	kerrors "zjos-go/errors"
	zsyscall "zjos-go/syscall"
)

// upcallVA is the scratch address fork uses as the "address" of its
// page-fault entry point. It only ever needs to satisfy
// env_set_pgfault_upcall's "func lies in a readable user page of
// envid" check; the actual dispatch goes through the handlers
// registry, not a jump to this address.
const upcallVA = abi.USTACKTOP - 3*abi.PageSize

var (
	handlersMu sync.Mutex
	handlers   = map[abi.EnvID]func(addr uintptr) error{}
)

// Env bundles the syscall surface and environment identity a user
// program needs to call into this package.
type Env struct {
	Kernel *zsyscall.Kernel
	Self   *env.Env
}

// call issues one syscall and turns a negative return into a
// *errors.SyscallError.
func (ue *Env) call(num abi.SyscallNum, a1, a2, a3, a4, a5 uintptr) (int32, error) {
	r := ue.Kernel.Syscall(ue.Self, num, a1, a2, a3, a4, a5)
	if r < 0 {
		return r, kerrors.New(kerrors.ErrorKind(-1-r), num.String(), fmt.Sprintf("syscall %s failed", num))
	}
	return r, nil
}

// SetPgfaultHandler installs h as this environment's page-fault
// handler. It lazily maps upcallVA as a
// user page the first time it's called so env_set_pgfault_upcall's
// validation has something real to find.
func (ue *Env) SetPgfaultHandler(h func(addr uintptr) error) error {
	if _, _, ok := ue.Kernel.Alloc.PageLookup(ue.Self.AS, upcallVA); !ok {
		if _, err := ue.call(abi.SysPageAlloc, 0, upcallVA, uintptr(abi.PteU|abi.PteW), 0, 0); err != nil {
			return err
		}
	}
	if _, err := ue.call(abi.SysEnvSetPgfaultUpcall, 0, upcallVA, 0, 0, 0); err != nil {
		return err
	}
	handlersMu.Lock()
	handlers[ue.Self.ID] = h
	handlersMu.Unlock()
	return nil
}

// Handler returns the page-fault handler previously installed for
// envid, if any.
func Handler(envid abi.EnvID) (func(addr uintptr) error, bool) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	h, ok := handlers[envid]
	return h, ok
}

func pageBase(va uintptr) uintptr {
	return va - va%abi.PageSize
}

// ReadPage returns a copy of the page currently mapped at va.
func (ue *Env) ReadPage(va uintptr) ([]byte, error) {
	frame, _, ok := ue.Kernel.Alloc.PageLookup(ue.Self.AS, pageBase(va))
	if !ok {
		return nil, kerrors.New(kerrors.ErrInval, "read", "no mapping at address")
	}
	out := make([]byte, len(frame.Bytes()))
	copy(out, frame.Bytes())
	return out, nil
}

// WritePage writes data (truncated/zero-padded to one page) into the
// page mapped at va. If that page is marked PTE_COW and not directly
// writable, it first runs the environment's installed page-fault
// handler, the simulated equivalent of the hardware write fault,
// before writing through.
func (ue *Env) WritePage(va uintptr, data []byte) error {
	page := pageBase(va)
	_, perm, ok := ue.Kernel.Alloc.PageLookup(ue.Self.AS, page)
	if !ok {
		return kerrors.New(kerrors.ErrInval, "write", "no mapping at address")
	}
	if perm&abi.PteW == 0 {
		if perm&abi.PteCOW == 0 {
			return kerrors.New(kerrors.ErrInval, "write", "page is neither writable nor copy-on-write")
		}
		h, found := Handler(ue.Self.ID)
		if !found {
			return kerrors.New(kerrors.ErrInval, "write", "no page-fault handler installed")
		}
		if err := h(page); err != nil {
			return err
		}
	}
	frame, _, ok := ue.Kernel.Alloc.PageLookup(ue.Self.AS, page)
	if !ok {
		return kerrors.New(kerrors.ErrInval, "write", "mapping vanished after page-fault handling")
	}
	n := copy(frame.Bytes(), data)
	for i := n; i < len(frame.Bytes()); i++ {
		frame.Bytes()[i] = 0
	}
	return nil
}

// pfault is the default copy-on-write fault handler fork installs:
// allocate a fresh page at the PFTEMP scratch address, copy the
// faulting page's contents into it, remap the scratch page over the
// faulting address, unmap the scratch location.
func (ue *Env) pfault(addr uintptr) error {
	page := pageBase(addr)
	if _, err := ue.call(abi.SysPageAlloc, 0, abi.PFTEMP, uintptr(abi.PteU|abi.PteW), 0, 0); err != nil {
		return err
	}
	old, _, ok := ue.Kernel.Alloc.PageLookup(ue.Self.AS, page)
	if !ok {
		return kerrors.New(kerrors.ErrInval, "pgfault", "faulting page is no longer mapped")
	}
	scratch, _, _ := ue.Kernel.Alloc.PageLookup(ue.Self.AS, abi.PFTEMP)
	copy(scratch.Bytes(), old.Bytes())

	if _, err := ue.call(abi.SysPageMap, 0, abi.PFTEMP, 0, page, uintptr(abi.PteU|abi.PteW)); err != nil {
		return err
	}
	_, err := ue.call(abi.SysPageUnmap, 0, abi.PFTEMP, 0, 0, 0)
	return err
}

// duppage shares one page with the child: if the page at va is
// writable or already PTE_COW, it is remapped in both parent
// and child with PTE_COW in place of PTE_W; a plain read-only page is
// remapped as-is. Remapping in the parent too (not just the child) is
// required — once either side writes, both sides must fault.
func (ue *Env) duppage(child abi.EnvID, va uintptr) error {
	_, perm, ok := ue.Kernel.Alloc.PageLookup(ue.Self.AS, va)
	if !ok {
		return kerrors.New(kerrors.ErrInval, "duppage", "no mapping at address")
	}

	newPerm := perm
	if perm&abi.PteW != 0 || perm&abi.PteCOW != 0 {
		newPerm = (perm &^ abi.PteW) | abi.PteCOW
	}

	if _, err := ue.call(abi.SysPageMap, 0, va, uintptr(child), va, uintptr(newPerm)); err != nil {
		return err
	}
	if newPerm != perm {
		if _, err := ue.call(abi.SysPageMap, 0, va, 0, va, uintptr(newPerm)); err != nil {
			return err
		}
	}
	return nil
}

// Fork duplicates the calling environment copy-on-write, marks the
// child RUNNABLE, and returns the child's id to the parent. The
// child's cloned trapframe carries 0 in its return register, but Fork
// gives the child no Program (env.Table.Alloc does not copy one) and
// never returns on the child's behalf: once dispatched, the child runs
// only a Program assigned to it, and with none it exits at once and
// the scheduler destroys it.
func (ue *Env) Fork() (abi.EnvID, error) {
	r, err := ue.call(abi.SysExofork, 0, 0, 0, 0, 0)
	if err != nil {
		return 0, err
	}
	child := abi.EnvID(r)

	if _, err := ue.call(abi.SysPageAlloc, uintptr(child), abi.UXSTACKTOP-abi.PageSize, uintptr(abi.PteU|abi.PteW), 0, 0); err != nil {
		return 0, err
	}

	pages := ue.Self.AS.MappedPages(abi.USTACKTOP)
	for _, va := range pages {
		if va == upcallVA {
			// The upcall trampoline page is code: shared read-only,
			// never COW, and the child needs it mapped before
			// env_set_pgfault_upcall will accept it below.
			if _, err := ue.call(abi.SysPageMap, 0, va, uintptr(child), va, uintptr(abi.PteU)); err != nil {
				return 0, err
			}
			continue
		}
		if err := ue.duppage(child, va); err != nil {
			return 0, err
		}
	}

	if _, ok := Handler(ue.Self.ID); ok {
		if _, err := ue.call(abi.SysEnvSetPgfaultUpcall, uintptr(child), upcallVA, 0, 0, 0); err != nil {
			return 0, err
		}
		// The child's handler must be bound to the child's own
		// environment: a fault in the child allocates and remaps in
		// the child's address space, not the parent's.
		ue.Kernel.Table.Lock()
		childEnv := ue.Kernel.Table.EnvAt(child.Slot())
		ue.Kernel.Table.Unlock()
		childUE := &Env{Kernel: ue.Kernel, Self: childEnv}
		handlersMu.Lock()
		handlers[child] = childUE.pfault
		handlersMu.Unlock()
	}

	if _, err := ue.call(abi.SysEnvSetStatus, uintptr(child), uintptr(abi.Runnable), 0, 0, 0); err != nil {
		return 0, err
	}
	return child, nil
}

// EnableCOWFork installs the default copy-on-write page-fault handler
// (pfault) on ue, the call every forking Program makes once before
// its first Fork.
func (ue *Env) EnableCOWFork() error {
	return ue.SetPgfaultHandler(ue.pfault)
}
