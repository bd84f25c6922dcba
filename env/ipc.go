package env

import (
	"zjos-go/abi"
	kerrors "zjos-go/errors"
	"zjos-go/mm"
)

// BeginRecv implements the state-mutation half of sys_ipc_recv:
// validates dstva's alignment when it is below UTOP, then marks the
// caller as waiting to receive, descheduled, and zeroes its saved
// return register. The caller (syscall.Kernel.sysIPCRecv) is
// responsible for the part this method cannot do itself: parking the
// caller's goroutine so this syscall "never returns through its own
// call frame" until a sender wakes it. Assumes the lock held.
func (t *Table) BeginRecv(caller *Env, dstva uintptr) error {
	if dstva < abi.UTOP && !abi.PageAligned(dstva) {
		return kerrors.ErrUnalignedVA
	}
	caller.IPCRecving = true
	caller.IPCDstva = dstva
	caller.Status = abi.StatusNotRunnable
	caller.Trapframe.Regs.EAX = 0
	return nil
}

// TrySend implements sys_ipc_try_send. Resolve
// must already have been called with check = false by the caller
// (syscall.Kernel.sysIPCTrySend); target is the result. Assumes the
// lock held.
//
// A page is transferred only when the sender offers one (srcva <
// UTOP) and the receiver asked for one (target.IPCDstva < UTOP);
// otherwise the value still gets delivered with perm forced to 0 —
// a receiver opting out of the page is not an error.
func (t *Table) TrySend(sender, target *Env, value uint32, srcva uintptr, perm uint32) error {
	if !target.IPCRecving {
		return kerrors.ErrNotRecipient
	}

	if srcva >= abi.UTOP {
		perm = 0
	} else if target.IPCDstva >= abi.UTOP {
		perm = 0
	} else {
		if !abi.PageAligned(srcva) {
			return kerrors.ErrUnalignedVA
		}
		if err := mm.ValidatePerm(perm); err != nil {
			return err
		}
		frame, srcPerm, ok := t.alloc.PageLookup(sender.AS, srcva)
		if !ok {
			return kerrors.ErrNoMapping
		}
		if perm&abi.PteW != 0 && srcPerm&abi.PteW == 0 {
			return kerrors.ErrSourceNotWritable
		}
		if err := t.alloc.PageInsert(target.AS, target.IPCDstva, frame, perm); err != nil {
			return kerrors.Wrap(err, kerrors.ErrNoMem, "ipc_try_send")
		}
	}

	target.IPCRecving = false
	target.IPCFrom = sender.ID
	target.IPCValue = value
	target.IPCPerm = perm
	target.Status = abi.StatusRunnable
	return nil
}
