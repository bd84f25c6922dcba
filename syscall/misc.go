package syscall

import (
	"runtime"

	"zjos-go/abi"
	"zjos-go/env"
	kerrors "zjos-go/errors"
)

// sysCputs verifies the caller can read [ptr, ptr+len) as user
// pages, then copies those bytes to the console. A failed check
// destroys the caller instead of returning an error: a bad address
// in a print call is a programming bug, and the buffer may straddle
// a fault.
func (k *Kernel) sysCputs(caller *env.Env, ptr, length uintptr) (int32, error) {
	data, err := k.readUserBytes(caller, ptr, uintptr(length))
	if err != nil {
		_ = k.Table.Destroy(caller)
		if k.Metrics != nil {
			k.Metrics.EnvDestroys.Inc()
		}
		runtime.Goexit()
		return 0, nil // unreachable; Goexit never returns
	}
	k.Console.Write(data)
	return 0, nil
}

// readUserBytes validates that every page in [va, va+length) is
// mapped in caller's address space with PTE_U set, then assembles the
// requested bytes directly out of the backing frames — there is no
// separate simulated memory layer, a mapped page's content *is* the
// frame's Bytes() slice.
func (k *Kernel) readUserBytes(caller *env.Env, va, length uintptr) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	out := make([]byte, 0, length)
	start := va - (va % abi.PageSize)
	end := va + length
	for page := start; page < end; page += abi.PageSize {
		frame, perm, ok := k.Alloc.PageLookup(caller.AS, page)
		if !ok || perm&abi.PteU == 0 {
			return nil, kerrors.New(kerrors.ErrInval, "cputs", "unmapped or non-user page in range")
		}
		lo := uintptr(0)
		if page == start {
			lo = va - start
		}
		hi := uintptr(abi.PageSize)
		if page+abi.PageSize > end {
			hi = end - page
		}
		out = append(out, frame.Bytes()[lo:hi]...)
	}
	return out, nil
}

// sysEnvDestroy destroys the resolved target. Destroying oneself
// does not return.
func (k *Kernel) sysEnvDestroy(caller *env.Env, envid abi.EnvID) error {
	target, err := k.Table.Resolve(caller, envid, true)
	if err != nil {
		return err
	}
	if err := k.Table.Destroy(target); err != nil {
		return err
	}
	if k.Metrics != nil {
		k.Metrics.EnvDestroys.Inc()
	}
	if target == caller {
		runtime.Goexit()
	}
	return nil
}

// sysYield never returns to user mode through the normal path: the
// caller's own goroutine parks on Env.ParkSelf and the dispatching
// CPU resumes some other environment. When this environment is
// dispatched again, the blocked call simply returns 0.
//
// The transition RUNNING -> RUNNABLE happens here, before the park,
// so no two table walks ever see a parked environment still marked
// RUNNING on a CPU.
func (k *Kernel) sysYield(caller *env.Env) int32 {
	caller.Status = abi.StatusRunnable
	k.Table.Unlock()
	killed := caller.ParkSelf()
	k.Table.Lock()
	if killed {
		runtime.Goexit()
	}
	return 0
}

// sysExofork allocates a blank child of the caller. The parent gets
// the child id back; the child's cloned trapframe already carries 0
// in its return register.
func (k *Kernel) sysExofork(caller *env.Env) (int32, error) {
	child, err := k.Table.Alloc(caller)
	if err != nil {
		return 0, err
	}
	return int32(child.ID), nil
}

// sysEnvSetStatus accepts only RUNNABLE and NOT_RUNNABLE.
func (k *Kernel) sysEnvSetStatus(caller *env.Env, envid abi.EnvID, status abi.StatusKind) error {
	target, err := k.Table.Resolve(caller, envid, true)
	if err != nil {
		return err
	}
	if status != abi.Runnable && status != abi.NotRunnable {
		return kerrors.ErrBadStatus
	}
	target.Status = abi.EnvStatus{Kind: status}
	return nil
}

// sysEnvSetPgfaultUpcall verifies fn lies in a readable user page of
// the target, then records it as the page-fault entry point.
func (k *Kernel) sysEnvSetPgfaultUpcall(caller *env.Env, envid abi.EnvID, fn uintptr) error {
	target, err := k.Table.Resolve(caller, envid, true)
	if err != nil {
		return err
	}
	_, perm, ok := k.Alloc.PageLookup(target.AS, fn-(fn%abi.PageSize))
	if !ok || perm&abi.PteU == 0 {
		return kerrors.New(kerrors.ErrInval, "env_set_pgfault_upcall", "func is not in a mapped user page")
	}
	target.SetPgfaultUpcall(fn)
	return nil
}
