// Package syscall implements the kernel's syscall surface: the
// numeric dispatcher and the fourteen handlers it invokes. Every
// handler here assumes the big kernel lock (env.Table.Lock) is held
// for its entire body — Kernel.Syscall acquires it once per call,
// on kernel entry, and releases it just before returning to the
// caller's user-mode code.
package syscall

import (
	"log/slog"

	"zjos-go/abi"
	"zjos-go/env"
	kerrors "zjos-go/errors"
	"zjos-go/logging"
	"zjos-go/metrics"
	"zjos-go/mm"
)

// Kernel is the concrete env.Kernel implementation: the dispatcher
// plus everything a handler needs (the environment table, the page
// allocator, the console, and optional metrics/logging).
type Kernel struct {
	Table   *env.Table
	Alloc   mm.PageAllocator
	Console *Console
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// NewKernel wires a Kernel against an existing table and allocator.
func NewKernel(t *env.Table, alloc mm.PageAllocator, console *Console) *Kernel {
	return &Kernel{Table: t, Alloc: alloc, Console: console, Logger: logging.Default()}
}

func (k *Kernel) logger() *slog.Logger {
	if k.Logger != nil {
		return k.Logger
	}
	return logging.Default()
}

// Syscall decodes and dispatches one syscall. Unknown syscall
// numbers return E_INVAL.
func (k *Kernel) Syscall(caller *env.Env, num abi.SyscallNum, a1, a2, a3, a4, a5 uintptr) int32 {
	trace := logging.WithSyscall(logging.WithEnv(logging.NewTrace(k.logger()), caller.ID), num)

	k.Table.Lock()
	defer k.Table.Unlock()

	var (
		result int32
		err    error
	)

	switch num {
	case abi.SysCputs:
		result, err = k.sysCputs(caller, a1, a2)
	case abi.SysCgetc:
		result = int32(k.Console.GetC())
	case abi.SysGetEnvID:
		result = int32(caller.ID)
	case abi.SysEnvDestroy:
		err = k.sysEnvDestroy(caller, abi.EnvID(a1))
	case abi.SysYield:
		result = k.sysYield(caller)
	case abi.SysExofork:
		result, err = k.sysExofork(caller)
	case abi.SysEnvSetStatus:
		err = k.sysEnvSetStatus(caller, abi.EnvID(a1), abi.StatusKind(a2))
	case abi.SysPageAlloc:
		err = k.sysPageAlloc(caller, abi.EnvID(a1), uintptr(a2), uint32(a3))
	case abi.SysPageMap:
		err = k.sysPageMap(caller, abi.EnvID(a1), uintptr(a2), abi.EnvID(a3), uintptr(a4), uint32(a5))
	case abi.SysPageUnmap:
		err = k.sysPageUnmap(caller, abi.EnvID(a1), uintptr(a2))
	case abi.SysEnvSetPgfaultUpcall:
		err = k.sysEnvSetPgfaultUpcall(caller, abi.EnvID(a1), uintptr(a2))
	case abi.SysIPCTrySend:
		err = k.sysIPCTrySend(caller, abi.EnvID(a1), uint32(a2), uintptr(a3), uint32(a4))
	case abi.SysIPCRecv:
		result = k.sysIPCRecv(caller, uintptr(a1))
	case abi.SysGetCPUID:
		result = int32(caller.CPU)
	default:
		err = kerrors.ErrUnknownSyscall
	}

	if err != nil {
		result = kerrors.Errno(err)
	}
	trace.Debug("syscall dispatched", "result", result)
	return result
}
