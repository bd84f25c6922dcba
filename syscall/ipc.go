package syscall

import (
	"runtime"

	"zjos-go/abi"
	"zjos-go/env"
	kerrors "zjos-go/errors"
)

// sysIPCTrySend resolves the target with check = false — a receiver
// consents by receiving — so any environment can attempt to send to
// any other; env.Table.TrySend is the gate that actually requires
// the target to be waiting.
func (k *Kernel) sysIPCTrySend(caller *env.Env, envid abi.EnvID, value uint32, srcva uintptr, perm uint32) error {
	if k.Metrics != nil {
		k.Metrics.IPCSends.Inc()
	}
	target, err := k.Table.Resolve(caller, envid, false)
	if err != nil {
		return err
	}
	if err := k.Table.TrySend(caller, target, value, srcva, perm); err != nil {
		if k.Metrics != nil && kerrors.Is(err, kerrors.ErrNotRecipient) {
			k.Metrics.IPCNotRecv.Inc()
		}
		return err
	}
	if k.Metrics != nil {
		k.Metrics.IPCDelivered.Inc()
	}
	return nil
}

// sysIPCRecv, like sysYield, never returns to user mode through its
// own call frame: env.Table.BeginRecv marks the caller NOT_RUNNABLE
// and zeroes
// its saved return register, then the caller's goroutine parks on
// Env.ParkSelf until some sender's ipc_try_send (running on any CPU,
// under the same big lock) marks it RUNNABLE again and the scheduler
// redispatches it — at which point this call simply returns 0, the
// same "no special-case resume path" trick sysYield uses.
func (k *Kernel) sysIPCRecv(caller *env.Env, dstva uintptr) int32 {
	if err := k.Table.BeginRecv(caller, dstva); err != nil {
		return kerrors.Errno(err)
	}

	k.Table.Unlock()
	killed := caller.ParkSelf()
	k.Table.Lock()

	if killed {
		runtime.Goexit()
	}
	return 0
}
