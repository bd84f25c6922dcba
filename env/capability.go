package env

import (
	"zjos-go/abi"
	kerrors "zjos-go/errors"
)

// Resolve is the sole gatekeeper for environment ids: every
// cross-environment syscall goes through it. If envid is 0, the
// caller itself is returned. Otherwise the id's slot bits index the
// table; the slot must be occupied and its stored id must match
// exactly (slot index and generation both), or E_BAD_ENV is returned.
// When check is set, the caller must additionally be the target
// itself or the target's direct parent.
//
// Every caller except ipc_try_send passes check = true; ipc_try_send
// passes false since a target waiting in ipc_recv consents by
// receiving.
//
// Resolve assumes the caller already holds the table's lock.
func (t *Table) Resolve(caller *Env, envid abi.EnvID, check bool) (*Env, error) {
	if envid == 0 {
		return caller, nil
	}

	slot := envid.Slot()
	if slot < 0 || slot >= len(t.envs) {
		return nil, kerrors.ErrSlotOutOfRange
	}
	target := t.envs[slot]
	if target.Status.Kind == abi.Free {
		return nil, kerrors.ErrSlotFree
	}
	if target.ID != envid {
		return nil, kerrors.ErrGenerationMismatch
	}
	if check && target != caller && target.ParentID != caller.ID {
		return nil, kerrors.ErrNotSelfOrChild
	}
	return target, nil
}
