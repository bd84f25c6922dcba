package syscall

import (
	"testing"

	"zjos-go/abi"
)

func TestIPCTrySendNoReceiverReturnsError(t *testing.T) {
	k, tbl := newTestKernel(t, 8)
	sender := allocUser(t, tbl, nil)
	target := allocUser(t, tbl, nil)

	r := k.Syscall(sender, abi.SysIPCTrySend, uintptr(target.ID), 42, uintptr(abi.UTOP), 0, 0)
	if r >= 0 {
		t.Errorf("ipc_try_send with no waiting receiver: r = %d, want E_IPC_NOT_RECV", r)
	}
	if sender.Status.Kind != abi.Runnable {
		t.Errorf("sender.Status = %v, want RUNNABLE (unaffected by the failed send)", sender.Status)
	}
}

func TestIPCTrySendRejectsBadPermOnPageOffer(t *testing.T) {
	k, tbl := newTestKernel(t, 8)
	sender := allocUser(t, tbl, nil)
	target := allocUser(t, tbl, nil)

	tbl.Lock()
	if err := tbl.BeginRecv(target, 0x2000); err != nil {
		tbl.Unlock()
		t.Fatalf("BeginRecv: %v", err)
	}
	tbl.Unlock()

	if r := k.Syscall(sender, abi.SysPageAlloc, 0, 0x1000, uintptr(abi.PteU), 0, 0); r != 0 {
		t.Fatalf("page_alloc: r = %d", r)
	}

	r := k.Syscall(sender, abi.SysIPCTrySend, uintptr(target.ID), 1, 0x1000, uintptr(abi.PteU|abi.PteW), 0)
	if r >= 0 {
		t.Errorf("ipc_try_send offering PTE_W from a read-only page: r = %d, want negative", r)
	}
}
