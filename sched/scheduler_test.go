package sched

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"zjos-go/abi"
	"zjos-go/env"
	"zjos-go/mm"
	zsyscall "zjos-go/syscall"
)

// writeString pre-loads s into a fresh page mapped at va in e's
// address space, standing in for the
// linker-loaded string constants a real user program would already
// have mapped.
func writeString(t *testing.T, alloc mm.PageAllocator, e *env.Env, va uintptr, s string) {
	t.Helper()
	frame, err := alloc.PageAlloc()
	if err != nil {
		t.Fatalf("PageAlloc: %v", err)
	}
	copy(frame.Bytes(), s)
	if err := alloc.PageInsert(e.AS, va, frame, abi.PteU); err != nil {
		t.Fatalf("PageInsert: %v", err)
	}
}

// Yield/round-robin: three user environments on one CPU each
// print "Hello from X" and yield five times; the console output must
// show each of A, B, C exactly once per round, in a consistent order.
func TestYieldRoundRobin(t *testing.T) {
	tbl, err := env.NewTable(8, 1, mm.NewArena())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	var out bytes.Buffer
	k := zsyscall.NewKernel(tbl, tbl.Allocator(), zsyscall.NewConsole(&out))

	tbl.Lock()
	names := []string{"A", "B", "C"}
	envs := make([]*env.Env, len(names))
	for i, name := range names {
		e, err := tbl.Alloc(nil)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		writeString(t, tbl.Allocator(), e, 0x1000, "Hello from "+name+"\n")
		e.Status = abi.StatusRunnable
		envs[i] = e
	}
	tbl.Unlock()

	var mu sync.Mutex
	var order []string
	for i, e := range envs {
		e, name := e, names[i]
		e.Program = func(k env.Kernel, self *env.Env) {
			for round := 0; round < 5; round++ {
				k.Syscall(self, abi.SysCputs, 0x1000, uintptr(len(name)+11), 0, 0, 0)
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				k.Syscall(self, abi.SysYield, 0, 0, 0, 0, 0)
			}
			k.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
		}
	}

	s := NewScheduler(tbl, k)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.Run(ctx, 0)

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= 15 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 15 {
		t.Fatalf("only %d dispatches observed, want at least 15", len(order))
	}
	// Round-robin: every consecutive window of 3 dispatches should be
	// a permutation of {A, B, C} in the same cyclic order the first
	// round established.
	first3 := strings.Join(order[0:3], "")
	for i := 3; i+3 <= 15; i += 3 {
		window := strings.Join(order[i:i+3], "")
		if window != first3 {
			t.Errorf("round-robin order broke: round 0 = %q, round %d = %q", first3, i/3, window)
		}
	}
	if !strings.Contains(out.String(), "Hello from A") ||
		!strings.Contains(out.String(), "Hello from B") ||
		!strings.Contains(out.String(), "Hello from C") {
		t.Errorf("console output missing a greeting: %q", out.String())
	}
}

// IPC value only: child calls ipc_recv, parent sends a bare
// value; the child must observe it along with the sender's id.
func TestIPCValueOnly(t *testing.T) {
	tbl, err := env.NewTable(8, 1, mm.NewArena())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	k := zsyscall.NewKernel(tbl, tbl.Allocator(), zsyscall.NewConsole(&bytes.Buffer{}))

	tbl.Lock()
	parent, _ := tbl.Alloc(nil)
	child, _ := tbl.Alloc(nil)
	parent.Status = abi.StatusRunnable
	child.Status = abi.StatusRunnable
	tbl.Unlock()

	result := make(chan struct {
		value uint32
		perm  uint32
		from  abi.EnvID
	}, 1)

	child.Program = func(k env.Kernel, self *env.Env) {
		k.Syscall(self, abi.SysIPCRecv, uintptr(abi.UTOP), 0, 0, 0, 0)
		result <- struct {
			value uint32
			perm  uint32
			from  abi.EnvID
		}{self.IPCValue, self.IPCPerm, self.IPCFrom}
		k.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
	}
	parent.Program = func(k env.Kernel, self *env.Env) {
		for {
			r := k.Syscall(self, abi.SysIPCTrySend, uintptr(child.ID), 42, uintptr(abi.UTOP), 0, 0)
			if r == 0 {
				break
			}
			k.Syscall(self, abi.SysYield, 0, 0, 0, 0, 0)
		}
		k.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
	}

	s := NewScheduler(tbl, k)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.Run(ctx, 0)

	select {
	case got := <-result:
		if got.value != 42 {
			t.Errorf("ipc_value = %d, want 42", got.value)
		}
		if got.perm != 0 {
			t.Errorf("ipc_perm = %#x, want 0", got.perm)
		}
		if got.from != parent.ID {
			t.Errorf("ipc_from = %v, want %v", got.from, parent.ID)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for IPC delivery")
	}
}

// IPC with page: child receives a page transfer and reads the
// byte the parent wrote before sending.
func TestIPCWithPage(t *testing.T) {
	tbl, err := env.NewTable(8, 1, mm.NewArena())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	k := zsyscall.NewKernel(tbl, tbl.Allocator(), zsyscall.NewConsole(&bytes.Buffer{}))

	tbl.Lock()
	parent, _ := tbl.Alloc(nil)
	child, _ := tbl.Alloc(nil)
	parent.Status = abi.StatusRunnable
	child.Status = abi.StatusRunnable
	tbl.Unlock()

	const dstva = 0x1000
	readByte := make(chan byte, 1)

	child.Program = func(k env.Kernel, self *env.Env) {
		k.Syscall(self, abi.SysIPCRecv, uintptr(dstva), 0, 0, 0, 0)
		frame, _, ok := tbl.Allocator().PageLookup(self.AS, uintptr(dstva))
		if !ok {
			readByte <- 0
		} else {
			readByte <- frame.Bytes()[0]
		}
		k.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
	}
	parent.Program = func(k env.Kernel, self *env.Env) {
		k.Syscall(self, abi.SysPageAlloc, 0, 0x2000, uintptr(abi.PteU|abi.PteW), 0, 0)
		frame, _, _ := tbl.Allocator().PageLookup(self.AS, 0x2000)
		frame.Bytes()[0] = 0xCC
		for {
			r := k.Syscall(self, abi.SysIPCTrySend, uintptr(child.ID), 1, 0x2000, uintptr(abi.PteU|abi.PteW), 0)
			if r == 0 {
				break
			}
			k.Syscall(self, abi.SysYield, 0, 0, 0, 0, 0)
		}
		k.Syscall(self, abi.SysEnvDestroy, 0, 0, 0, 0, 0)
	}

	s := NewScheduler(tbl, k)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.Run(ctx, 0)

	select {
	case got := <-readByte:
		if got != 0xCC {
			t.Errorf("child read %#x at dstva, want 0xCC", got)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for page delivery")
	}
}

// No receiver: ipc_try_send to an environment that never calls
// ipc_recv returns E_IPC_NOT_RECV and the sender stays RUNNABLE.
func TestSendToNonReceiver(t *testing.T) {
	tbl, err := env.NewTable(8, 1, mm.NewArena())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	k := zsyscall.NewKernel(tbl, tbl.Allocator(), zsyscall.NewConsole(&bytes.Buffer{}))

	tbl.Lock()
	sender, _ := tbl.Alloc(nil)
	target, _ := tbl.Alloc(nil)
	sender.Status = abi.StatusRunnable
	target.Status = abi.StatusRunnable
	tbl.Unlock()

	resultCh := make(chan int32, 1)
	sender.Program = func(k env.Kernel, self *env.Env) {
		r := k.Syscall(self, abi.SysIPCTrySend, uintptr(target.ID), 1, uintptr(abi.UTOP), 0, 0)
		resultCh <- r
		for {
			k.Syscall(self, abi.SysYield, 0, 0, 0, 0, 0)
		}
	}
	target.Program = func(k env.Kernel, self *env.Env) {
		for {
			k.Syscall(self, abi.SysYield, 0, 0, 0, 0, 0)
		}
	}

	s := NewScheduler(tbl, k)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go s.Run(ctx, 0)

	select {
	case r := <-resultCh:
		if r >= 0 {
			t.Errorf("ipc_try_send to a non-receiving target: r = %d, want negative", r)
		}
	case <-time.After(400 * time.Millisecond):
		t.Fatal("timed out")
	}
	tbl.Lock()
	defer tbl.Unlock()
	if sender.Status.Kind != abi.Runnable && sender.Status.Kind != abi.Running {
		t.Errorf("sender.Status = %v, want RUNNABLE/RUNNING", sender.Status)
	}
}
