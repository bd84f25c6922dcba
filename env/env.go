// Package env implements the environment table: a fixed-capacity pool
// of user-mode execution contexts, their lifecycle (allocation,
// capability resolution, destruction), and the IPC rendezvous state
// each slot carries. It is the one place the big kernel lock lives.
//
// Table.mu is that lock. Every method on Table except NewTable,
// Snapshot, Lock and Unlock assumes the caller already holds it — the
// lock is acquired once on kernel entry (syscall.Kernel.Syscall) and once
// per scheduler dispatch step, rather than re-acquired per method
// call.
package env

import (
	"sync"

	"zjos-go/abi"
	kerrors "zjos-go/errors"
	"zjos-go/mm"
)

// Program is the simulated user-mode code an environment runs. It
// receives a handle for issuing syscalls and the environment it is
// running as. A real kernel resumes a saved trapframe at an
// instruction pointer; this software model instead runs the
// environment's whole lifetime on a dedicated goroutine that blocks
// and resumes across a channel handoff with whichever CPU dispatches
// it (see coroutine.go and the sched package).
type Program func(k Kernel, self *Env)

// Kernel is the syscall surface a Program drives itself with. It is
// satisfied by *syscall.Kernel; defined here (rather than imported)
// to avoid a cycle, since the syscall package depends on env.
type Kernel interface {
	Syscall(self *Env, num abi.SyscallNum, a1, a2, a3, a4, a5 uintptr) int32
}

// Env is one slot of the environment table.
type Env struct {
	ID       abi.EnvID
	ParentID abi.EnvID
	Status   abi.EnvStatus
	Type     abi.EnvType
	CPU      int

	Trapframe abi.Trapframe
	AS        *mm.AddressSpace

	PgfaultUpcall uintptr
	hasUpcall     bool

	// IPC rendezvous state. IPCRecving true implies NOT_RUNNABLE.
	IPCRecving bool
	IPCFrom    abi.EnvID
	IPCValue   uint32
	IPCPerm    uint32
	IPCDstva   uintptr

	Program Program

	slot int
	gen  uint32

	resumeCh chan struct{}
	pauseCh  chan struct{}
	killCh   chan struct{}
	started  bool
	exited   bool
}

// SetPgfaultUpcall records addr as the environment's page-fault entry
// point.
func (e *Env) SetPgfaultUpcall(addr uintptr) {
	e.PgfaultUpcall = addr
	e.hasUpcall = true
}

// HasPgfaultUpcall reports whether env_set_pgfault_upcall has ever
// been called for this environment.
func (e *Env) HasPgfaultUpcall() bool { return e.hasUpcall }

// Slot returns the table index this environment occupies. Equivalent
// to e.ID.Slot() but valid even for the zero EnvID used transiently
// during allocation.
func (e *Env) Slot() int { return e.slot }

// Table is the fixed-size environment pool.
type Table struct {
	mu   sync.Mutex
	envs []*Env

	// generation is the next generation counter to assign to a slot
	// on allocation; bumped monotonically per slot so an id is never
	// reissued with an unchanged generation.
	generation []uint32

	alloc mm.PageAllocator
	ncpu  int
}

// NewTable creates a table of nenv slots, all FREE, plus one IDLE
// environment per CPU occupying slots [0, ncpu) — the scheduler's
// per-CPU idle fallback lives at slot == cpu id.
func NewTable(nenv, ncpu int, alloc mm.PageAllocator) (*Table, error) {
	if ncpu > nenv {
		return nil, kerrors.New(kerrors.ErrInval, "new_table", "ncpu exceeds nenv")
	}
	t := &Table{
		envs:       make([]*Env, nenv),
		generation: make([]uint32, nenv),
		alloc:      alloc,
		ncpu:       ncpu,
	}
	for i := range t.envs {
		t.envs[i] = &Env{slot: i, Status: abi.StatusFree}
	}
	for cpu := 0; cpu < ncpu; cpu++ {
		idle, err := t.allocLocked(0, abi.Trapframe{}, abi.EnvIdle, cpu)
		if err != nil {
			return nil, err
		}
		// The idle environment must always be dispatchable: the
		// scheduler panics if its CPU's idle slot is neither RUNNABLE
		// nor RUNNING when everything else is blocked.
		idle.Status = abi.StatusRunnable
		idle.Program = func(k Kernel, self *Env) {
			for {
				k.Syscall(self, abi.SysYield, 0, 0, 0, 0, 0)
			}
		}
	}
	return t, nil
}

// Lock/Unlock expose the big kernel lock to callers — syscall.Kernel.Syscall
// and the scheduler's dispatch step — that must hold it across
// several Table method calls making up one kernel entry.
func (t *Table) Lock()   { t.mu.Lock() }
func (t *Table) Unlock() { t.mu.Unlock() }

// NCPU returns the configured CPU count.
func (t *Table) NCPU() int { return t.ncpu }

// Len returns the table's fixed capacity.
func (t *Table) Len() int { return len(t.envs) }

// EnvAt returns the slot's current occupant assuming the caller holds
// the lock. Used by the scheduler to walk the table by index.
func (t *Table) EnvAt(slot int) *Env { return t.envs[slot] }

// Snapshot returns a copy of the environment table's current state,
// for listing (cmd's "envs" command) and as the read-only view of the
// table user programs are allowed. It locks internally since
// it is a standalone read, never part of a larger kernel entry.
func (t *Table) Snapshot() []Env {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Env, len(t.envs))
	for i, e := range t.envs {
		out[i] = *e
	}
	return out
}

// Alloc backs sys_exofork: allocates a free slot, transitions
// FREE -> NOT_RUNNABLE, mints a fresh id, clones the parent's full
// trapframe with the return-value register forced to zero (the child
// resumes exactly where the parent trapped, just returning 0), and
// installs a new empty address space. Assumes the lock held.
func (t *Table) Alloc(parent *Env) (*Env, error) {
	var parentID abi.EnvID
	var tf abi.Trapframe
	if parent != nil {
		parentID = parent.ID
		tf = parent.Trapframe.Clone()
		tf.Regs.EAX = 0
	}
	return t.allocLocked(parentID, tf, abi.EnvUser, -1)
}

// allocLocked performs the allocation under t.mu already held. cpu is
// only meaningful for EnvIdle (it pins the idle environment to slot
// == cpu); pass -1 for ordinary users.
func (t *Table) allocLocked(parentID abi.EnvID, tf abi.Trapframe, typ abi.EnvType, cpu int) (*Env, error) {
	slot := -1
	if typ == abi.EnvIdle {
		slot = cpu
		if t.envs[slot].Status.Kind != abi.Free {
			return nil, kerrors.New(kerrors.ErrInternal, "alloc", "idle slot already occupied")
		}
	} else {
		for i := t.ncpu; i < len(t.envs); i++ {
			if t.envs[i].Status.Kind == abi.Free {
				slot = i
				break
			}
		}
		if slot == -1 {
			return nil, kerrors.ErrTableFull
		}
	}

	id := abi.MakeEnvID(slot, t.generation[slot])
	e := &Env{
		ID:        id,
		ParentID:  parentID,
		Status:    abi.StatusNotRunnable,
		Type:      typ,
		CPU:       -1,
		Trapframe: tf,
		AS:        mm.NewAddressSpace(),
		slot:      slot,
		gen:       t.generation[slot],
		resumeCh:  make(chan struct{}, 1),
		pauseCh:   make(chan struct{}, 1),
		killCh:    make(chan struct{}),
	}
	t.envs[slot] = e
	return e, nil
}

// Destroy implements env_destroy: transitions the target to DYING,
// reclaims its address space, then frees the slot and bumps its
// generation so the id can never be reissued unchanged. A target
// blocked in ipc_recv has IPCRecving cleared first; any pending
// sender's subsequent Resolve of the old id fails (the slot is FREE,
// or after reuse its generation no longer matches) and observes
// E_BAD_ENV. Assumes the lock held;
// the address space teardown it
// performs only touches AS's own mutex, never Table.mu, so holding the
// big lock across it is safe.
func (t *Table) Destroy(e *Env) error {
	e.Status = abi.StatusDying
	e.IPCRecving = false

	if e.AS != nil {
		if err := e.AS.Destroy(t.alloc); err != nil {
			return kerrors.Wrap(err, kerrors.ErrInternal, "env_destroy")
		}
	}

	started := e.started
	killCh := e.killCh

	t.generation[e.slot]++
	t.envs[e.slot] = &Env{slot: e.slot, Status: abi.StatusFree}

	if started {
		close(killCh)
	}
	return nil
}

// Allocator returns the table's page allocator, for VM syscall
// handlers in the syscall package.
func (t *Table) Allocator() mm.PageAllocator { return t.alloc }
