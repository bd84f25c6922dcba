package errors

// Predefined sentinel errors for the core's common failure cases:
// pre-built *SyscallError values usable directly with errors.Is.

// Environment resolution errors.
var (
	// ErrSlotFree indicates the referenced table slot holds no
	// environment.
	ErrSlotFree = &SyscallError{Kind: ErrBadEnv, Op: "resolve", Detail: "slot is free"}

	// ErrGenerationMismatch indicates the id's generation counter
	// does not match the slot's current occupant.
	ErrGenerationMismatch = &SyscallError{Kind: ErrBadEnv, Op: "resolve", Detail: "generation mismatch"}

	// ErrNotSelfOrChild indicates the caller lacks authority over the
	// target (it is neither itself nor a direct child).
	ErrNotSelfOrChild = &SyscallError{Kind: ErrBadEnv, Op: "resolve", Detail: "caller is not self or parent of target"}

	// ErrSlotOutOfRange indicates an id's slot bits exceed the table.
	ErrSlotOutOfRange = &SyscallError{Kind: ErrBadEnv, Op: "resolve", Detail: "slot out of range"}
)

// Table exhaustion.
var (
	// ErrTableFull indicates every slot in the environment table is
	// occupied.
	ErrTableFull = &SyscallError{Kind: ErrNoFreeEnv, Op: "alloc", Detail: "no free environment slots"}
)

// IPC errors.
var (
	// ErrNotRecipient indicates the target of ipc_try_send is not
	// currently blocked in ipc_recv.
	ErrNotRecipient = &SyscallError{Kind: ErrIPCNotRecv, Op: "ipc_try_send", Detail: "target is not receiving"}
)

// Syscall argument validation errors.
var (
	// ErrBadStatus indicates env_set_status was given a value other
	// than RUNNABLE or NOT_RUNNABLE.
	ErrBadStatus = &SyscallError{Kind: ErrInval, Op: "env_set_status", Detail: "status must be RUNNABLE or NOT_RUNNABLE"}

	// ErrUnalignedVA indicates a user virtual address was not
	// page-aligned where alignment is required.
	ErrUnalignedVA = &SyscallError{Kind: ErrInval, Detail: "virtual address is not page-aligned"}

	// ErrAboveUTOP indicates a user virtual address was at or above
	// the kernel/user boundary.
	ErrAboveUTOP = &SyscallError{Kind: ErrInval, Detail: "virtual address is at or above UTOP"}

	// ErrBadPerm indicates a permission word had bits outside
	// PTE_SYSCALL set, or lacked PTE_U.
	ErrBadPerm = &SyscallError{Kind: ErrInval, Detail: "permission bits outside PTE_SYSCALL, or missing PTE_U"}

	// ErrSourceNotWritable indicates page_map/ipc requested PTE_W on
	// a mapping that is not itself writable in the source.
	ErrSourceNotWritable = &SyscallError{Kind: ErrInval, Detail: "source mapping is not writable"}

	// ErrNoMapping indicates the source address has no mapping to
	// share (page_map, ipc_try_send with a page).
	ErrNoMapping = &SyscallError{Kind: ErrInval, Detail: "no mapping at source address"}

	// ErrUnknownSyscall indicates an unrecognized syscall number.
	ErrUnknownSyscall = &SyscallError{Kind: ErrInval, Op: "dispatch", Detail: "unknown syscall number"}
)

// Scheduler errors (panic conditions, not syscall returns).
var (
	// ErrNoIdleEnv indicates a CPU's idle environment is neither
	// RUNNABLE nor RUNNING — a setup bug, not a recoverable failure.
	ErrNoIdleEnv = &SyscallError{Kind: ErrInternal, Op: "sched_yield", Detail: "no idle environment for this cpu"}
)
