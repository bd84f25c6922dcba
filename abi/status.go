package abi

import "fmt"

// envIDSlotBits is the number of low bits of an EnvID that encode the
// table slot; the remaining high bits encode the generation counter.
// It bounds the largest NENV a Config may request (see Config.Validate).
const envIDSlotBits = 12

// MaxSlots is the largest table size an EnvID can address.
const MaxSlots = 1 << envIDSlotBits

// EnvID is an opaque (slot, generation) handle: two environments that
// reuse the same slot at different times always have distinct ids,
// because the generation half is bumped every time a slot is freed.
// Callers only ever pass whole ids around; Slot/Generation exist for
// the table's own bookkeeping.
type EnvID uint32

// MakeEnvID packs a slot index and a generation counter into an id.
// generation is truncated to fit above the slot bits; the table is
// responsible for keeping it monotonic per slot.
func MakeEnvID(slot int, generation uint32) EnvID {
	return EnvID(uint32(slot&(MaxSlots-1)) | (generation << envIDSlotBits))
}

// Slot returns the table index this id refers to.
func (id EnvID) Slot() int {
	return int(uint32(id) & (MaxSlots - 1))
}

// Generation returns the generation counter this id was minted with.
func (id EnvID) Generation() uint32 {
	return uint32(id) >> envIDSlotBits
}

func (id EnvID) String() string {
	return fmt.Sprintf("env[%d:%d]", id.Slot(), id.Generation())
}

// EnvType distinguishes ordinary user environments from the one
// per-CPU idle environment the scheduler falls back to.
type EnvType int

const (
	EnvUser EnvType = iota
	EnvIdle
)

func (t EnvType) String() string {
	if t == EnvIdle {
		return "idle"
	}
	return "user"
}

// StatusKind is the tag of the EnvStatus sum type. Status is a
// tagged variant rather than a bare integer with convention; EnvStatus
// below is that variant.
type StatusKind int

const (
	Free StatusKind = iota
	Dying
	Runnable
	Running
	NotRunnable
)

func (k StatusKind) String() string {
	switch k {
	case Free:
		return "FREE"
	case Dying:
		return "DYING"
	case Runnable:
		return "RUNNABLE"
	case Running:
		return "RUNNING"
	case NotRunnable:
		return "NOT_RUNNABLE"
	default:
		return "UNKNOWN"
	}
}

// EnvStatus is the tagged status variant: Kind selects which case is
// active, and CPU is only meaningful (and only ever read) when
// Kind == Running.
type EnvStatus struct {
	Kind StatusKind
	CPU  int
}

// StatusFree, StatusDying, StatusRunnable and StatusNotRunnable are the
// status values with no associated data.
var (
	StatusFree        = EnvStatus{Kind: Free}
	StatusDying       = EnvStatus{Kind: Dying}
	StatusRunnable    = EnvStatus{Kind: Runnable}
	StatusNotRunnable = EnvStatus{Kind: NotRunnable}
)

// StatusRunning builds the Running{cpu} case.
func StatusRunning(cpu int) EnvStatus {
	return EnvStatus{Kind: Running, CPU: cpu}
}

func (s EnvStatus) String() string {
	if s.Kind == Running {
		return fmt.Sprintf("RUNNING(cpu=%d)", s.CPU)
	}
	return s.Kind.String()
}

// Is reports whether s has the given kind, ignoring any CPU payload.
func (s EnvStatus) Is(kind StatusKind) bool {
	return s.Kind == kind
}
