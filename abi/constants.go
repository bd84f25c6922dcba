// Package abi defines the syscall ABI, permission bits, address-space
// layout constants, the tagged environment-status type, and the JSON
// kernel config shared by every other package in this module. Apart
// from config loading and validation, nothing in here has behavior;
// it is the vocabulary the rest of the kernel core is written in.
package abi

// PageSize is the size of a virtual/physical page. The core never
// depends on the real x86 value beyond using it as the alignment unit.
const PageSize = 4096

// Address-space layout. UTOP is the supremum of user-addressable
// virtual memory; everything at or above it belongs to the kernel
// half of the address space and is off-limits to user syscall
// arguments.
const (
	UTOP       = 0xEEC00000
	UXSTACKTOP = UTOP
	USTACKTOP  = UTOP - 2*PageSize
	PFTEMP     = UTOP - 2*PageSize
)

// Permission bits, matching the x86 PTE layout this module mimics.
const (
	PteP     uint32 = 0x001 // present (informational only — validators don't require it)
	PteW     uint32 = 0x002 // writable
	PteU     uint32 = 0x004 // user-accessible
	PteCOW   uint32 = 0x800 // software-available bit reserved for the COW fork convention
	PteAvail uint32 = 0xE00 // the three software-available bits (0x200, 0x400, 0x800)
)

// PteSyscall is the set of bits a user process is allowed to set
// through page_alloc/page_map: present, user, writable, and the
// available bits. Any bit outside this mask makes perm invalid.
const PteSyscall = PteP | PteU | PteW | PteAvail

// Default pool sizes, overridable via Config.
const (
	DefaultNENV = 1024
	DefaultNCPU = 4
)

// PageAligned reports whether an address is a multiple of PageSize.
func PageAligned(va uintptr) bool {
	return va%PageSize == 0
}
