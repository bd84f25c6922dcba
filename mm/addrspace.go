package mm

import (
	"sort"
	"sync"

	"zjos-go/abi"
	kerrors "zjos-go/errors"
)

func sortUintptrs(s []uintptr) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

// mapping is one page-table entry: a shared frame plus the permission
// bits this address space currently grants on it.
type mapping struct {
	frame *Frame
	perm  uint32
}

// AddressSpace is the per-environment page directory analogue: a map
// from page-aligned virtual address to a refcounted frame, guarded by
// its own lock so COW fault handling in one environment never blocks
// a syscall against another. Apart from MappedPages (fork's page walk)
// and Destroy (env_destroy's reclaim step), the rest of the core talks
// to it only through the PageAllocator interface below.
type AddressSpace struct {
	mu   sync.Mutex
	pages map[uintptr]*mapping
}

// NewAddressSpace returns an empty address space, the user half of a
// freshly allocated environment.
func NewAddressSpace() *AddressSpace {
	return &AddressSpace{pages: make(map[uintptr]*mapping)}
}

// PageAllocator is the physical-memory interface the core consumes:
// page_alloc, page_free, page_insert, page_lookup, page_remove. VM
// syscall handlers in the syscall package depend only on this
// interface, never on *AddressSpace directly, so a different backing
// allocator can be substituted without touching the core.
type PageAllocator interface {
	// PageAlloc allocates and zeroes a fresh physical frame.
	PageAlloc() (*Frame, error)
	// PageFree drops a reference previously held via PageAlloc but
	// never inserted anywhere (the page_alloc syscall's rollback path).
	PageFree(f *Frame) error
	// PageInsert maps frame at va in as with the given permission,
	// replacing and releasing any existing mapping at va.
	PageInsert(as *AddressSpace, va uintptr, f *Frame, perm uint32) error
	// PageLookup returns the frame mapped at va in as, and the
	// permission it is currently mapped with.
	PageLookup(as *AddressSpace, va uintptr) (f *Frame, perm uint32, ok bool)
	// PageRemove unmaps va in as. Absence of a mapping is not an
	// error; sys_page_unmap is idempotent.
	PageRemove(as *AddressSpace, va uintptr) error
}

// Arena is the reference PageAllocator: every frame it hands out is a
// real anonymous mmap'd page (see frame.go), so "physical memory" in
// this module is not a polite fiction.
type Arena struct{}

// NewArena returns the reference page allocator.
func NewArena() *Arena { return &Arena{} }

func (a *Arena) PageAlloc() (*Frame, error) {
	f, err := newFrame()
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrNoMem, "page_alloc")
	}
	return f, nil
}

func (a *Arena) PageFree(f *Frame) error {
	if f == nil {
		return nil
	}
	return f.free()
}

func (a *Arena) PageInsert(as *AddressSpace, va uintptr, f *Frame, perm uint32) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	// Increment before decrementing the replaced mapping's reference:
	// remapping the same frame at the same address (duppage's own
	// self-remap after a fork) must never observe a transient refcount
	// of zero and unmap the page still in use.
	f.incRef()
	if existing, ok := as.pages[va]; ok {
		existing.frame.decRef()
	}
	as.pages[va] = &mapping{frame: f, perm: perm}
	return nil
}

func (a *Arena) PageLookup(as *AddressSpace, va uintptr) (*Frame, uint32, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	m, ok := as.pages[va]
	if !ok {
		return nil, 0, false
	}
	return m.frame, m.perm, true
}

func (a *Arena) PageRemove(as *AddressSpace, va uintptr) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	m, ok := as.pages[va]
	if !ok {
		return nil
	}
	delete(as.pages, va)
	return m.frame.decRef()
}

// MappedPages returns the page-aligned virtual addresses currently
// mapped in as that lie below top, in ascending order. User-space
// fork uses this to walk every present page below the user-stack
// top; it stands in for a page-table self-mapping walk, which this
// model has no page-table encoding for.
func (as *AddressSpace) MappedPages(top uintptr) []uintptr {
	as.mu.Lock()
	defer as.mu.Unlock()
	out := make([]uintptr, 0, len(as.pages))
	for va := range as.pages {
		if va < top {
			out = append(out, va)
		}
	}
	sortUintptrs(out)
	return out
}

// Destroy releases every frame this address space still references,
// the reclaim step env_destroy performs before freeing the slot.
func (as *AddressSpace) Destroy(alloc PageAllocator) error {
	as.mu.Lock()
	vas := make([]uintptr, 0, len(as.pages))
	for va := range as.pages {
		vas = append(vas, va)
	}
	as.mu.Unlock()
	for _, va := range vas {
		if err := alloc.PageRemove(as, va); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePerm enforces the permission-mask closure every VM and IPC
// syscall applies: no bit outside PTE_SYSCALL, and PTE_U must be set.
func ValidatePerm(perm uint32) error {
	if perm&abi.PteU == 0 {
		return kerrors.ErrBadPerm
	}
	if perm&^abi.PteSyscall != 0 {
		return kerrors.ErrBadPerm
	}
	return nil
}
