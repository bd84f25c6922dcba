// Package mm models the physical memory allocator and per-environment
// address space the kernel core consumes through the PageAllocator
// interface (page_alloc/page_free/page_insert/page_lookup/
// page_remove): refcounted page frames so the same physical page can
// be shared across address spaces, which is what IPC page transfer
// and copy-on-write fork are built on.
package mm

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"zjos-go/abi"
)

// Frame is one physical page: a real anonymous mmap'd region backing
// Bytes(), plus a reference count so the same frame can be shared
// across address spaces (IPC page transfer, COW fork).
type Frame struct {
	mu   sync.Mutex
	refs int
	data []byte
}

// Bytes returns the frame's backing storage. Callers must not retain
// it past a Free that drops the refcount to zero.
func (f *Frame) Bytes() []byte {
	return f.data
}

func (f *Frame) incRef() {
	f.mu.Lock()
	f.refs++
	f.mu.Unlock()
}

// decRef drops the reference count and unmaps the backing page once
// no address space references it any longer.
func (f *Frame) decRef() error {
	f.mu.Lock()
	f.refs--
	refs := f.refs
	f.mu.Unlock()
	if refs <= 0 {
		return unix.Munmap(f.data)
	}
	return nil
}

// RefCount reports the current reference count, for tests and
// diagnostics only.
func (f *Frame) RefCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs
}

// newFrame allocates and zeroes one physical page via an anonymous
// mmap, the one place this module touches real memory rather than a
// plain Go slice standing in for it. It starts with refs = 0: the
// frame is not referenced by any mapping until PageInsert makes it
// one.
func newFrame() (*Frame, error) {
	data, err := unix.Mmap(-1, 0, abi.PageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap page: %w", err)
	}
	return &Frame{data: data, refs: 0}, nil
}

// free unconditionally releases the frame's backing mmap, regardless
// of its reference count. Used only for a page_alloc syscall's
// rollback path, where the frame by construction was never inserted
// into any address space.
func (f *Frame) free() error {
	f.mu.Lock()
	data := f.data
	f.mu.Unlock()
	return unix.Munmap(data)
}
