package syscall

import (
	"zjos-go/abi"
	"zjos-go/env"
	kerrors "zjos-go/errors"
	"zjos-go/mm"
)

// checkRange validates the precondition every VM syscall applies to
// a user virtual address: it must be below UTOP and page-aligned.
func checkRange(va uintptr) error {
	if va >= abi.UTOP {
		return kerrors.ErrAboveUTOP
	}
	if !abi.PageAligned(va) {
		return kerrors.ErrUnalignedVA
	}
	return nil
}

// sysPageAlloc allocates a zeroed physical page and maps it at va in
// target. If the insert fails after the allocation succeeds, the
// frame is freed before returning.
func (k *Kernel) sysPageAlloc(caller *env.Env, envid abi.EnvID, va uintptr, perm uint32) error {
	target, err := k.Table.Resolve(caller, envid, true)
	if err != nil {
		return err
	}
	if err := checkRange(va); err != nil {
		return err
	}
	if err := mm.ValidatePerm(perm); err != nil {
		return err
	}

	frame, err := k.Alloc.PageAlloc()
	if err != nil {
		return err
	}
	if err := k.Alloc.PageInsert(target.AS, va, frame, perm); err != nil {
		_ = k.Alloc.PageFree(frame)
		return kerrors.Wrap(err, kerrors.ErrNoMem, "page_alloc")
	}
	return nil
}

// sysPageMap shares the physical page mapped at srcva in the source
// env into the destination at dstva with permission perm. Write
// permission cannot be granted on a page the source itself maps
// read-only.
func (k *Kernel) sysPageMap(caller *env.Env, srcenvid abi.EnvID, srcva uintptr, dstenvid abi.EnvID, dstva uintptr, perm uint32) error {
	src, err := k.Table.Resolve(caller, srcenvid, true)
	if err != nil {
		return err
	}
	dst, err := k.Table.Resolve(caller, dstenvid, true)
	if err != nil {
		return err
	}
	if err := checkRange(srcva); err != nil {
		return err
	}
	if err := checkRange(dstva); err != nil {
		return err
	}
	if err := mm.ValidatePerm(perm); err != nil {
		return err
	}

	frame, srcPerm, ok := k.Alloc.PageLookup(src.AS, srcva)
	if !ok {
		return kerrors.ErrNoMapping
	}
	if perm&abi.PteW != 0 && srcPerm&abi.PteW == 0 {
		return kerrors.ErrSourceNotWritable
	}
	if err := k.Alloc.PageInsert(dst.AS, dstva, frame, perm); err != nil {
		return kerrors.Wrap(err, kerrors.ErrNoMem, "page_map")
	}
	return nil
}

// sysPageUnmap is idempotent: absence of a mapping silently succeeds
// (mm.Arena.PageRemove already treats a missing va as a no-op).
func (k *Kernel) sysPageUnmap(caller *env.Env, envid abi.EnvID, va uintptr) error {
	target, err := k.Table.Resolve(caller, envid, true)
	if err != nil {
		return err
	}
	if err := checkRange(va); err != nil {
		return err
	}
	return k.Alloc.PageRemove(target.AS, va)
}
