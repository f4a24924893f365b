package vm

import (
	"github.com/hayleygayfer/dumbvm/bitfield"
	"github.com/hayleygayfer/dumbvm/defs"
)

// Perm is a permission bitmask for a region (spec §3).
type Perm uint8

const (
	// PermRead grants read access.
	PermRead Perm = 1 << 0
	// PermWrite grants write access.
	PermWrite Perm = 1 << 1
	// PermExec grants execute access.
	PermExec Perm = 1 << 2
)

// Region describes a contiguous virtual range in one address space with
// uniform permission flags, plus the original flags saved for the
// load-window protocol (spec §3, §4.3).
//
// Grounded on original_source/kern/vm/addrspace.c's `region` struct
// (as_vaddr/size/flags/o_flags) and the teacher's habit of keeping a
// small value-typed record per list entry (vm.Vminfo_t).
type Region struct {
	Base     uint32
	Size     uint32
	Perms    Perm
	original Perm
}

// End returns the address one past the region's last byte.
func (r Region) End() uint32 {
	return r.Base + r.Size
}

// Contains reports whether vaddr falls within [Base, Base+Size).
func (r Region) Contains(vaddr uint32) bool {
	return vaddr >= r.Base && vaddr-r.Base < r.Size
}

func (r Region) overlaps(other Region) bool {
	return r.Base < other.End() && other.Base < r.End()
}

// Regions is the ordered, per-address-space sequence of regions (spec
// §3, §4.3). Lookup is linear by design (spec §9); the zero value is an
// empty sequence.
type Regions struct {
	list  []*Region
	stack *Region
}

// Define page-aligns vaddr down and memsize up (growing memsize to
// absorb the alignment slack on the base, as the original does), builds
// a region with the given permissions, and appends it at the tail of the
// sequence. The original-flags field starts equal to the current flags.
//
// REDESIGN FLAG (spec §9 option a, see SPEC_FULL.md §6.2): overlap with
// an existing region or with the stack region is rejected with EFAULT,
// unlike original_source/kern/vm/addrspace.c's as_define_region, which
// performs no overlap check at all.
func (rs *Regions) Define(vaddr, memsize uint32, r, w, x bool) (*Region, *defs.Error) {
	memsize += bitfield.PageOffset(vaddr)
	base := bitfield.PageBase(vaddr)
	size := roundUp(memsize, bitfield.PageSize)

	region := &Region{Base: base, Size: size}
	if r {
		region.Perms |= PermRead
	}
	if w {
		region.Perms |= PermWrite
	}
	if x {
		region.Perms |= PermExec
	}
	region.original = region.Perms

	for _, existing := range rs.list {
		if region.overlaps(*existing) {
			return nil, defs.ErrFault
		}
	}
	if rs.stack != nil && region.overlaps(*rs.stack) {
		return nil, defs.ErrFault
	}

	rs.list = append(rs.list, region)
	return region, nil
}

// Find performs a linear scan and returns the first region (in
// insertion order, with the stack region checked after all others) whose
// range contains vaddr, or nil if none does. Insertion order decides ties if overlap exists; since
// Define now forbids overlap, ties cannot occur for any set of regions
// built exclusively through Define/DefineStack.
func (rs *Regions) Find(vaddr uint32) *Region {
	for _, r := range rs.list {
		if r.Contains(vaddr) {
			return r
		}
	}
	if rs.stack != nil && rs.stack.Contains(vaddr) {
		return rs.stack
	}
	return nil
}

// PrepareLoad sets the W flag on every region that doesn't already have
// it, so the loader can populate code/rodata regions. The original-flags
// field is left untouched so CompleteLoad can restore it.
func (rs *Regions) PrepareLoad() {
	for _, r := range rs.list {
		r.Perms |= PermWrite
	}
}

// CompleteLoad restores every region's flags from its original flags,
// closing the window in which read-only regions were temporarily
// writable. Callers are responsible for invalidating the TLB afterward
// (see TLB coherence in tlb.go); AddressSpace.CompleteLoad does both.
func (rs *Regions) CompleteLoad() {
	for _, r := range rs.list {
		r.Perms = r.original
	}
}

// DefineStack defines the stack region spanning [userStack-stackSize,
// userStack) with R/W permissions, matching
// original_source/kern/vm/addrspace.c's as_define_stack, and returns the
// initial stack pointer (userStack).
func (rs *Regions) DefineStack(userStack, stackSize uint32) (uint32, *defs.Error) {
	region := &Region{
		Base:  userStack - stackSize,
		Size:  stackSize,
		Perms: PermRead | PermWrite,
	}
	region.original = region.Perms

	for _, existing := range rs.list {
		if region.overlaps(*existing) {
			return 0, defs.ErrFault
		}
	}

	rs.stack = region
	return userStack, nil
}

// clone deep-copies the region sequence, preserving order, flags, and
// the stack region, for AddressSpace.Copy.
func (rs *Regions) clone() *Regions {
	out := &Regions{}
	for _, r := range rs.list {
		copyR := *r
		out.list = append(out.list, &copyR)
	}
	if rs.stack != nil {
		copyStack := *rs.stack
		out.stack = &copyStack
	}
	return out
}

func roundUp(v, n uint32) uint32 {
	return (v + n - 1) &^ (n - 1)
}
