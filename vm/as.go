package vm

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hayleygayfer/dumbvm/defs"
	"github.com/hayleygayfer/dumbvm/mem"
)

// AddressSpace owns exactly one translation map and one region
// sequence (spec §3, §4.4). The embedded mutex plays the role of the
// teacher's Vm_t.Lock_pmap/Unlock_pmap: Fault and Copy hold it across the
// one point where the core can block — the frame allocator call inside
// Map.Install/Map.Duplicate — so two faults, or a fault and a Copy, on the
// same address space never interleave. DefineRegion, PrepareLoad,
// CompleteLoad, DefineStack and Destroy do not take it.
type AddressSpace struct {
	mu      sync.Mutex
	faulted bool

	Map     *Map
	Regions Regions
}

// LockPmap acquires the address-space lock and marks that a page fault
// or other map mutation is in progress, mirroring Vm_t.Lock_pmap.
func (as *AddressSpace) LockPmap() {
	as.mu.Lock()
	as.faulted = true
}

// UnlockPmap releases the address-space lock, mirroring Vm_t.Unlock_pmap.
func (as *AddressSpace) UnlockPmap() {
	as.faulted = false
	as.mu.Unlock()
}

// LockassertPmap panics if the address-space lock is not held, mirroring
// Vm_t.Lockassert_pmap.
func (as *AddressSpace) LockassertPmap() {
	if !as.faulted {
		panic("vm: pmap lock must be held")
	}
}

// Create allocates an address space with an empty region sequence and an
// empty translation map.
func Create() (*AddressSpace, *defs.Error) {
	return &AddressSpace{Map: NewMap()}, nil
}

// Copy creates a new address space, deep-copies the region sequence
// preserving order and flags, and duplicates old's translation map so
// every installed frame is copied into a fresh, independently owned
// frame (spec §4.4, §8 scenario 5 — fork). On any failure it destroys
// whatever was built and returns the error, never leaking partial state.
func Copy(old *AddressSpace, alloc mem.FrameAllocator) (*AddressSpace, *defs.Error) {
	if old == nil {
		panic("vm: Copy of nil address space")
	}

	old.LockPmap()
	defer old.UnlockPmap()

	newAS := &AddressSpace{
		Regions: *old.Regions.clone(),
	}

	dstMap, err := old.Map.Duplicate(alloc)
	if err != nil {
		return nil, err
	}
	newAS.Map = dstMap

	logrus.WithFields(logrus.Fields{
		"regions": len(newAS.Regions.list),
	}).Debug("vm: address space forked")

	return newAS, nil
}

// Destroy frees the map (which frees all backing frames), then every
// region record, then the address space itself. Safe to call on nil.
func Destroy(as *AddressSpace, alloc mem.FrameAllocator) {
	if as == nil {
		return
	}
	as.Map.Destroy(alloc)
	as.Regions.list = nil
	as.Regions.stack = nil
}

// CurrentAddressSpaceFn fetches the calling thread's current address
// space, or nil if the current thread has none (spec §6: "current
// process() -> process* with process.address_space accessor"). Process
// and thread structures are out of scope (spec §1); the core consults
// only this accessor.
type CurrentAddressSpaceFn func() *AddressSpace

var currentAddressSpace CurrentAddressSpaceFn

// SetCurrentAddressSpace registers the accessor used by Activate,
// Deactivate, and Fault to find "the current address space", mirroring
// the injectable-collaborator pattern the teacher uses for
// platform/runtime hooks (vm.Cpumap) and gopheros uses for its frame
// allocator (vmm.SetFrameAllocator).
func SetCurrentAddressSpace(fn CurrentAddressSpaceFn) {
	currentAddressSpace = fn
}

// Activate invalidates the TLB for the current address space, under
// raised interrupt priority, matching
// original_source/kern/vm/addrspace.c's as_activate. If there is no
// current address space (a kernel thread), it does nothing, leaving
// whatever was loaded in place.
func Activate(tlb TLB) {
	if currentAddressSpace == nil {
		return
	}
	as := currentAddressSpace()
	if as == nil {
		return
	}
	InvalidateAll(tlb)
}

// Deactivate is semantically identical to Activate, retained for
// symmetry with the host kernel's process-switch contract (spec §4.4),
// matching original_source's as_deactivate, which simply calls
// as_activate.
func Deactivate(tlb TLB) {
	Activate(tlb)
}

// DefineRegion defines a region in as (spec §4.3's define()).
func (as *AddressSpace) DefineRegion(vaddr, memsize uint32, r, w, x bool) (*Region, *defs.Error) {
	return as.Regions.Define(vaddr, memsize, r, w, x)
}

// PrepareLoad makes every region writable for the duration of the load
// window (spec §4.3's prepare_load()).
func (as *AddressSpace) PrepareLoad() {
	as.Regions.PrepareLoad()
}

// CompleteLoad restores every region's original flags and invalidates
// the TLB, closing the load window (spec §4.3's complete_load(), and
// spec §4.6's third TLB-invalidation trigger).
func (as *AddressSpace) CompleteLoad(tlb TLB) {
	as.Regions.CompleteLoad()
	InvalidateAll(tlb)
}

// DefineStack defines the stack region and returns the initial stack
// pointer (spec §4.3's define_stack()).
func (as *AddressSpace) DefineStack() (uint32, *defs.Error) {
	return as.Regions.DefineStack(UserStack, StackSize)
}
