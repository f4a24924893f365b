package vm

import (
	"github.com/sirupsen/logrus"

	"github.com/hayleygayfer/dumbvm/defs"
	"github.com/hayleygayfer/dumbvm/mem"
)

// Fault is the trap entry point (spec §4.5, exposed to the host kernel
// as vm_fault). It classifies the fault, resolves it against the
// current address space's translation map and region list, allocates
// and zero-fills a frame on first touch, installs a translation, and
// refills the TLB.
//
// Grounded on original_source/kern/vm/vm.c's vm_fault signature and
// original_source/kern/vm/addrspace.c's lookup_region/lookupPTE helpers,
// restructured per the teacher's Sys_pgfault/Pgfault split (map lookup,
// then region lookup, then install) but without the teacher's COW/shared
// file-mapping branches, which spec.md's Non-goals exclude.
func Fault(faultType defs.FaultType, faultAddr uint32, tlb TLB, alloc mem.FrameAllocator) *defs.Error {
	if currentAddressSpace == nil {
		return defs.ErrFault
	}
	as := currentAddressSpace()
	if as == nil {
		return defs.ErrFault
	}

	// No copy-on-write is supported (spec Non-goals): a hardware-flagged
	// write to a read-only TLB entry is always a bad access.
	if faultType == defs.FaultReadonlyWrite {
		return defs.ErrFault
	}

	as.LockPmap()
	defer as.UnlockPmap()

	if desc := as.Map.Lookup(faultAddr); desc.Present() {
		// The stored Dirty bit may date from the load window; the region's
		// current flags decide whether the page is writable now.
		if region := as.Regions.Find(faultAddr); region == nil || region.Perms&PermWrite == 0 {
			if faultType == defs.FaultWrite {
				return defs.ErrFault
			}
			desc &^= mem.Dirty
		}
		loadTLB(tlb, faultAddr, desc)
		return nil
	}

	region := as.Regions.Find(faultAddr)
	if region == nil {
		logrus.WithField("vaddr", faultAddr).Debug("vm: fault outside every region")
		return defs.ErrFault
	}

	if faultType == defs.FaultWrite && region.Perms&PermWrite == 0 {
		logrus.WithField("vaddr", faultAddr).Debug("vm: write fault against a read-only region")
		return defs.ErrFault
	}

	desc, err := as.Map.Install(faultAddr, region.Perms&PermWrite != 0, alloc)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"vaddr": faultAddr,
		"frame": desc.Frame(),
	}).Debug("vm: first-touch install")

	loadTLB(tlb, faultAddr, desc)
	return nil
}

// loadTLB writes a translation for faultAddr's page into a
// hardware-chosen TLB entry (spec §4.5 steps 4 and 8). The entry-lo
// value is the descriptor it is given (Fault clears Dirty on a mapped
// page whose region is no longer writable) — in particular it does not
// force the Dirty bit on, unlike
// original_source/kern/vm/vm.c's literal `| TLBLO_DIRTY`. This is the
// Open Question resolution recorded in DESIGN.md: DIRTY reflects region
// writability consistently at both install time and TLB-refill time, so
// a hardware READONLY_WRITE trap on an R/X region stays observable
// instead of being masked by an unconditionally-dirty TLB entry.
func loadTLB(tlb TLB, faultAddr uint32, desc mem.Descriptor) {
	entryHi := faultAddr & entryHiVPageMask
	tlbWriteRandom(tlb, entryHi, uint32(desc))
}
