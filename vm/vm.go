// Package vm implements the per-address-space translation map, the
// region list, the address-space lifecycle operations, the fault-driven
// page-mapping protocol, and TLB coherence for a teaching-OS
// virtual-memory subsystem on a MIPS-like, software-TLB-refill
// processor (spec.md / SPEC_FULL.md).
//
// Grounded throughout on Oichkatzelesfrettschen-biscuit's vm package
// (Vm_t, Sys_pgfault, Page_insert, Tlbshoot, Lock_pmap/Unlock_pmap) and
// cross-checked against original_source/kern/vm/{vm.c,addrspace.c} for
// exact field and control-flow semantics, simplified throughout to the
// spec's non-COW, non-shared, uniprocessor model.
package vm

import "github.com/hayleygayfer/dumbvm/bitfield"

const (
	// PageSize is the size of a page in bytes.
	PageSize = bitfield.PageSize

	// UserStack is the platform-defined top of user virtual memory.
	// original_source leaves USERSTACK machine-defined; 0x80000000 is
	// the conventional MIPS/OS-161 value (top of the 2GB user range).
	UserStack uint32 = 0x80000000

	// StackPages is the number of pages reserved for the user stack.
	StackPages uint32 = 512
	// StackSize is StackPages pages worth of bytes (2MiB, spec §3's
	// recommended STACK_SIZE).
	StackSize uint32 = StackPages * PageSize
)

// Bootstrap initializes the VM subsystem. There is no global state in
// this design (spec §9 design note: "a port should avoid introducing
// any"), so it is a no-op, matching
// original_source/kern/vm/vm.c's vm_bootstrap.
func Bootstrap() {}

// TLBShootdown is the host kernel's cross-CPU TLB invalidation entry
// point (spec §1, §5, §6: "a shootdown entry point exists only to
// panic"). This design targets a single-CPU machine, so there is no
// second CPU whose TLB could ever need a shootdown; the ABI still
// requires the symbol to exist, and any actual invocation indicates a
// kernel bug rather than a condition this subsystem can service.
func TLBShootdown(descriptor uint32) {
	panic("vm: TLBShootdown invoked on a uniprocessor configuration")
}
