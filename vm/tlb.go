package vm

import (
	"sync"

	"github.com/hayleygayfer/dumbvm/bitfield"
)

// TLB abstracts the hardware translation look-aside buffer (spec §6):
// write-indexed, write-random, read-by-index, and invalidate-all. The
// core never reasons about TLB internals beyond this interface.
//
// Grounded on the tlb_write_random/tlb_write_indexed/NUM_TLB interface
// named in spec §6 and on the invalidate-all-entries loop in
// original_source/kern/vm/addrspace.c's as_activate
// (`tlb_write(TLBHI_INVALID(i), TLBLO_INVALID(), i)` for i in
// [0, NUM_TLB)).
type TLB interface {
	// NumTLB returns the number of hardware TLB entries.
	NumTLB() int
	// WriteRandom loads (entryHi, entryLo) into a hardware-chosen entry.
	WriteRandom(entryHi, entryLo uint32)
	// WriteIndexed loads (entryHi, entryLo) into entry index.
	WriteIndexed(entryHi, entryLo uint32, index int)
	// ReadByIndex returns the current contents of entry index.
	ReadByIndex(index int) (entryHi, entryLo uint32)
	// InvalidateAll clears every hardware TLB entry.
	InvalidateAll()
}

// entryHiVPageMask masks a virtual address down to its page number for
// use as a TLB entry-hi value (spec §4.5 step 4).
const entryHiVPageMask = ^uint32(0) &^ uint32(bitfield.PageSize-1)

// splMu models "raise interrupt priority level high" on the single CPU
// this design targets. Every TLB write and every TLB invalidation is
// bracketed by an acquire/release of this lock, matching spec §5's
// "TLB writes and TLB invalidations are bracketed by raise interrupt
// priority level high / restore" and the teacher's splhigh()/splx(old)
// naming, modeled per design note §9 as a scoped guard rather than a
// manually paired raise/restore call.
var splMu sync.Mutex

// splHigh raises interrupt priority and returns a function that
// restores it. Callers must not let control escape while holding the
// returned restore function uncalled (design note §9).
func splHigh() func() {
	splMu.Lock()
	return splMu.Unlock
}

// tlbWriteRandom loads a fresh translation under raised interrupt
// priority, as spec §4.5 step 4 and step 8 require.
func tlbWriteRandom(tlb TLB, entryHi, entryLo uint32) {
	restore := splHigh()
	defer restore()
	tlb.WriteRandom(entryHi, entryLo)
}

// InvalidateAll invalidates every TLB entry under raised interrupt
// priority. It is the single coherence primitive spec §4.6 calls for on
// three events: address-space activation, deactivation, and completion
// of ELF loading.
func InvalidateAll(tlb TLB) {
	restore := splHigh()
	defer restore()
	tlb.InvalidateAll()
}
