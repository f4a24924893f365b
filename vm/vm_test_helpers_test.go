package vm_test

import (
	"github.com/hayleygayfer/dumbvm/vm"
)

// fakeTLB is a software stand-in for the hardware TLB (spec §6), used
// across this package's tests. It implements vm.TLB.
type fakeTLB struct {
	entries []tlbEntry
	next    int
}

type tlbEntry struct {
	hi, lo uint32
	valid  bool
}

func newFakeTLB(n int) *fakeTLB {
	return &fakeTLB{entries: make([]tlbEntry, n)}
}

func (t *fakeTLB) NumTLB() int { return len(t.entries) }

func (t *fakeTLB) WriteRandom(entryHi, entryLo uint32) {
	t.entries[t.next] = tlbEntry{hi: entryHi, lo: entryLo, valid: true}
	t.next = (t.next + 1) % len(t.entries)
}

func (t *fakeTLB) WriteIndexed(entryHi, entryLo uint32, index int) {
	t.entries[index] = tlbEntry{hi: entryHi, lo: entryLo, valid: true}
}

func (t *fakeTLB) ReadByIndex(index int) (uint32, uint32) {
	e := t.entries[index]
	return e.hi, e.lo
}

func (t *fakeTLB) InvalidateAll() {
	for i := range t.entries {
		t.entries[i] = tlbEntry{}
	}
}

// lookup returns the entry-lo for entryHi if present in the fake TLB.
func (t *fakeTLB) lookup(entryHi uint32) (uint32, bool) {
	for _, e := range t.entries {
		if e.valid && e.hi == entryHi {
			return e.lo, true
		}
	}
	return 0, false
}

var _ vm.TLB = (*fakeTLB)(nil)
