// Package simmem is a host-process-backed implementation of
// mem.FrameAllocator, used by vm's tests and by any embedding of this
// module that runs outside a real kernel. The real allocator
// (alloc_frame/free_frame plus the kernel-virtual alias function) is
// explicitly out of scope per spec §1; this is not it, merely a stand-in
// that satisfies the same interface.
//
// Grounded on the free-list bookkeeping in the teacher's
// mem.Physmem_t (biscuit/src/mem/mem.go: freei/freelen, Refpg_new,
// _phys_put) simplified to single ownership (no refcounting, since the
// spec has no shared memory and no COW) and backed by Go slices instead
// of a direct-mapped physical range.
package simmem

import (
	"sync"

	"github.com/hayleygayfer/dumbvm/mem"
)

// Allocator is a fixed-capacity pool of frames backed by regular Go
// memory. It implements mem.FrameAllocator.
type Allocator struct {
	mu       sync.Mutex
	pages    [][]byte
	freeList []uint32
	used     map[uint32]bool
}

// New creates an Allocator with capacity frames available, numbered
// 0..capacity-1.
func New(capacity int) *Allocator {
	a := &Allocator{
		pages: make([][]byte, capacity),
		used:  make(map[uint32]bool, capacity),
	}
	for i := 0; i < capacity; i++ {
		a.pages[i] = make([]byte, mem.PageSize)
		a.freeList = append(a.freeList, uint32(i))
	}
	return a
}

// AllocFrame implements mem.FrameAllocator.
func (a *Allocator) AllocFrame() (mem.Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.freeList) == 0 {
		return mem.Frame{}, false
	}
	n := a.freeList[len(a.freeList)-1]
	a.freeList = a.freeList[:len(a.freeList)-1]
	a.used[n] = true
	return mem.Frame{Number: n, Contents: a.pages[n]}, true
}

// FreeFrame implements mem.FrameAllocator.
func (a *Allocator) FreeFrame(number uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.used[number] {
		panic("simmem: double free")
	}
	delete(a.used, number)
	a.freeList = append(a.freeList, number)
}

// FrameContents implements mem.FrameAllocator.
func (a *Allocator) FrameContents(number uint32) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.used[number] {
		panic("simmem: FrameContents on a frame that is not allocated")
	}
	return a.pages[number]
}

// FreeCount returns the number of frames currently unallocated, useful
// for the teardown-balance property in spec §8 scenario 6.
func (a *Allocator) FreeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.freeList)
}

// InUse reports whether frame number is currently allocated.
func (a *Allocator) InUse(number uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used[number]
}
