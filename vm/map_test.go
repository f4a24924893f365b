package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayleygayfer/dumbvm/mem/simmem"
	"github.com/hayleygayfer/dumbvm/vm"
)

func TestLookupMissReturnsZero(t *testing.T) {
	m := vm.NewMap()
	assert.Equal(t, uint32(0), uint32(m.Lookup(0x00400000)))
}

func TestInstallThenLookupHits(t *testing.T) {
	alloc := simmem.New(4)
	m := vm.NewMap()

	desc, err := m.Install(0x00400010, true, alloc)
	require.Nil(t, err)
	assert.True(t, desc.Present())
	assert.True(t, desc.Writable())

	got := m.Lookup(0x00400010)
	assert.Equal(t, desc, got)
}

func TestInstallReadOnlyClearsDirty(t *testing.T) {
	alloc := simmem.New(4)
	m := vm.NewMap()

	desc, err := m.Install(0x00500000, false, alloc)
	require.Nil(t, err)
	assert.True(t, desc.Present())
	assert.False(t, desc.Writable())
}

func TestInstallZeroFillsFrame(t *testing.T) {
	alloc := simmem.New(4)
	m := vm.NewMap()

	// dirty the frame pool before install so we can tell zero-fill apart
	// from a stale allocator return.
	stale, _ := alloc.AllocFrame()
	stale.Contents[0] = 0xFF
	alloc.FreeFrame(stale.Number)

	desc, err := m.Install(0x00600000, true, alloc)
	require.Nil(t, err)
	assert.Equal(t, byte(0), alloc.FrameContents(desc.Frame())[0])
}

func TestInstallOnlyCreatesMissingLowerLevels(t *testing.T) {
	alloc := simmem.New(8)
	m := vm.NewMap()

	// Same L1 (top 8 bits), different L2 slice: 0x00040000 has the next
	// L2 step set relative to 0x00000000, both share L1 index 0.
	_, err := m.Install(0x00000000, true, alloc)
	require.Nil(t, err)
	_, err = m.Install(0x00040000, true, alloc)
	require.Nil(t, err)

	assert.True(t, m.Lookup(0x00000000).Present())
	assert.True(t, m.Lookup(0x00040000).Present())
}

func TestDuplicateEmptyMapSucceeds(t *testing.T) {
	alloc := simmem.New(4)
	m := vm.NewMap()

	dst, err := m.Duplicate(alloc)
	require.Nil(t, err)
	assert.Equal(t, uint32(0), uint32(dst.Lookup(0x00400000)))
}

func TestDuplicateCopiesDistinctFramesWithEqualContents(t *testing.T) {
	alloc := simmem.New(8)
	src := vm.NewMap()

	d1, err := src.Install(0x00400000, true, alloc)
	require.Nil(t, err)
	d2, err := src.Install(0x00401000, true, alloc)
	require.Nil(t, err)

	alloc.FrameContents(d1.Frame())[0] = 0xAA
	alloc.FrameContents(d2.Frame())[0] = 0xBB

	dst, err := src.Duplicate(alloc)
	require.Nil(t, err)

	dd1 := dst.Lookup(0x00400000)
	dd2 := dst.Lookup(0x00401000)
	require.True(t, dd1.Present())
	require.True(t, dd2.Present())

	assert.NotEqual(t, d1.Frame(), dd1.Frame())
	assert.NotEqual(t, d2.Frame(), dd2.Frame())
	assert.Equal(t, byte(0xAA), alloc.FrameContents(dd1.Frame())[0])
	assert.Equal(t, byte(0xBB), alloc.FrameContents(dd2.Frame())[0])

	// mutating the fork must not affect the original.
	alloc.FrameContents(dd1.Frame())[0] = 0xCC
	assert.Equal(t, byte(0xAA), alloc.FrameContents(d1.Frame())[0])
}

func TestDuplicateRollsBackOnExhaustion(t *testing.T) {
	alloc := simmem.New(3)
	src := vm.NewMap()

	_, err := src.Install(0x00400000, true, alloc)
	require.Nil(t, err)
	_, err = src.Install(0x00401000, true, alloc)
	require.Nil(t, err)
	// one frame left free: Duplicate needs two, so it must fail and
	// release the one frame it managed to allocate before failing.
	before := alloc.FreeCount()

	_, derr := src.Duplicate(alloc)
	require.NotNil(t, derr)
	assert.Equal(t, before, alloc.FreeCount())
}

func TestDestroyFreesAllFramesAndIsIdempotent(t *testing.T) {
	alloc := simmem.New(4)
	m := vm.NewMap()

	_, err := m.Install(0x00400000, true, alloc)
	require.Nil(t, err)
	_, err = m.Install(0x00401000, true, alloc)
	require.Nil(t, err)
	require.Equal(t, 2, alloc.FreeCount())

	m.Destroy(alloc)
	assert.Equal(t, 4, alloc.FreeCount())

	// idempotent: destroying again must not double-free.
	assert.NotPanics(t, func() { m.Destroy(alloc) })
}

func TestDestroyOnNilMapIsNoOp(t *testing.T) {
	var m *vm.Map
	alloc := simmem.New(1)
	assert.NotPanics(t, func() { m.Destroy(alloc) })
}
