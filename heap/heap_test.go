package heap_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/treealloc/treealloc"
	"github.com/treealloc/treealloc/block"
	"github.com/treealloc/treealloc/heap"
)

func newHeap(t *testing.T, size int) *heap.Heap {
	t.Helper()
	h := heap.New()
	require.NoError(t, h.Init(make([]byte, size)))
	return h
}

func TestInitTooSmall(t *testing.T) {
	h := heap.New()
	err := h.Init(make([]byte, 71))
	require.ErrorIs(t, err, treealloc.ErrArenaTooSmall)

	// 72 bytes is exactly one minimum block plus the sentinel.
	require.NoError(t, h.Init(make([]byte, 72)))
	p, err := h.Alloc(1)
	require.NoError(t, err)
	require.NotEqual(t, heap.NullPtr, p)
}

func TestValidateBeforeInit(t *testing.T) {
	h := heap.New()
	require.Error(t, h.Validate())
}

func TestAllocAndStats(t *testing.T) {
	h := newHeap(t, 1000)

	var stats treealloc.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)

	require.Equal(t, treealloc.DetailedStatistics{
		Statistics: treealloc.Statistics{
			ArenaCount:      1,
			AllocationCount: 0,
			ArenaBytes:      1000,
			AllocationBytes: 0,
		},
		FreeRangeCount:    1,
		AllocationSizeMin: math.MaxInt,
		AllocationSizeMax: 0,
		FreeRangeSizeMin:  968,
		FreeRangeSizeMax:  968,
	}, stats)

	// 100 requested bytes round up to a 112-byte block with its header.
	p, err := h.Alloc(100)
	require.NoError(t, err)
	require.NotEqual(t, heap.NullPtr, p)
	require.NoError(t, h.Validate())

	stats.Clear()
	h.AddDetailedStatistics(&stats)

	require.Equal(t, treealloc.DetailedStatistics{
		Statistics: treealloc.Statistics{
			ArenaCount:      1,
			AllocationCount: 1,
			ArenaBytes:      1000,
			AllocationBytes: 112,
		},
		FreeRangeCount:    1,
		AllocationSizeMin: 112,
		AllocationSizeMax: 112,
		FreeRangeSizeMin:  856,
		FreeRangeSizeMax:  856,
	}, stats)

	h.Free(p)
	require.NoError(t, h.Validate())
	require.True(t, h.IsEmpty())
	require.Equal(t, 1, h.TotalFreeBlocks())
	require.Equal(t, 968, h.SumFreeSize())
}

func TestAllocInvalidRequests(t *testing.T) {
	h := newHeap(t, 1000)

	_, err := h.Alloc(0)
	require.ErrorIs(t, err, treealloc.ErrInvalidRequest)

	_, err = h.Alloc(-5)
	require.ErrorIs(t, err, treealloc.ErrInvalidRequest)

	_, err = h.Alloc(block.MaxRequest + 1)
	require.ErrorIs(t, err, treealloc.ErrInvalidRequest)
}

func TestAllocOutOfMemory(t *testing.T) {
	h := newHeap(t, 1000)

	// 969 payload bytes need a 984-byte block; only 968 exist.
	_, err := h.Alloc(969)
	require.ErrorIs(t, err, treealloc.ErrOutOfMemory)

	// The failure must leave the heap untouched.
	require.NoError(t, h.Validate())
	require.Equal(t, 968, h.SumFreeSize())
}

func TestAllocReusesFreedBlock(t *testing.T) {
	h := newHeap(t, 1000)

	p1, err := h.Alloc(64)
	require.NoError(t, err)
	p2, err := h.Alloc(64)
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)

	h.Free(p1)
	require.Equal(t, 2, h.TotalFreeBlocks())

	// A same-size request is an exact tree match and must land on the hole.
	p3, err := h.Alloc(64)
	require.NoError(t, err)
	require.Equal(t, p1, p3)
	require.NoError(t, h.Validate())
}

func TestFreeCoalescesBothSides(t *testing.T) {
	h := newHeap(t, 1000)

	p1, err := h.Alloc(64)
	require.NoError(t, err)
	p2, err := h.Alloc(64)
	require.NoError(t, err)
	p3, err := h.Alloc(64)
	require.NoError(t, err)

	h.Free(p1)
	require.Equal(t, 2, h.TotalFreeBlocks())

	// p3 merges with the big free tail on its right.
	h.Free(p3)
	require.Equal(t, 2, h.TotalFreeBlocks())
	require.NoError(t, h.Validate())

	// p2 bridges both free neighbors back into one block.
	h.Free(p2)
	require.Equal(t, 1, h.TotalFreeBlocks())
	require.Equal(t, 968, h.SumFreeSize())
	require.True(t, h.IsEmpty())
	require.NoError(t, h.Validate())
}

func TestCoalesceOrderIndependent(t *testing.T) {
	for name, order := range map[string][2]int{
		"left then right": {0, 1},
		"right then left": {1, 0},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHeap(t, 1000)

			var ptrs [3]heap.Pointer
			for i := range ptrs {
				p, err := h.Alloc(64)
				require.NoError(t, err)
				ptrs[i] = p
			}

			// Pin a block after the pair so the merge is between the two alone.
			h.Free(ptrs[order[0]])
			h.Free(ptrs[order[1]])

			require.Equal(t, 2, h.TotalFreeBlocks())
			require.Equal(t, 896, h.SumFreeSize())
			require.NoError(t, h.Validate())

			var sizes []int
			require.NoError(t, h.VisitFreeNodes(func(_ block.Handle, size, _ int) error {
				sizes = append(sizes, size)
				return nil
			}))
			require.Equal(t, []int{144, 752}, sizes)
		})
	}
}

func TestFreeNullIsNoop(t *testing.T) {
	h := newHeap(t, 1000)
	h.Free(heap.NullPtr)
	require.Equal(t, 1, h.TotalFreeBlocks())
	require.NoError(t, h.Validate())
}

func TestReallocShrinkInPlace(t *testing.T) {
	h := newHeap(t, 1000)

	p, err := h.Alloc(100)
	require.NoError(t, err)
	for i := range h.Bytes(p)[:100] {
		h.Bytes(p)[i] = 0x5A
	}

	// Shrinking stays in place and carves the tail into a new free block.
	np, err := h.Realloc(p, 50)
	require.NoError(t, err)
	require.Equal(t, p, np)
	require.Equal(t, 2, h.TotalFreeBlocks())
	require.NoError(t, h.Validate())

	for _, b := range h.Bytes(np)[:50] {
		require.Equal(t, byte(0x5A), b)
	}
}

func TestAllocAfterShrinkTracksFreeNeighbor(t *testing.T) {
	h := newHeap(t, 1000)

	p, err := h.Alloc(100)
	require.NoError(t, err)
	np, err := h.Realloc(p, 50)
	require.NoError(t, err)
	require.Equal(t, p, np)

	// The shrink left two adjacent free blocks. Best fit lands on the right
	// one, so the new allocation's header must record that its left neighbor
	// is still free.
	q, err := h.Alloc(200)
	require.NoError(t, err)
	require.NoError(t, h.Validate())

	var headers []block.Header
	require.NoError(t, h.VisitAllBlocks(func(info heap.BlockInfo) error {
		headers = append(headers, info.Header)
		return nil
	}))
	require.Len(t, headers, 4)
	require.False(t, headers[2].LeftAllocated())

	// Freeing it must coalesce with the shrink remainder on the left and the
	// carved tail on the right.
	h.Free(q)
	require.NoError(t, h.Validate())
	require.Equal(t, 1, h.TotalFreeBlocks())
	require.Equal(t, 904, h.SumFreeSize())
}

func TestReallocGrowInPlace(t *testing.T) {
	h := newHeap(t, 1000)

	p1, err := h.Alloc(64)
	require.NoError(t, err)
	p2, err := h.Alloc(64)
	require.NoError(t, err)
	h.Free(p2)

	for i := range h.Bytes(p1)[:64] {
		h.Bytes(p1)[i] = 0x5A
	}

	// The free right neighbor absorbs the growth without moving the block.
	np, err := h.Realloc(p1, 200)
	require.NoError(t, err)
	require.Equal(t, p1, np)
	require.Equal(t, 1, h.TotalFreeBlocks())
	require.NoError(t, h.Validate())

	for _, b := range h.Bytes(np)[:64] {
		require.Equal(t, byte(0x5A), b)
	}
}

func TestReallocGrowMoves(t *testing.T) {
	h := newHeap(t, 1000)

	p1, err := h.Alloc(64)
	require.NoError(t, err)
	_, err = h.Alloc(64)
	require.NoError(t, err)

	for i := range h.Bytes(p1)[:64] {
		h.Bytes(p1)[i] = 0x7E
	}

	// Both neighbors are pinned, so growth must relocate and free the old spot.
	np, err := h.Realloc(p1, 100)
	require.NoError(t, err)
	require.NotEqual(t, p1, np)
	require.Equal(t, 2, h.AllocationCount())
	require.Equal(t, 2, h.TotalFreeBlocks())
	require.NoError(t, h.Validate())

	for _, b := range h.Bytes(np)[:64] {
		require.Equal(t, byte(0x7E), b)
	}
}

func TestReallocGrowFailureKeepsBlock(t *testing.T) {
	h := newHeap(t, 1000)

	p, err := h.Alloc(100)
	require.NoError(t, err)
	for i := range h.Bytes(p)[:100] {
		h.Bytes(p)[i] = 0x33
	}

	_, err = h.Realloc(p, 2000)
	require.ErrorIs(t, err, treealloc.ErrOutOfMemory)

	require.NoError(t, h.Validate())
	require.Equal(t, 1, h.AllocationCount())
	for _, b := range h.Bytes(p)[:100] {
		require.Equal(t, byte(0x33), b)
	}
}

func TestReallocNullAndZero(t *testing.T) {
	h := newHeap(t, 1000)

	p, err := h.Realloc(heap.NullPtr, 64)
	require.NoError(t, err)
	require.NotEqual(t, heap.NullPtr, p)
	require.Equal(t, 1, h.AllocationCount())

	np, err := h.Realloc(p, 0)
	require.NoError(t, err)
	require.Equal(t, heap.NullPtr, np)
	require.True(t, h.IsEmpty())
	require.Equal(t, 968, h.SumFreeSize())
	require.NoError(t, h.Validate())
}

func TestDuplicateSizes(t *testing.T) {
	h := newHeap(t, 1000)

	var ptrs [8]heap.Pointer
	for i := range ptrs {
		p, err := h.Alloc(64)
		require.NoError(t, err)
		ptrs[i] = p
	}

	// Free alternating blocks so nothing coalesces: four 72-byte holes share
	// one tree node and a three-deep duplicate list.
	freed := map[heap.Pointer]bool{}
	for _, i := range []int{0, 2, 4, 6} {
		h.Free(ptrs[i])
		freed[ptrs[i]] = true
	}
	require.Equal(t, 5, h.TotalFreeBlocks())
	require.NoError(t, h.Validate())

	type node struct {
		size       int
		duplicates int
	}
	var nodes []node
	require.NoError(t, h.VisitFreeNodes(func(_ block.Handle, size, duplicates int) error {
		nodes = append(nodes, node{size: size, duplicates: duplicates})
		return nil
	}))
	require.Equal(t, []node{{size: 72, duplicates: 3}, {size: 392, duplicates: 0}}, nodes)

	// Same-size requests must drain the duplicate holes, not the big tail.
	for i := 0; i < 3; i++ {
		p, err := h.Alloc(64)
		require.NoError(t, err)
		require.True(t, freed[p], "allocation %d did not reuse a freed hole", i)
		require.NoError(t, h.Validate())
	}
	require.Equal(t, 2, h.TotalFreeBlocks())
}

func TestRandomWorkload(t *testing.T) {
	h := newHeap(t, 1<<16)
	rng := rand.New(rand.NewSource(42))

	type live struct {
		p    heap.Pointer
		size int
		fill byte
	}
	var blocks []live

	verify := func(b live) {
		for _, got := range h.Bytes(b.p)[:b.size] {
			require.Equal(t, b.fill, got)
		}
	}
	fill := func(b live) {
		payload := h.Bytes(b.p)[:b.size]
		for i := range payload {
			payload[i] = b.fill
		}
	}

	for i := 0; i < 600; i++ {
		switch op := rng.Intn(4); {
		case op <= 1 || len(blocks) == 0:
			b := live{size: 1 + rng.Intn(256), fill: byte(i)}
			p, err := h.Alloc(b.size)
			if err != nil {
				require.ErrorIs(t, err, treealloc.ErrOutOfMemory)
				continue
			}
			b.p = p
			fill(b)
			blocks = append(blocks, b)

		case op == 2:
			j := rng.Intn(len(blocks))
			b := blocks[j]
			verify(b)

			newSize := 1 + rng.Intn(256)
			p, err := h.Realloc(b.p, newSize)
			if err != nil {
				require.ErrorIs(t, err, treealloc.ErrOutOfMemory)
				continue
			}
			kept := b.size
			if newSize < kept {
				kept = newSize
			}
			for _, got := range h.Bytes(p)[:kept] {
				require.Equal(t, b.fill, got)
			}
			blocks[j] = live{p: p, size: newSize, fill: b.fill}
			fill(blocks[j])

		default:
			j := rng.Intn(len(blocks))
			verify(blocks[j])
			h.Free(blocks[j].p)
			blocks[j] = blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
		}

		require.NoError(t, h.Validate(), "heap invalid after operation %d", i)
	}

	for _, b := range blocks {
		verify(b)
		h.Free(b.p)
	}
	require.True(t, h.IsEmpty())
	require.Equal(t, 1, h.TotalFreeBlocks())
	require.Equal(t, 1<<16-block.NodeWidth, h.SumFreeSize())
	require.NoError(t, h.Validate())
}

func TestInitResetsHeap(t *testing.T) {
	buf := make([]byte, 1000)
	h := heap.New()
	require.NoError(t, h.Init(buf))

	_, err := h.Alloc(100)
	require.NoError(t, err)

	require.NoError(t, h.Init(buf))
	require.True(t, h.IsEmpty())
	require.Equal(t, 968, h.SumFreeSize())
	require.NoError(t, h.Validate())
}
