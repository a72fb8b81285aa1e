package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/treealloc/treealloc"
	"github.com/treealloc/treealloc/block"
)

// Pointer identifies an allocation handed to a client: the byte offset of the
// payload within the arena. NullPtr is never a valid allocation because every
// payload sits at least one header word into the arena.
type Pointer uint64

// NullPtr is the failed-allocation value, mirroring the null return of the
// libc allocator contract this heap re-implements.
const NullPtr Pointer = 0

// Heap is a best-fit allocator over a single caller-provided byte arena. Free
// blocks are indexed by a red-black tree keyed on block size, with same-size
// blocks chained in per-node duplicate lists rather than inserted as tree
// nodes. All metadata lives in-band inside the arena.
//
// A Heap serves one logical caller; it performs no locking of its own.
type Heap struct {
	arena *block.Arena

	// root of the free tree and the arena-resident sentinel that serves as
	// both the universal leaf and the universal duplicate-list tail.
	root    block.Handle
	nilNode block.Handle

	clientStart block.Handle
	clientEnd   block.Handle
	size        int

	freeTotal  int
	freeBytes  int
	allocCount int
}

var _ treealloc.Validatable = &Heap{}

// New returns an uninitialized heap. Init must be called before any
// allocation request.
func New() *Heap {
	return &Heap{}
}

// Init places a heap over buf, truncated down to alignment. The entire usable
// range becomes one free block with the sentinel above it. Init may be called
// again at any time to reset the heap or to move it to a new buffer; all
// previously returned pointers become invalid when it is.
func (h *Heap) Init(buf []byte) error {
	size := treealloc.AlignDown(len(buf), block.Alignment)
	if size < block.MinBlockSize+block.NodeWidth {
		return errors.Wrapf(treealloc.ErrArenaTooSmall,
			"%d usable bytes cannot hold the %d-byte sentinel and a %d-byte block",
			size, block.NodeWidth, block.MinBlockSize)
	}

	a := block.NewArena(buf[:size])
	h.arena = a
	h.size = size
	h.clientStart = 0
	h.clientEnd = block.Handle(size - block.NodeWidth)
	h.allocCount = 0

	// The sentinel reports size zero and allocated so no block ever tries to
	// coalesce into it. Its link fields are writable scratch for list splices.
	h.nilNode = h.clientEnd
	a.SetHeader(h.nilNode, block.Header(0).WithAllocated().Painted(block.Black))
	a.SetLink(h.nilNode, block.Left, block.Null)
	a.SetLink(h.nilNode, block.Right, block.Null)
	a.SetListStart(h.nilNode, block.Null)

	// One giant free block spans the rest; a single-node tree has a black root.
	h.root = h.clientStart
	a.WriteHeader(h.root, size-block.NodeWidth)
	a.SetHeader(h.root, a.Header(h.root).Painted(block.Black))
	a.WriteFooter(h.root)
	a.SetLink(h.root, block.Left, h.nilNode)
	a.SetLink(h.root, block.Right, h.nilNode)
	a.SetListStart(h.root, h.nilNode)

	h.freeTotal = 1
	h.freeBytes = size - block.NodeWidth
	return nil
}

// adjustedRequest converts a client byte count into the total block size that
// will serve it: header plus payload, aligned, and never below the minimum
// block that could later rejoin the free tree.
func adjustedRequest(n int) int {
	request := treealloc.AlignUp(n+block.HeaderSize, block.Alignment)
	if request < block.MinBlockSize {
		request = block.MinBlockSize
	}
	return request
}

// Alloc reserves n bytes and returns the client pointer, or an error wrapping
// treealloc.ErrInvalidRequest or treealloc.ErrOutOfMemory. The arena never
// grows, so an out-of-memory failure is final until something is freed.
func (h *Heap) Alloc(n int) (Pointer, error) {
	treealloc.DebugValidate(h)
	return h.alloc(n)
}

func (h *Heap) alloc(n int) (Pointer, error) {
	if n <= 0 || n > block.MaxRequest {
		return NullPtr, errors.Wrapf(treealloc.ErrInvalidRequest, "requested %d bytes", n)
	}

	request := adjustedRequest(n)
	found, ok := h.findBestFit(request)
	if !ok {
		return NullPtr, errors.Wrapf(treealloc.ErrOutOfMemory, "no free block of %d bytes or more", request)
	}

	p := h.splitAlloc(found, request, h.arena.Header(found).Size())
	h.allocCount++
	return p, nil
}

// Free returns an allocation to the heap, coalescing with any free neighbors
// before reinserting the result into the tree. Freeing NullPtr is a no-op.
// Passing a pointer that did not come from this heap is undefined behavior;
// it is the caller's contract, not a checked error.
func (h *Heap) Free(p Pointer) {
	treealloc.DebugValidate(h)
	if p == NullPtr {
		return
	}

	n := h.coalesce(h.node(p))
	h.initFreeNode(n, h.arena.Header(n).Size())
	h.allocCount--
}

// Realloc resizes an allocation. A NullPtr input degenerates to Alloc and a
// non-positive size degenerates to Free. A request that still fits the current
// block is served in place without touching the neighbors, so a shrink can
// leave the carved tail next to an already-free block; headers track the left
// neighbor's state explicitly to keep that legal. Growth coalesces both
// neighbors first to maximize in-place reuse and only falls back to
// allocate-copy-free when the merged span is still too small. On failure the
// old pointer remains valid and its bytes are untouched.
func (h *Heap) Realloc(p Pointer, n int) (Pointer, error) {
	treealloc.DebugValidate(h)
	if n > block.MaxRequest {
		return NullPtr, errors.Wrapf(treealloc.ErrInvalidRequest, "requested %d bytes", n)
	}
	if p == NullPtr {
		return h.alloc(n)
	}
	if n <= 0 {
		h.Free(p)
		return NullPtr, nil
	}

	a := h.arena
	request := adjustedRequest(n)
	old := h.node(p)
	oldSize := a.Header(old).Size()

	if request <= oldSize {
		return h.splitAlloc(old, request, oldSize), nil
	}

	// Peek at the neighbors before committing to a merge, so that a failed
	// grow leaves the heap exactly as it was.
	space := oldSize
	if right := a.RightNeighbor(old); !a.Header(right).Allocated() {
		space += a.Header(right).Size()
	}
	if old != h.clientStart && !a.Header(old).LeftAllocated() {
		space += a.Header(a.LeftNeighbor(old)).Size()
	}

	payload := oldSize - block.HeaderSize
	if space >= request {
		leftmost := h.coalesce(old)
		if leftmost != old {
			copy(a.Bytes(leftmost.Add(block.HeaderSize), payload), a.Bytes(old.Add(block.HeaderSize), payload))
		}
		return h.splitAlloc(leftmost, request, space), nil
	}

	fresh, err := h.alloc(n)
	if err != nil {
		return NullPtr, err
	}
	copy(h.Bytes(fresh), a.Bytes(old.Add(block.HeaderSize), payload))
	freed := h.coalesce(old)
	h.initFreeNode(freed, a.Header(freed).Size())
	h.allocCount--
	return fresh, nil
}

// TotalFreeBlocks reports how many free blocks the heap currently tracks,
// tree nodes and duplicates combined. O(1).
func (h *Heap) TotalFreeBlocks() int {
	return h.freeTotal
}

// SumFreeSize reports the total bytes held in free blocks, headers included.
func (h *Heap) SumFreeSize() int {
	return h.freeBytes
}

// AllocationCount reports the number of live allocations.
func (h *Heap) AllocationCount() int {
	return h.allocCount
}

// Size reports the aligned arena size the heap was initialized with.
func (h *Heap) Size() int {
	return h.size
}

// IsEmpty reports whether the heap has no live allocations.
func (h *Heap) IsEmpty() bool {
	return h.allocCount == 0
}

// Bytes exposes the payload of a live allocation for reading and writing.
func (h *Heap) Bytes(p Pointer) []byte {
	return h.arena.Payload(h.node(p))
}

func (h *Heap) node(p Pointer) block.Handle {
	return block.Handle(uint64(p) - block.HeaderSize)
}

func (h *Heap) pointer(n block.Handle) Pointer {
	return Pointer(uint64(n) + block.HeaderSize)
}
