package heap

import (
	"github.com/treealloc/treealloc/block"
)

// initFreeNode stamps a block as a free red node, writes its boundary tags,
// clears the right neighbor's left-allocated flag, and links the block into
// the free tree or a duplicate list. The left-allocated flag of the existing
// header at n is carried over: an in-place shrink can leave a free block next
// to another free block, so the flag cannot be assumed. Callers must leave a
// header with an accurate flag at n.
func (h *Heap) initFreeNode(n block.Handle, size int) {
	a := h.arena
	hdr := block.NewHeader(size).Painted(block.Red)
	if !a.Header(n).LeftAllocated() {
		hdr = hdr.WithLeftFree()
	}
	a.SetHeader(n, hdr)
	a.SetListStart(n, h.nilNode)
	a.WriteFooter(n)

	right := n.Add(size)
	a.SetHeader(right, a.Header(right).WithLeftFree())

	h.insertNode(n)
}

// coalesce merges the block with its free neighbors on either side, detaching
// each absorbed neighbor from the tree or its duplicate list. The merged
// result gets a header only: the absorbed span may still hold bytes the caller
// wants to move during reallocation, and a footer write would clobber them.
func (h *Heap) coalesce(leftmost block.Handle) block.Handle {
	a := h.arena
	space := a.Header(leftmost).Size()

	right := a.RightNeighbor(leftmost)
	if !a.Header(right).Allocated() {
		space += a.Header(right).Size()
		h.detachFreeNode(right)
	}

	if leftmost != h.clientStart && !a.Header(leftmost).LeftAllocated() {
		leftmost = a.LeftNeighbor(leftmost)
		space += a.Header(leftmost).Size()
		leftmost = h.detachFreeNode(leftmost)
	}

	// Only one neighbor per side is absorbed, so the merged block can still
	// have a free left neighbor; carry leftmost's own flag forward.
	leftFree := !a.Header(leftmost).LeftAllocated()
	a.WriteHeader(leftmost, space)
	if leftFree {
		a.SetHeader(leftmost, a.Header(leftmost).WithLeftFree())
	}
	return leftmost
}

// splitAlloc hands the client a block of exactly the requested size, carving
// the tail off as a fresh free block when the remainder could still hold a
// tree node. Too-small remainders ride along with the allocation instead.
func (h *Heap) splitAlloc(free block.Handle, request, space int) Pointer {
	a := h.arena
	leftFree := !a.Header(free).LeftAllocated()

	if space >= request+block.MinBlockSize {
		// The carved tail always has the allocated head on its left, which is
		// what a fresh header claims.
		tail := free.Add(request)
		a.WriteHeader(tail, space-request)
		h.initFreeNode(tail, space-request)
	} else {
		request = space
		right := free.Add(space)
		a.SetHeader(right, a.Header(right).WithLeftAllocated())
	}

	hdr := block.NewHeader(request).WithAllocated()
	if leftFree {
		hdr = hdr.WithLeftFree()
	}
	a.SetHeader(free, hdr)
	return h.pointer(free)
}
