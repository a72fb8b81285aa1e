package heap

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/treealloc/treealloc/block"
)

// Validate checks the entire heap for internal consistency: the linear block
// sequence, the boundary tags, the cached counters, and every red-black tree
// invariant including the duplicate-list parent caches. It walks the whole
// arena and the whole tree, so it is meant for debug builds and tests rather
// than production paths.
func (h *Heap) Validate() error {
	if h.arena == nil {
		return errors.New("heap used before Init")
	}
	a := h.arena

	if h.clientEnd.Add(block.NodeWidth) != block.Handle(h.size) {
		return errors.Newf("sentinel at %d does not sit %d bytes before arena end %d",
			h.clientEnd, block.NodeWidth, h.size)
	}
	sentinel := a.Header(h.nilNode)
	if sentinel.Size() != 0 || !sentinel.Allocated() || sentinel.Color() != block.Black {
		return errors.Newf("sentinel header corrupted: %#x", uint64(sentinel))
	}
	if !a.Header(h.clientStart).LeftAllocated() {
		return errors.New("first block claims a left neighbor")
	}

	if err := h.validateBlockRun(); err != nil {
		return err
	}

	if treeBytes := h.subtreeBytes(h.root); treeBytes != h.freeBytes {
		return errors.Newf("tree holds %d free bytes but the heap counter says %d",
			treeBytes, h.freeBytes)
	}
	if err := h.validateNoRedRed(h.root); err != nil {
		return err
	}
	if h.subtreeBlackHeight(h.root) < 0 {
		return errors.New("black height differs between tree paths")
	}
	if err := h.validateOrdering(h.root, 0, math.MaxInt); err != nil {
		return err
	}
	return h.validateParentCaches(h.root, h.nilNode)
}

// validateBlockRun walks the arena address order from the first block to the
// sentinel, checking alignment, boundary tags, and that the byte and block
// totals add up to the cached counters.
func (h *Heap) validateBlockRun() error {
	a := h.arena

	bytesSeen := block.NodeWidth
	freeBlocks := 0
	freeBytes := 0
	prevFree := false

	for cur := h.clientStart; cur != h.nilNode; {
		hdr := a.Header(cur)
		size := hdr.Size()

		if size == 0 || size%block.Alignment != 0 {
			return errors.Newf("block at %d has invalid size %d", cur, size)
		}
		if cur.Add(size) > h.clientEnd {
			return errors.Newf("block at %d of size %d runs past the sentinel", cur, size)
		}
		if hdr.LeftAllocated() == prevFree {
			return errors.Newf("block at %d disagrees with its left neighbor about its state", cur)
		}
		if !hdr.Allocated() {
			if a.Footer(cur).Size() != size {
				return errors.Newf("free block at %d has footer size %d, header size %d",
					cur, a.Footer(cur).Size(), size)
			}
			freeBlocks++
			freeBytes += size
		}

		bytesSeen += size
		prevFree = !hdr.Allocated()
		cur = a.RightNeighbor(cur)
	}

	if bytesSeen != h.size {
		return errors.Newf("blocks cover %d bytes of a %d byte arena", bytesSeen, h.size)
	}
	if freeBlocks != h.freeTotal {
		return errors.Newf("found %d free blocks but the heap counter says %d",
			freeBlocks, h.freeTotal)
	}
	if freeBytes != h.freeBytes {
		return errors.Newf("found %d free bytes but the heap counter says %d",
			freeBytes, h.freeBytes)
	}
	return nil
}

// subtreeBytes totals the free bytes reachable from a subtree, duplicate
// lists included. Recursion is safe: the tree is balanced, so its depth is
// logarithmic in the block count.
func (h *Heap) subtreeBytes(n block.Handle) int {
	if n == h.nilNode {
		return 0
	}
	a := h.arena
	size := a.Header(n).Size()
	total := size

	for dup := a.ListStart(n); dup != h.nilNode; dup = a.Link(dup, block.Next) {
		total += size
	}
	return total + h.subtreeBytes(a.Link(n, block.Left)) + h.subtreeBytes(a.Link(n, block.Right))
}

func (h *Heap) validateNoRedRed(n block.Handle) error {
	if n == h.nilNode {
		return nil
	}
	a := h.arena
	if a.Header(n).Color() == block.Red {
		if a.Header(a.Link(n, block.Left)).Color() == block.Red ||
			a.Header(a.Link(n, block.Right)).Color() == block.Red {
			return errors.Newf("red node at %d has a red child", n)
		}
	}
	if err := h.validateNoRedRed(a.Link(n, block.Left)); err != nil {
		return err
	}
	return h.validateNoRedRed(a.Link(n, block.Right))
}

// subtreeBlackHeight returns the black height of a subtree, or -1 when two
// paths below it disagree.
func (h *Heap) subtreeBlackHeight(n block.Handle) int {
	if n == h.nilNode {
		return 1
	}
	a := h.arena
	left := h.subtreeBlackHeight(a.Link(n, block.Left))
	right := h.subtreeBlackHeight(a.Link(n, block.Right))
	if left < 0 || right < 0 || left != right {
		return -1
	}
	if a.Header(n).Color() == block.Black {
		return left + 1
	}
	return left
}

// validateOrdering checks the strict search-tree order. Duplicate sizes live
// in per-node lists, never as separate tree nodes, so the bounds are
// exclusive on both sides.
func (h *Heap) validateOrdering(n block.Handle, low, high int) error {
	if n == h.nilNode {
		return nil
	}
	a := h.arena
	size := a.Header(n).Size()
	if size <= low || size >= high {
		return errors.Newf("node at %d with size %d violates search order (%d, %d)",
			n, size, low, high)
	}
	for dup := a.ListStart(n); dup != h.nilNode; dup = a.Link(dup, block.Next) {
		if a.Header(dup).Size() != size {
			return errors.Newf("duplicate at %d has size %d on the %d-byte list",
				dup, a.Header(dup).Size(), size)
		}
	}
	if err := h.validateOrdering(a.Link(n, block.Left), low, size); err != nil {
		return err
	}
	return h.validateOrdering(a.Link(n, block.Right), size, high)
}

// validateParentCaches checks that the first duplicate of every tree node
// caches that node's true parent, the invariant the O(1) coalescing removal
// depends on.
func (h *Heap) validateParentCaches(n, parent block.Handle) error {
	if n == h.nilNode {
		return nil
	}
	a := h.arena
	first := a.ListStart(n)
	if first != h.nilNode && a.ListStart(first) != parent {
		return errors.Newf("first duplicate of node at %d caches parent %d, want %d",
			n, a.ListStart(first), parent)
	}
	if err := h.validateParentCaches(a.Link(n, block.Left), n); err != nil {
		return err
	}
	return h.validateParentCaches(a.Link(n, block.Right), n)
}
