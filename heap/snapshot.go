package heap

import (
	"github.com/treealloc/treealloc/block"
)

// BlockInfo describes one block encountered on a linear walk of the arena.
type BlockInfo struct {
	Handle block.Handle
	Header block.Header
	Free   bool
}

// VisitAllBlocks walks every block in address order, sentinel excluded, and
// calls visit for each. Returning an error from visit stops the walk.
func (h *Heap) VisitAllBlocks(visit func(info BlockInfo) error) error {
	a := h.arena
	for cur := h.clientStart; cur != h.nilNode; cur = a.RightNeighbor(cur) {
		hdr := a.Header(cur)
		err := visit(BlockInfo{Handle: cur, Header: hdr, Free: !hdr.Allocated()})
		if err != nil {
			return err
		}
	}
	return nil
}

// VisitFreeNodes walks the free tree in ascending size order, reporting each
// tree node together with how many same-size duplicates hang off it.
func (h *Heap) VisitFreeNodes(visit func(n block.Handle, size, duplicates int) error) error {
	return h.visitFreeSubtree(h.root, visit)
}

func (h *Heap) visitFreeSubtree(n block.Handle, visit func(n block.Handle, size, duplicates int) error) error {
	if n == h.nilNode {
		return nil
	}
	a := h.arena
	if err := h.visitFreeSubtree(a.Link(n, block.Left), visit); err != nil {
		return err
	}

	duplicates := 0
	for dup := a.ListStart(n); dup != h.nilNode; dup = a.Link(dup, block.Next) {
		duplicates++
	}
	if err := visit(n, a.Header(n).Size(), duplicates); err != nil {
		return err
	}
	return h.visitFreeSubtree(a.Link(n, block.Right), visit)
}

// TreeNode is a detached copy of one free-tree node, safe to hold after the
// heap mutates. SnapshotTree builds these for rendering and inspection.
type TreeNode struct {
	Offset           block.Handle
	Size             int
	Color            block.Color
	BlackHeight      int
	Duplicates       int
	DuplicateOffsets []block.Handle
	Left             *TreeNode
	Right            *TreeNode
}

// SnapshotTree copies the free tree out of the arena. The black height of
// each node is computed along the left spine, which is sufficient because a
// valid tree has equal black height on every path.
func (h *Heap) SnapshotTree() *TreeNode {
	return h.snapshotSubtree(h.root)
}

func (h *Heap) snapshotSubtree(n block.Handle) *TreeNode {
	if n == h.nilNode {
		return nil
	}
	a := h.arena
	node := &TreeNode{
		Offset: n,
		Size:   a.Header(n).Size(),
		Color:  a.Header(n).Color(),
		Left:   h.snapshotSubtree(a.Link(n, block.Left)),
		Right:  h.snapshotSubtree(a.Link(n, block.Right)),
	}
	for dup := a.ListStart(n); dup != h.nilNode; dup = a.Link(dup, block.Next) {
		node.DuplicateOffsets = append(node.DuplicateOffsets, dup)
	}
	node.Duplicates = len(node.DuplicateOffsets)

	node.BlackHeight = 1
	if node.Left != nil {
		node.BlackHeight = node.Left.BlackHeight
	}
	if node.Color == block.Black {
		node.BlackHeight++
	}
	return node
}
