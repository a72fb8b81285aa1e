package heap

import (
	"math"

	"github.com/treealloc/treealloc/block"
)

// Red-black trees are always balanced, so this is plenty of height for any
// arena the encoding can address. The tree carries no parent pointers; every
// walk records its route in a fixed stack and the fixups work back up it.
const maxTreeHeight = 64

func (h *Heap) paint(n block.Handle, c block.Color) {
	h.arena.SetHeader(n, h.arena.Header(n).Painted(c))
}

// rotate swaps current with its child opposite the rotation direction,
// relinking the subtrees and the parent cache of any first duplicate hanging
// off the touched nodes. The caller owns any path-stack updates; rotations can
// happen on siblings that are not on the path being worked.
func (h *Heap) rotate(rotation block.Side, current, parent block.Handle) {
	a := h.arena
	opposite := rotation.Opposite()
	child := a.Link(current, opposite)
	grandchild := a.Link(child, rotation)

	a.SetLink(current, opposite, grandchild)
	if grandchild != h.nilNode {
		a.SetListStart(a.ListStart(grandchild), current)
	}
	if child != h.nilNode {
		a.SetListStart(a.ListStart(child), parent)
	}

	if parent == h.nilNode {
		h.root = child
	} else {
		dir := block.Left
		if a.Link(parent, block.Right) == current {
			dir = block.Right
		}
		a.SetLink(parent, dir, child)
	}
	a.SetLink(child, rotation, current)
	a.SetListStart(a.ListStart(current), child)
}

// addDuplicate chains a block whose size is already present in the tree onto
// that size's doubly linked list, so duplicates never rotate through the tree.
// Only the first node of the list caches the tree node's parent; the cache
// makes detaching the tree node itself O(1) during coalescing.
func (h *Heap) addDuplicate(head, add, parent block.Handle) {
	a := h.arena
	a.SetHeader(add, a.Header(head))

	if a.ListStart(head) == h.nilNode {
		a.SetListStart(add, parent)
	} else {
		a.SetListStart(add, a.ListStart(a.ListStart(head)))
		a.SetListStart(a.ListStart(head), block.Null)
	}

	a.SetLink(a.ListStart(head), block.Prev, add)
	a.SetLink(add, block.Next, a.ListStart(head))
	a.SetLink(add, block.Prev, head)
	a.SetListStart(head, add)
}

// insertNode links a freed block into the tree, or onto a duplicate list when
// its size is already present. New tree nodes are red leaves and the standard
// fixup restores the tree invariants afterwards.
func (h *Heap) insertNode(n block.Handle) {
	a := h.arena
	key := a.Header(n).Size()

	var stack [maxTreeHeight]block.Handle
	stack[0] = h.nilNode
	pathLen := 1

	seeker := h.root
	for seeker != h.nilNode {
		seekerSize := a.Header(seeker).Size()
		stack[pathLen] = seeker
		pathLen++

		if seekerSize == key {
			h.addDuplicate(seeker, n, stack[pathLen-2])
			h.freeTotal++
			h.freeBytes += key
			return
		}
		// The recurring idiom: Left when the key belongs in the left subtree,
		// Right otherwise.
		dir := block.Left
		if seekerSize < key {
			dir = block.Right
		}
		seeker = a.Link(seeker, dir)
	}

	parent := stack[pathLen-1]
	if parent == h.nilNode {
		h.root = n
	} else {
		dir := block.Left
		if a.Header(parent).Size() < key {
			dir = block.Right
		}
		a.SetLink(parent, dir, n)
	}
	a.SetLink(n, block.Left, h.nilNode)
	a.SetLink(n, block.Right, h.nilNode)
	a.SetListStart(n, h.nilNode)
	h.paint(n, block.Red)

	stack[pathLen] = n
	pathLen++
	h.insertFixup(stack[:pathLen])
	h.freeTotal++
	h.freeBytes += key
}

// insertFixup restores the red-black invariants after an insertion, walking
// back up the recorded path. The left and right mirror cases share one body
// through the Side direction flag and its opposite.
func (h *Heap) insertFixup(path []block.Handle) {
	a := h.arena
	for len(path) >= 3 && a.Header(path[len(path)-2]).Color() == block.Red {
		current := path[len(path)-1]
		parent := path[len(path)-2]
		grandparent := path[len(path)-3]

		dir := block.Left
		if a.Link(grandparent, block.Right) == parent {
			dir = block.Right
		}
		other := dir.Opposite()
		aunt := a.Link(grandparent, other)

		if a.Header(aunt).Color() == block.Red {
			h.paint(aunt, block.Black)
			h.paint(parent, block.Black)
			h.paint(grandparent, block.Red)
			path = path[:len(path)-2]
			continue
		}

		if current == a.Link(parent, other) {
			// Inner child: rotate it outward first so one recolor-and-rotate
			// finishes the case.
			current = parent
			otherChild := a.Link(current, other)
			h.rotate(dir, current, grandparent)
			path[len(path)-2] = otherChild
			path[len(path)-1] = current
			parent = otherChild
		}
		h.paint(parent, block.Black)
		h.paint(grandparent, block.Red)
		h.rotate(other, grandparent, path[len(path)-4])
		path[len(path)-3] = parent
		path[len(path)-2] = current
		path = path[:len(path)-1]
	}
	h.paint(h.root, block.Black)
}

// transplant replaces a node with the subtree that should take its position,
// keeping the replacement's first-duplicate parent cache current.
func (h *Heap) transplant(parent, toRemove, replacement block.Handle) {
	a := h.arena
	if parent == h.nilNode {
		h.root = replacement
	} else {
		dir := block.Left
		if a.Link(parent, block.Right) == toRemove {
			dir = block.Right
		}
		a.SetLink(parent, dir, replacement)
	}
	if replacement != h.nilNode {
		a.SetListStart(a.ListStart(replacement), parent)
	}
}

// detachDuplicate pulls the first block off a tree node's duplicate list. The
// tree shape is untouched, which makes this the fast path for an exact-size
// match.
func (h *Heap) detachDuplicate(head block.Handle) block.Handle {
	a := h.arena
	next := a.ListStart(head)

	// The node after next takes over the parent cache; it may be the sentinel,
	// whose fields are scratch, so no branch is needed.
	after := a.Link(next, block.Next)
	a.SetListStart(after, a.ListStart(next))
	a.SetLink(after, block.Prev, head)
	a.SetListStart(head, after)

	h.freeTotal--
	h.freeBytes -= a.Header(next).Size()
	return next
}

// deleteNode removes a tree node, splicing in its successor when it has two
// real children, and runs the deletion fixup whenever a black node left the
// tree. path holds the recorded route down to the node; pathLen is its length.
func (h *Heap) deleteNode(toRemove block.Handle, path []block.Handle, pathLen int) block.Handle {
	a := h.arena
	h.freeBytes -= a.Header(toRemove).Size()

	fixupStart := h.nilNode
	originalColor := a.Header(toRemove).Color()
	parent := path[pathLen-2]

	switch {
	case a.Link(toRemove, block.Left) == h.nilNode:
		fixupStart = a.Link(toRemove, block.Right)
		h.transplant(parent, toRemove, fixupStart)
		path[pathLen-1] = fixupStart
	case a.Link(toRemove, block.Right) == h.nilNode:
		fixupStart = a.Link(toRemove, block.Left)
		h.transplant(parent, toRemove, fixupStart)
		path[pathLen-1] = fixupStart
	default:
		lenToRemoved := pathLen

		// Successor: leftmost node of the right subtree, recorded onto the
		// same path so the fixup can keep walking up through it.
		rightMin := a.Link(toRemove, block.Right)
		for a.Link(rightMin, block.Left) != h.nilNode {
			path[pathLen] = rightMin
			pathLen++
			rightMin = a.Link(rightMin, block.Left)
		}
		path[pathLen] = rightMin
		pathLen++

		originalColor = a.Header(rightMin).Color()
		fixupStart = a.Link(rightMin, block.Right)
		if rightMin != a.Link(toRemove, block.Right) {
			parent = path[pathLen-2]
			h.transplant(parent, rightMin, fixupStart)
			path[pathLen-1] = fixupStart
			a.SetLink(rightMin, block.Right, a.Link(toRemove, block.Right))
			a.SetListStart(a.ListStart(a.Link(rightMin, block.Right)), rightMin)
		} else {
			path[pathLen-1] = fixupStart
		}

		parent = path[lenToRemoved-2]
		h.transplant(parent, toRemove, rightMin)
		path[lenToRemoved-1] = rightMin
		a.SetLink(rightMin, block.Left, a.Link(toRemove, block.Left))
		a.SetListStart(a.ListStart(a.Link(rightMin, block.Left)), rightMin)
		a.SetListStart(a.ListStart(rightMin), parent)
		h.paint(rightMin, a.Header(toRemove).Color())
	}

	if originalColor == block.Black {
		h.deleteFixup(fixupStart, path, pathLen)
	}
	h.freeTotal--
	return toRemove
}

// deleteFixup pushes the "extra blackness" left by deleting a black node up
// the tree through sibling recolorings and rotations until a red node absorbs
// it or the root is reached. Mirror cases share one body via the Side flag.
func (h *Heap) deleteFixup(current block.Handle, path []block.Handle, pathLen int) {
	a := h.arena
	for current != h.root && a.Header(current).Color() == block.Black {
		parent := path[pathLen-2]
		dir := block.Left
		if a.Link(parent, block.Right) == current {
			dir = block.Right
		}
		other := dir.Opposite()
		sibling := a.Link(parent, other)

		if a.Header(sibling).Color() == block.Red {
			h.paint(sibling, block.Black)
			h.paint(parent, block.Red)
			h.rotate(dir, parent, path[pathLen-3])
			pathLen++
			path[pathLen-1] = current
			path[pathLen-2] = parent
			path[pathLen-3] = sibling
			sibling = a.Link(parent, other)
		}

		if a.Header(a.Link(sibling, block.Left)).Color() == block.Black &&
			a.Header(a.Link(sibling, block.Right)).Color() == block.Black {
			h.paint(sibling, block.Red)
			current = path[pathLen-2]
			pathLen--
			continue
		}

		if a.Header(a.Link(sibling, other)).Color() == block.Black {
			h.paint(a.Link(sibling, dir), block.Black)
			h.paint(sibling, block.Red)
			h.rotate(other, sibling, parent)
			sibling = a.Link(parent, other)
		}
		h.paint(sibling, a.Header(parent).Color())
		h.paint(parent, block.Black)
		h.paint(a.Link(sibling, other), block.Black)
		h.rotate(dir, parent, path[pathLen-3])
		current = h.root
	}
	h.paint(current, block.Black)
}

// findBestFit searches the tree for the smallest free block of at least key
// bytes and detaches it. An exact size match wins immediately and prefers the
// node's duplicate list, leaving the tree shape alone; otherwise the tightest
// larger candidate seen on the walk is removed with a full tree deletion.
// Returns false when the key exceeds every free block.
func (h *Heap) findBestFit(key int) (block.Handle, bool) {
	a := h.arena

	var stack [maxTreeHeight]block.Handle
	stack[0] = h.nilNode
	pathLen := 1
	lenToBest := 1

	best := h.nilNode
	bestSize := math.MaxInt

	seeker := h.root
	for seeker != h.nilNode {
		seekerSize := a.Header(seeker).Size()
		stack[pathLen] = seeker
		pathLen++

		// An exact match can never be beaten.
		if seekerSize == key {
			best = seeker
			lenToBest = pathLen
			break
		}
		dir := block.Left
		if seekerSize < key {
			dir = block.Right
		}
		if dir == block.Left && seekerSize < bestSize {
			best = seeker
			bestSize = seekerSize
			lenToBest = pathLen
		}
		seeker = a.Link(seeker, dir)
	}

	if best == h.nilNode {
		return block.Null, false
	}
	if a.ListStart(best) != h.nilNode {
		return h.detachDuplicate(best), true
	}
	return h.deleteNode(best, stack[:], lenToBest), true
}

// detachFreeNode removes a specific free block found by address during
// coalescing. Duplicates splice out of their list in O(1); a tree node that
// owns duplicates is replaced by its first duplicate without touching the tree
// shape, using the parent cached in that duplicate; only a lone tree node
// pays for a full deletion.
func (h *Heap) detachFreeNode(n block.Handle) block.Handle {
	a := h.arena

	switch {
	case a.ListStart(n) == h.nilNode:
		// A lone tree node, or a first duplicate whose cached parent happens
		// to be the sentinel: either way an exact-size search detaches exactly
		// this block.
		found, _ := h.findBestFit(a.Header(n).Size())
		return found

	case a.Link(n, block.Left) != h.nilNode && a.ListStart(a.Link(n, block.Prev)) == n:
		// First duplicate in a list: hand the parent cache to the next node
		// and splice out.
		next := a.Link(n, block.Next)
		prev := a.Link(n, block.Prev)
		a.SetListStart(next, a.ListStart(n))
		a.SetListStart(prev, next)
		a.SetLink(next, block.Prev, prev)

	case a.ListStart(n) != block.Null:
		// Tree node owning duplicates: promote the first duplicate into the
		// tree position through the cached parent, in O(1).
		sizeAndBits := a.Header(n)
		treeParent := a.ListStart(a.ListStart(n))
		treeLeft := a.Link(n, block.Left)
		treeRight := a.Link(n, block.Right)

		newHead := a.ListStart(n)
		a.SetHeader(newHead, sizeAndBits)

		// The next duplicate becomes the list's first node and takes over the
		// parent cache.
		a.SetListStart(a.Link(newHead, block.Next), a.ListStart(newHead))
		a.SetListStart(newHead, a.Link(newHead, block.Next))

		a.SetLink(newHead, block.Left, treeLeft)
		a.SetLink(newHead, block.Right, treeRight)
		if treeLeft != h.nilNode {
			a.SetListStart(a.ListStart(treeLeft), newHead)
		}
		if treeRight != h.nilNode {
			a.SetListStart(a.ListStart(treeRight), newHead)
		}

		if treeParent == h.nilNode {
			h.root = newHead
		} else {
			dir := block.Right
			if a.Link(treeParent, block.Left) == n {
				dir = block.Left
			}
			a.SetLink(treeParent, dir, newHead)
		}

	default:
		// Interior or last duplicate: unlink from the doubly linked list.
		prev := a.Link(n, block.Prev)
		next := a.Link(n, block.Next)
		a.SetLink(prev, block.Next, next)
		a.SetLink(next, block.Prev, prev)
	}

	h.freeTotal--
	h.freeBytes -= a.Header(n).Size()
	return n
}
