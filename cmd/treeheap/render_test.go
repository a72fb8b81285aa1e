package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/treealloc/treealloc/block"
	"github.com/treealloc/treealloc/heap"
)

func TestRenderTreePlain(t *testing.T) {
	root := &heap.TreeNode{
		Offset: 256, Size: 128, Color: block.Black, BlackHeight: 2,
		Left: &heap.TreeNode{
			Offset: 0, Size: 72, Color: block.Red, BlackHeight: 1, Duplicates: 2,
		},
		Right: &heap.TreeNode{
			Offset: 512, Size: 480, Color: block.Red, BlackHeight: 1,
		},
	}

	out := renderTree(root, newRenderStyles(false), false)

	require.Contains(t, out, "0x100:(128bytes)(bh: 2)")
	require.Contains(t, out, " ├──R:0x200:(480bytes)(bh: 1)")
	require.Contains(t, out, " └──L:0x0:(72bytes)(bh: 1)(+2)")
}

func TestRenderTreeVerbose(t *testing.T) {
	root := &heap.TreeNode{
		Offset: 256, Size: 128, Color: block.Black, BlackHeight: 2,
		Left: &heap.TreeNode{
			Offset: 0, Size: 72, Color: block.Red, BlackHeight: 1,
			Duplicates:       2,
			DuplicateOffsets: []block.Handle{0x48, 0x90},
		},
	}

	out := renderTree(root, newRenderStyles(false), true)

	require.Contains(t, out, "0x100:(128bytes)(bh: 2)")
	require.Contains(t, out, " └──L:0x0:(72bytes)(bh: 1)(+2: 0x48 0x90)")
}

func TestRenderTreeEmpty(t *testing.T) {
	out := renderTree(nil, newRenderStyles(false), false)
	require.Contains(t, out, "tree is empty")
}

func TestRenderHeap(t *testing.T) {
	h := heap.New()
	require.NoError(t, h.Init(make([]byte, 1000)))
	_, err := h.Alloc(100)
	require.NoError(t, err)

	out := renderHeap(h, newRenderStyles(false))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	// One allocated block, one free block, then the sentinel.
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "(112bytes)")
	require.Contains(t, lines[1], "(856bytes)")
	require.Contains(t, lines[2], "SENTINEL")
}
