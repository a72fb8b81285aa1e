package heap_test

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/treealloc/treealloc/block"
	"github.com/treealloc/treealloc/heap"
)

func TestPrintHeapJson(t *testing.T) {
	h := newHeap(t, 1000)
	_, err := h.Alloc(100)
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	h.PrintHeapJson(&writer)
	require.NoError(t, writer.Error())

	var doc struct {
		TotalBytes  int
		FreeBytes   int
		FreeBlocks  int
		Allocations int
		Blocks      []struct {
			Offset     int
			TotalBytes int
			State      string
			Color      string
		}
	}
	require.NoError(t, json.Unmarshal(writer.Bytes(), &doc))

	require.Equal(t, 1000, doc.TotalBytes)
	require.Equal(t, 856, doc.FreeBytes)
	require.Equal(t, 1, doc.FreeBlocks)
	require.Equal(t, 1, doc.Allocations)
	require.Len(t, doc.Blocks, 2)
	require.Equal(t, "ALLOCATED", doc.Blocks[0].State)
	require.Equal(t, 112, doc.Blocks[0].TotalBytes)
	require.Equal(t, "FREE", doc.Blocks[1].State)
	require.Equal(t, 112, doc.Blocks[1].Offset)
}

func TestDebugLogAllAllocations(t *testing.T) {
	h := newHeap(t, 1000)
	p1, err := h.Alloc(64)
	require.NoError(t, err)
	p2, err := h.Alloc(100)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard))

	var offsets, sizes []int
	h.DebugLogAllAllocations(logger, func(log *slog.Logger, offset int, size int) {
		log.Debug("allocation", "offset", offset, "size", size)
		offsets = append(offsets, offset)
		sizes = append(sizes, size)
	})

	require.Equal(t, []int{int(p1), int(p2)}, offsets)
	require.Equal(t, []int{64, 104}, sizes)
}

func TestSnapshotTree(t *testing.T) {
	h := newHeap(t, 1000)

	var ptrs [4]heap.Pointer
	for i := range ptrs {
		p, err := h.Alloc(64)
		require.NoError(t, err)
		ptrs[i] = p
	}
	h.Free(ptrs[0])
	h.Free(ptrs[2])

	root := h.SnapshotTree()
	require.NotNil(t, root)
	require.Equal(t, block.Black, root.Color)

	// Two same-size holes collapse onto one tree node with one duplicate; the
	// big tail is the second node.
	count := 0
	for _, n := range []*heap.TreeNode{root, root.Left, root.Right} {
		if n == nil {
			continue
		}
		count++
		switch n.Size {
		case 72:
			require.Equal(t, 1, n.Duplicates)
		default:
			require.Equal(t, 0, n.Duplicates)
		}
	}
	require.Equal(t, 2, count)
}
