package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/treealloc/treealloc/block"
)

func TestHeaderEncoding(t *testing.T) {
	h := block.NewHeader(104)

	require.Equal(t, 104, h.Size())
	require.False(t, h.Allocated())
	require.True(t, h.LeftAllocated())
	require.Equal(t, block.Black, h.Color())

	h = h.WithAllocated().Painted(block.Red)
	require.Equal(t, 104, h.Size())
	require.True(t, h.Allocated())
	require.Equal(t, block.Red, h.Color())

	h = h.Painted(block.Black).WithLeftFree()
	require.Equal(t, block.Black, h.Color())
	require.False(t, h.LeftAllocated())
	require.Equal(t, 104, h.Size())
}

func TestSideOpposite(t *testing.T) {
	require.Equal(t, block.Right, block.Left.Opposite())
	require.Equal(t, block.Left, block.Right.Opposite())
	require.Equal(t, block.Left, block.Prev)
	require.Equal(t, block.Right, block.Next)
}

func TestArenaHeaderAndFooter(t *testing.T) {
	a := block.NewArena(make([]byte, 256))

	var b block.Handle = 64
	a.WriteHeader(b, 96)
	require.Equal(t, 96, a.Header(b).Size())

	a.WriteFooter(b)
	require.Equal(t, a.Header(b), a.Footer(b))

	// The footer occupies the last word of the block.
	require.Equal(t, block.Handle(160), a.RightNeighbor(b))
}

func TestArenaLinksAndListStart(t *testing.T) {
	a := block.NewArena(make([]byte, 128))

	var b block.Handle = 0
	a.WriteHeader(b, 64)
	a.SetLink(b, block.Left, 40)
	a.SetLink(b, block.Right, 80)
	a.SetListStart(b, block.Null)

	require.Equal(t, block.Handle(40), a.Link(b, block.Left))
	require.Equal(t, block.Handle(80), a.Link(b, block.Right))
	require.Equal(t, block.Null, a.ListStart(b))
}

func TestArenaLeftNeighbor(t *testing.T) {
	a := block.NewArena(make([]byte, 256))

	a.WriteHeader(0, 96)
	a.WriteFooter(0)
	a.WriteHeader(96, 64)

	require.Equal(t, block.Handle(0), a.LeftNeighbor(96))
}

func TestArenaPayloadWindow(t *testing.T) {
	a := block.NewArena(make([]byte, 128))

	a.WriteHeader(0, 48)
	payload := a.Payload(0)
	require.Len(t, payload, 48-block.HeaderSize)

	payload[0] = 0xAB
	require.Equal(t, byte(0xAB), a.Bytes(block.HeaderSize, 1)[0])
}
