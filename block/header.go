package block

const (
	// WordSize is the machine word the encoding is built around. Headers,
	// footers, and node link fields each occupy one word.
	WordSize = 8
	// Alignment is the required multiple for every block size. Because sizes
	// are always 8-byte aligned, the low three bits of the header are free to
	// hold status flags.
	Alignment = 8
	// HeaderSize is the per-block bookkeeping that precedes the client payload.
	HeaderSize = WordSize
	// NodeWidth is the span of the free-tree node overlay: header plus two
	// child links plus the duplicate-list start field.
	NodeWidth = 4 * WordSize
	// MinBlockSize is the smallest block the allocator will ever create: the
	// node overlay plus the trailing footer slot. Splitting never leaves a
	// remainder smaller than this, because such a block could not rejoin the
	// free tree.
	MinBlockSize = NodeWidth + WordSize
	// MaxRequest is the largest size a client may ask for in a single request.
	MaxRequest = 1 << 30
)

// Color is the red-black tree color stored in bit 2 of a free block's header.
type Color uint8

const (
	Black Color = iota
	Red
)

func (c Color) String() string {
	if c == Red {
		return "red"
	}
	return "black"
}

const (
	allocatedBit     Header = 0x1
	leftAllocatedBit Header = 0x2
	colorBit         Header = 0x4
	sizeMask         Header = ^Header(0x7)
)

// Header is the 64-bit word at the start of every block.
type Header uint64

// NewHeader encodes a fresh header for a block of the given total size. The
// left-allocated bit starts set; callers that know the left neighbor is free
// clear it with WithLeftFree.
func NewHeader(size int) Header {
	return Header(size)&sizeMask | leftAllocatedBit
}

// Size reports the block's total size in bytes, header included.
func (h Header) Size() int {
	return int(h & sizeMask)
}

func (h Header) Allocated() bool {
	return h&allocatedBit != 0
}

func (h Header) LeftAllocated() bool {
	return h&leftAllocatedBit != 0
}

func (h Header) Color() Color {
	if h&colorBit != 0 {
		return Red
	}
	return Black
}

func (h Header) WithAllocated() Header {
	return h | allocatedBit
}

func (h Header) WithLeftAllocated() Header {
	return h | leftAllocatedBit
}

func (h Header) WithLeftFree() Header {
	return h &^ leftAllocatedBit
}

func (h Header) Painted(c Color) Header {
	if c == Red {
		return h | colorBit
	}
	return h &^ colorBit
}
