package block

import (
	"encoding/binary"
	"math"
)

// Handle is a byte offset of a block header within the arena. Handles stand in
// for pointers everywhere in the allocator so that bounds can be asserted and
// the arena can be relocated without invalidating state.
type Handle uint64

// Null is the absent-handle value. Offset zero is a valid block, so the
// all-ones pattern marks "no block". Note that Null is distinct from the
// tree's sentinel leaf, which is a real arena-resident block.
const Null Handle = math.MaxUint64

// Add steps the handle forward by a byte count. Combined with header sizes
// this is the entire address arithmetic of the allocator.
func (b Handle) Add(bytes int) Handle {
	return b + Handle(bytes)
}

// Arena wraps the caller-provided byte range the heap lives in. All block
// metadata is stored in-band inside this range; the arena itself holds no
// auxiliary tables. Link fields are stored as little-endian Handle words
// inside free blocks.
type Arena struct {
	data []byte
}

// NewArena wraps buf. The caller is responsible for truncating buf to an
// aligned length first; the arena does no rounding of its own.
func NewArena(buf []byte) *Arena {
	return &Arena{data: buf}
}

func (a *Arena) Size() int {
	return len(a.data)
}

func (a *Arena) word(off Handle) uint64 {
	return binary.LittleEndian.Uint64(a.data[off:])
}

func (a *Arena) setWord(off Handle, value uint64) {
	binary.LittleEndian.PutUint64(a.data[off:], value)
}

func (a *Arena) Header(b Handle) Header {
	return Header(a.word(b))
}

func (a *Arena) SetHeader(b Handle, h Header) {
	a.setWord(b, uint64(h))
}

// WriteHeader stamps a fresh header of the given total size. Fresh headers
// always claim the left neighbor is allocated; coalescing corrects the right
// neighbor's view lazily when a block is freed.
func (a *Arena) WriteHeader(b Handle, size int) {
	a.SetHeader(b, NewHeader(size))
}

// WriteFooter copies the block's header into its last word. Only free blocks
// carry a footer; on an allocated block that word belongs to the client.
func (a *Arena) WriteFooter(b Handle) {
	h := a.Header(b)
	a.setWord(b.Add(h.Size()-WordSize), uint64(h))
}

// Footer reads the block's trailing footer word.
func (a *Arena) Footer(b Handle) Header {
	return Header(a.word(b.Add(a.Header(b).Size() - WordSize)))
}

// Link reads one of the two node link words. While the block is a tree node
// these are its left/right children; while it is a duplicate-list node they
// are its prev/next neighbors.
func (a *Arena) Link(b Handle, s Side) Handle {
	return Handle(a.word(b.Add(WordSize + int(s)*WordSize)))
}

func (a *Arena) SetLink(b Handle, s Side, to Handle) {
	a.setWord(b.Add(WordSize+int(s)*WordSize), uint64(to))
}

// ListStart reads the duplicate-list start word. On a tree node it points to
// the first same-size duplicate (or the sentinel when there is none); on the
// first node of a duplicate list it caches the owning tree node's parent.
func (a *Arena) ListStart(b Handle) Handle {
	return Handle(a.word(b.Add(3 * WordSize)))
}

func (a *Arena) SetListStart(b Handle, to Handle) {
	a.setWord(b.Add(3*WordSize), uint64(to))
}

// RightNeighbor returns the block immediately after b in address order.
func (a *Arena) RightNeighbor(b Handle) Handle {
	return b.Add(a.Header(b).Size())
}

// LeftNeighbor locates the block immediately before b by reading the left
// block's footer, the word just before b's header. Valid only while the left
// neighbor is free, which is the only time the caller may ask.
func (a *Arena) LeftNeighbor(b Handle) Handle {
	leftSize := Header(a.word(b.Add(-WordSize))).Size()
	return b.Add(-leftSize)
}

// Payload returns the client-usable bytes of an allocated block: everything
// after the header, footer slot included.
func (a *Arena) Payload(b Handle) []byte {
	size := a.Header(b).Size()
	return a.data[b.Add(HeaderSize):b.Add(size)]
}

// Bytes exposes a raw window of the arena. The heap uses this to move client
// data during reallocation.
func (a *Arena) Bytes(off Handle, length int) []byte {
	return a.data[off:off.Add(length)]
}
