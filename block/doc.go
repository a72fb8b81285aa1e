// Package block owns the in-band binary encoding of heap blocks.
//
// Every block in the arena begins with a single 64-bit header word. The low
// three bits carry status flags and the remaining bits carry the block's total
// size (header included), which is always a multiple of the 8-byte alignment:
//
//	bit 0: allocated
//	bit 1: left neighbor allocated
//	bit 2: color (red/black, meaningful only while the block is free and
//	       linked into the free tree)
//
// While a block is free, the three words after the header overlay the free
// tree's node fields (left link, right link, list start) and the block's last
// word holds a footer copy of the header so the block to its right can find
// its boundary in O(1). While a block is allocated, everything after the
// header belongs to the client; the allocator reconstructs left-neighbor
// information from the flag bit in the following block's header instead of
// maintaining footers on allocated blocks.
//
// All navigation is done through Handle values, byte offsets into the arena,
// rather than raw pointers. The Arena type performs the word-level reads and
// writes behind that abstraction.
package block
