// Package treealloc provides shared utilities for the treealloc heap
// allocator: alignment math, sentinel errors, allocation statistics
// accumulators, and debug-build validation hooks.
//
// The allocator itself lives in the block and heap subpackages. The heap
// package manages a caller-provided byte arena with a best-fit strategy backed
// by a red-black tree of free blocks, and the block package owns the bit-level
// encoding of block headers within that arena.
package treealloc
