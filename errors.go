package treealloc

import "github.com/pkg/errors"

// ErrInvalidRequest is returned when an allocation request is zero-sized or
// exceeds MaxRequest. The caller decides how to proceed; the allocator never
// aborts on a bad request.
var ErrInvalidRequest error = errors.New("allocation request was invalid")

// ErrOutOfMemory is returned when no free block in the arena can satisfy a
// request. The arena never grows, so the only remedy is freeing memory.
var ErrOutOfMemory error = errors.New("no free block can satisfy the request")

// ErrArenaTooSmall is returned from Init if the provided buffer cannot hold
// the tree sentinel plus at least one minimum-sized block.
var ErrArenaTooSmall error = errors.New("arena is too small to initialize a heap")

// ErrPowerOfTwo is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var ErrPowerOfTwo error = errors.New("number must be a power of two")
