package script

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"

	"github.com/treealloc/treealloc/heap"
)

type liveBlock struct {
	ptr  heap.Pointer
	size int
}

// Runner replays a script's requests against a heap, tracking each block id's
// live allocation, filling payloads with an id-derived byte pattern, and
// verifying the pattern again before every release or resize. It also records
// the peak payload load and the peak free-node count seen across the run.
type Runner struct {
	heap   *heap.Heap
	blocks *swiss.Map[int32, liveBlock]

	validateEvery int
	opsRun        int

	inUse         int
	peakInUse     int
	peakFreeNodes int
}

// Option configures a Runner.
type Option func(*Runner)

// WithValidateEvery makes the runner run a full heap validation after every
// nth request. Zero, the default, validates only at the end of Run.
func WithValidateEvery(n int) Option {
	return func(r *Runner) {
		r.validateEvery = n
	}
}

// NewRunner prepares a runner for replaying s against h.
func NewRunner(h *heap.Heap, s *Script, opts ...Option) *Runner {
	r := &Runner{
		heap:   h,
		blocks: swiss.NewMap[int32, liveBlock](uint32(s.IDCount) + 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays every request in order and validates the heap once at the end,
// or as often as WithValidateEvery asked for.
func (r *Runner) Run(s *Script) error {
	for i := range s.Requests {
		if err := r.Step(s.Requests[i]); err != nil {
			return err
		}
	}
	return errors.Wrap(r.heap.Validate(), "heap invalid after script")
}

// Step executes one request.
func (r *Runner) Step(req Request) error {
	var err error
	switch req.Op {
	case OpAlloc:
		err = r.alloc(req)
	case OpRealloc:
		err = r.realloc(req)
	case OpFree:
		err = r.free(req)
	}
	if err != nil {
		return err
	}

	if r.inUse > r.peakInUse {
		r.peakInUse = r.inUse
	}
	if free := r.heap.TotalFreeBlocks(); free > r.peakFreeNodes {
		r.peakFreeNodes = free
	}

	r.opsRun++
	if r.validateEvery > 0 && r.opsRun%r.validateEvery == 0 {
		return errors.Wrapf(r.heap.Validate(), "heap invalid after line %d", req.Lineno)
	}
	return nil
}

func (r *Runner) alloc(req Request) error {
	if _, ok := r.blocks.Get(req.ID); ok {
		return errors.Newf("line %d: block %d allocated twice", req.Lineno, req.ID)
	}

	p, err := r.heap.Alloc(req.Size)
	if err != nil {
		return errors.Wrapf(err, "line %d", req.Lineno)
	}

	fill(r.heap.Bytes(p)[:req.Size], fillByte(req.ID))
	r.blocks.Put(req.ID, liveBlock{ptr: p, size: req.Size})
	r.inUse += req.Size
	return nil
}

func (r *Runner) realloc(req Request) error {
	old, ok := r.blocks.Get(req.ID)
	if !ok {
		return errors.Newf("line %d: resize of unknown block %d", req.Lineno, req.ID)
	}
	if err := verify(r.heap.Bytes(old.ptr)[:old.size], fillByte(req.ID)); err != nil {
		return errors.Wrapf(err, "line %d: block %d before resize", req.Lineno, req.ID)
	}

	p, err := r.heap.Realloc(old.ptr, req.Size)
	if err != nil {
		return errors.Wrapf(err, "line %d", req.Lineno)
	}

	// The allocator must preserve the leading bytes across a move.
	kept := old.size
	if req.Size < kept {
		kept = req.Size
	}
	if err := verify(r.heap.Bytes(p)[:kept], fillByte(req.ID)); err != nil {
		return errors.Wrapf(err, "line %d: block %d after resize", req.Lineno, req.ID)
	}

	fill(r.heap.Bytes(p)[:req.Size], fillByte(req.ID))
	r.blocks.Put(req.ID, liveBlock{ptr: p, size: req.Size})
	r.inUse += req.Size - old.size
	return nil
}

func (r *Runner) free(req Request) error {
	old, ok := r.blocks.Get(req.ID)
	if !ok {
		return errors.Newf("line %d: free of unknown block %d", req.Lineno, req.ID)
	}
	if err := verify(r.heap.Bytes(old.ptr)[:old.size], fillByte(req.ID)); err != nil {
		return errors.Wrapf(err, "line %d: block %d before free", req.Lineno, req.ID)
	}

	r.heap.Free(old.ptr)
	r.blocks.Delete(req.ID)
	r.inUse -= old.size
	return nil
}

// PeakBytes reports the largest total payload load the script reached.
func (r *Runner) PeakBytes() int {
	return r.peakInUse
}

// PeakFreeNodes reports the largest free-block count the heap reached.
func (r *Runner) PeakFreeNodes() int {
	return r.peakFreeNodes
}

// LiveBlocks reports how many script ids still hold an allocation.
func (r *Runner) LiveBlocks() int {
	return r.blocks.Count()
}

func fillByte(id int32) byte {
	return byte(id)
}

func fill(payload []byte, b byte) {
	for i := range payload {
		payload[i] = b
	}
}

func verify(payload []byte, b byte) error {
	for i := range payload {
		if payload[i] != b {
			return errors.Newf("payload byte %d is %#x, want %#x", i, payload[i], b)
		}
	}
	return nil
}
