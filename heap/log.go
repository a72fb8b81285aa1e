package heap

import (
	"golang.org/x/exp/slog"

	"github.com/treealloc/treealloc/block"
)

// DebugLogAllAllocations calls logFunc for every live allocation in address
// order, passing the payload offset and payload size a client sees.
func (h *Heap) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, offset int, size int)) {
	_ = h.VisitAllBlocks(func(info BlockInfo) error {
		if !info.Free {
			logFunc(logger, int(h.pointer(info.Handle)), info.Header.Size()-block.HeaderSize)
		}
		return nil
	})
}
