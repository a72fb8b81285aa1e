package heap

import (
	"github.com/treealloc/treealloc"
	"github.com/treealloc/treealloc/block"
)

// AddStatistics accumulates this heap's cheap summary counters into stats.
// Everything comes from cached counters, so this is O(1).
func (h *Heap) AddStatistics(stats *treealloc.Statistics) {
	stats.ArenaCount++
	stats.AllocationCount += h.allocCount
	stats.ArenaBytes += h.size
	stats.AllocationBytes += h.size - h.freeBytes - block.NodeWidth
}

// AddDetailedStatistics accumulates free-range counts and size extrema on top
// of the cheap summary. This walks every block in the arena.
func (h *Heap) AddDetailedStatistics(stats *treealloc.DetailedStatistics) {
	stats.ArenaCount++
	stats.ArenaBytes += h.size

	_ = h.VisitAllBlocks(func(info BlockInfo) error {
		if info.Free {
			stats.AddFreeRange(info.Header.Size())
		} else {
			stats.AddAllocation(info.Header.Size())
		}
		return nil
	})
}
