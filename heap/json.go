package heap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// HeapJsonData populates a json object with the heap's summary counters and a
// block-by-block map of the arena. Free blocks also report their tree color.
func (h *Heap) HeapJsonData(json jwriter.ObjectState) {
	json.Name("TotalBytes").Int(h.size)
	json.Name("FreeBytes").Int(h.freeBytes)
	json.Name("FreeBlocks").Int(h.freeTotal)
	json.Name("Allocations").Int(h.allocCount)

	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = h.VisitAllBlocks(func(info BlockInfo) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Offset").Int(int(info.Handle))
		obj.Name("TotalBytes").Int(info.Header.Size())
		if info.Free {
			obj.Name("State").String("FREE")
			obj.Name("Color").String(info.Header.Color().String())
		} else {
			obj.Name("State").String("ALLOCATED")
		}
		return nil
	})
}

// PrintHeapJson writes the full heap map as a standalone json document.
func (h *Heap) PrintHeapJson(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	h.HeapJsonData(objState)
}
