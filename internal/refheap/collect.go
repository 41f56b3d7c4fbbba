package refheap

import (
	"fortio.org/safecast"

	"github.com/rivervm/stm"
)

// Collect performs a simulated copying collection: every object reachable
// from roots, plus every cell a live transaction holds (presented by
// iterate, which is stm.STM.Iterate), is compacted into a fresh arena and
// its ObjectRef is rewritten in place. Objects not reached this way are
// dropped.
//
// Real interpreters walk a much richer root set (globals, stacks, the
// write barrier's remembered set) and follow pointers transitively through
// object fields; this reference heap's Object only holds int64-valued
// fields, so there is no further graph to walk once roots and transaction
// cells are relocated. That simplification is intentional: the heap and
// its collector are a separate concern from the STM itself, and this
// package exists only to give the STM's GC cooperation protocol something
// real to drive in tests.
func (h *Heap) Collect(roots []*stm.ObjectRef, iterate func(stm.Visitor)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	newSlots := make([]slot, 0, len(h.slots))
	remap := make(map[stm.ObjectRef]stm.ObjectRef, len(h.slots))

	relocate := func(ref *stm.ObjectRef) {
		if *ref == 0 {
			return
		}
		if newRef, ok := remap[*ref]; ok {
			*ref = newRef
			return
		}
		n, err := safecast.Conv[int](*ref)
		if err != nil {
			return
		}
		idx := n - 1
		if idx < 0 || idx >= len(h.slots) {
			return
		}
		newSlots = append(newSlots, h.slots[idx])
		newRef := stm.ObjectRef(len(newSlots))
		remap[*ref] = newRef
		*ref = newRef
	}

	for _, r := range roots {
		relocate(r)
	}
	if iterate != nil {
		iterate(func(from, to *stm.ObjectRef) {
			relocate(from)
			relocate(to)
		})
	}

	h.slots = newSlots
}
