package stm

import (
	"errors"
	"sync"
)

var errTestEvent = errors.New("stm: test event error")

// fakeHeap is a minimal Heap for this package's own unit tests: an
// in-memory table of int values addressed by ObjectRef, every object
// transactional unless marked otherwise. internal/refheap is the fuller
// reference implementation; this one stays local to keep these tests free of
// an import cycle back to the package under test.
type fakeHeap struct {
	mu             sync.Mutex
	values         map[ObjectRef]int
	nontx          map[ObjectRef]bool
	next           ObjectRef
	copyBlockCalls int
	copyObjectErr  error
}

func newFakeHeap() *fakeHeap {
	return &fakeHeap{
		values: make(map[ObjectRef]int),
		nontx:  make(map[ObjectRef]bool),
	}
}

func (h *fakeHeap) alloc(value int) ObjectRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.values[h.next] = value
	return h.next
}

func (h *fakeHeap) markNonTransactional(obj ObjectRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nontx[obj] = true
}

func (h *fakeHeap) get(obj ObjectRef) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.values[obj]
}

func (h *fakeHeap) set(obj ObjectRef, value int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values[obj] = value
}

func (h *fakeHeap) CopyObject(obj ObjectRef) (ObjectRef, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.copyObjectErr != nil {
		return 0, h.copyObjectErr
	}
	h.next++
	h.values[h.next] = h.values[obj]
	return h.next, nil
}

func (h *fakeHeap) CopyBlock(dst, src ObjectRef) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.copyBlockCalls++
	h.values[dst] = h.values[src]
	return nil
}

func (h *fakeHeap) Size(obj ObjectRef) int {
	return 8
}

func (h *fakeHeap) Transactional(obj ObjectRef) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.nontx[obj]
}
