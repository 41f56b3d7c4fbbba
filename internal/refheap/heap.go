// Package refheap is a reference Heap implementation for package stm's own
// tests and for cmd/stmrun's demo scenarios. It is a toy in-process
// stand-in for the managed-object heap and copying collector the STM
// package treats as an external collaborator: a slice-backed object arena
// plus a Collect method that simulates a relocating collection, so the
// STM's GC cooperation protocol has something real to exercise in tests.
package refheap

import (
	"errors"
	"fmt"
	"sync"

	"fortio.org/safecast"

	"github.com/rivervm/stm"
)

// Kind distinguishes object shapes for the Heap.Transactional contract:
// structured objects are subject to transactional protection; callables are
// not, since a caller may rely on invoking them without going through
// redirection.
type Kind int

const (
	KindStruct Kind = iota
	KindCallable
)

// Object is the payload stored at each heap slot: a small, flat field bag.
// Real interpreters store typed, pointer-rich objects; this reference heap
// only needs enough shape to exercise redirection and conflict detection.
type Object struct {
	Kind   Kind
	Fields map[string]int64
}

func (o Object) clone() Object {
	fields := make(map[string]int64, len(o.Fields))
	for k, v := range o.Fields {
		fields[k] = v
	}
	return Object{Kind: o.Kind, Fields: fields}
}

var (
	// ErrOutOfRange is returned when an ObjectRef does not name a live slot.
	ErrOutOfRange = errors.New("refheap: object reference out of range")
)

type slot struct {
	obj Object
}

// Heap is a bump-allocated arena of Objects addressed by 1-based
// stm.ObjectRef values; 0 is reserved for "no object" so it agrees with
// ObjectRef's zero value.
type Heap struct {
	mu    sync.Mutex
	slots []slot
}

// New returns an empty Heap.
func New() *Heap {
	return &Heap{}
}

// Alloc allocates a new object and returns its reference.
func (h *Heap) Alloc(obj Object) stm.ObjectRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slots = append(h.slots, slot{obj: obj})
	return stm.ObjectRef(len(h.slots))
}

// Load returns a copy of the object obj currently refers to.
func (h *Heap) Load(obj stm.ObjectRef) (Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, err := h.slotLocked(obj)
	if err != nil {
		return Object{}, err
	}
	return s.obj, nil
}

// SetField overwrites a single field of the object obj refers to. Callers
// are expected to call this only on a reference already produced by
// RedirectStore, the way an interpreter mutates through a redirected cell.
func (h *Heap) SetField(obj stm.ObjectRef, name string, value int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx, err := h.indexLocked(obj)
	if err != nil {
		return err
	}
	if h.slots[idx].obj.Fields == nil {
		h.slots[idx].obj.Fields = make(map[string]int64, 1)
	}
	h.slots[idx].obj.Fields[name] = value
	return nil
}

// Field reads a single field of the object obj refers to.
func (h *Heap) Field(obj stm.ObjectRef, name string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, err := h.slotLocked(obj)
	if err != nil {
		return 0, err
	}
	return s.obj.Fields[name], nil
}

// CopyObject implements stm.Heap: a shallow copy of obj's own fields,
// allocated as a fresh slot.
func (h *Heap) CopyObject(obj stm.ObjectRef) (stm.ObjectRef, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, err := h.slotLocked(obj)
	if err != nil {
		return 0, err
	}
	h.slots = append(h.slots, slot{obj: s.obj.clone()})
	return stm.ObjectRef(len(h.slots)), nil
}

// CopyBlock implements stm.Heap: dst's storage is overwritten with src's, a
// raw block copy from a shadow object onto its canonical counterpart.
func (h *Heap) CopyBlock(dst, src stm.ObjectRef) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	dstIdx, err := h.indexLocked(dst)
	if err != nil {
		return err
	}
	srcSlot, err := h.slotLocked(src)
	if err != nil {
		return err
	}
	h.slots[dstIdx].obj = srcSlot.obj.clone()
	return nil
}

// Size implements stm.Heap.
func (h *Heap) Size(obj stm.ObjectRef) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, err := h.slotLocked(obj)
	if err != nil {
		return 0
	}
	return 8 + 8*len(s.obj.Fields)
}

// Transactional implements stm.Heap: only KindStruct objects are subject to
// transactional protection.
func (h *Heap) Transactional(obj stm.ObjectRef) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, err := h.slotLocked(obj)
	if err != nil {
		return false
	}
	return s.obj.Kind == KindStruct
}

func (h *Heap) slotLocked(obj stm.ObjectRef) (*slot, error) {
	idx, err := h.indexLocked(obj)
	if err != nil {
		return nil, err
	}
	return &h.slots[idx], nil
}

// indexLocked converts a 1-based ObjectRef to a slots index. ObjectRef is a
// uintptr, wider than int on no platform Go runs today but not guaranteed so
// by the language; safecast.Conv catches the truncation instead of silently
// wrapping an out-of-range reference onto a live slot.
func (h *Heap) indexLocked(obj stm.ObjectRef) (int, error) {
	n, err := safecast.Conv[int](obj)
	if err != nil {
		return 0, fmt.Errorf("%w: %d: %v", ErrOutOfRange, obj, err)
	}
	idx := n - 1
	if idx < 0 || idx >= len(h.slots) {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, obj)
	}
	return idx, nil
}

// Len reports the number of live slots, for tests and diagnostics.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.slots)
}
