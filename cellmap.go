package stm

// cellBlockSize is the fixed capacity of a cell block. Blocks are allocated
// on demand and linked together; a block, once allocated, is never moved or
// reallocated, so any pointer into it stays valid for the life of the
// CellMap that owns it.
const cellBlockSize = 100

// cellPair is {from, to}: from is the canonical (original-heap) object
// reference, to is either the same reference (a read-set entry) or the
// reference to a shadow copy the owning transaction made (a write-set
// entry).
type cellPair struct {
	from ObjectRef
	to   ObjectRef
}

type cellBlock struct {
	cells [cellBlockSize]cellPair
	used  int
	next  *cellBlock
}

// CellMap is the low-level associative store mapping an original object
// reference to a stable cell holding either the original or a shadow copy.
// It provides O(1) lookup by object and by cell address, never relocates
// cells, and is visitable by the GC.
//
// The block list is authoritative; the location set and object map are
// derived indices kept in sync with it.
type CellMap struct {
	first, last *cellBlock
	locationSet map[*ObjectRef]struct{}
	objectMap   map[ObjectRef]*ObjectRef
}

// NewCellMap returns an empty CellMap.
func NewCellMap() *CellMap {
	return &CellMap{
		locationSet: make(map[*ObjectRef]struct{}),
		objectMap:   make(map[ObjectRef]*ObjectRef),
	}
}

// AddMapping appends a CellPair to the current block, allocating a new
// block if the current one is full, and returns the stable address of the
// pair's to field.
func (m *CellMap) AddMapping(from, to ObjectRef) *ObjectRef {
	if m.last == nil || m.last.used == cellBlockSize {
		b := &cellBlock{}
		if m.first == nil {
			m.first = b
		} else {
			m.last.next = b
		}
		m.last = b
	}

	pair := &m.last.cells[m.last.used]
	pair.from = from
	pair.to = to
	m.last.used++

	m.locationSet[&pair.to] = struct{}{}
	m.objectMap[from] = &pair.to
	return &pair.to
}

// GetMapping looks up the cell holding the redirection for from, or nil if
// from is not tracked.
func (m *CellMap) GetMapping(from ObjectRef) *ObjectRef {
	return m.objectMap[from]
}

// IsMapped reports whether addr is the address of the to field of some
// CellPair owned by this map — i.e. whether a reference is already one of
// ours.
func (m *CellMap) IsMapped(addr *ObjectRef) bool {
	_, ok := m.locationSet[addr]
	return ok
}

// CommitChanges copies bytes from the shadow object at each pair's to back
// onto the canonical object at from, using the heap's raw block-copy
// primitive. It is meaningful only for a write set; calling it on a read
// set is a no-op because from == to for every pair.
func (m *CellMap) CommitChanges(heap Heap) error {
	for b := m.first; b != nil; b = b.next {
		for i := 0; i < b.used; i++ {
			pair := &b.cells[i]
			if pair.from == pair.to {
				continue
			}
			if err := heap.CopyBlock(pair.from, pair.to); err != nil {
				return err
			}
		}
	}
	return nil
}

// Visit presents &pair.from and &pair.to to the visitor for every live
// CellPair. If the visitor changes any from value (the collector relocated
// the canonical object), the object map is rebuilt from scratch; the
// location set is untouched because cells themselves did not move.
func (m *CellMap) Visit(visit Visitor) {
	changed := false
	for b := m.first; b != nil; b = b.next {
		for i := 0; i < b.used; i++ {
			pair := &b.cells[i]
			before := pair.from
			visit(&pair.from, &pair.to)
			if pair.from != before {
				changed = true
			}
		}
	}
	if changed {
		m.rebuildObjectMap()
	}
}

func (m *CellMap) rebuildObjectMap() {
	objectMap := make(map[ObjectRef]*ObjectRef, len(m.objectMap))
	for b := m.first; b != nil; b = b.next {
		for i := 0; i < b.used; i++ {
			pair := &b.cells[i]
			objectMap[pair.from] = &pair.to
		}
	}
	m.objectMap = objectMap
}

// Len reports the number of live cells, for tests and diagnostics.
func (m *CellMap) Len() int {
	n := 0
	for b := m.first; b != nil; b = b.next {
		n += b.used
	}
	return n
}

// intersects reports whether any from in other is tracked by m. Used by
// ReadSet/WriteSet.Intersects: for every from in other, test GetMapping,
// returning true on the first hit.
func (m *CellMap) intersects(other *CellMap) bool {
	for b := other.first; b != nil; b = b.next {
		for i := 0; i < b.used; i++ {
			if m.GetMapping(b.cells[i].from) != nil {
				return true
			}
		}
	}
	return false
}
