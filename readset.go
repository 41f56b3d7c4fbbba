package stm

// ReadSet records the objects a transaction has observed. Every CellPair in
// a ReadSet satisfies from == to: the cell redirects to the same object the
// transaction read, not a copy.
type ReadSet struct {
	m *CellMap
}

// NewReadSet returns an empty ReadSet.
func NewReadSet() *ReadSet {
	return &ReadSet{m: NewCellMap()}
}

// Get returns a cell for ref if the transaction already has one: either ref
// is already one of our cells (the caller reused a previously redirected
// reference), or we've seen the underlying object before. It returns nil if
// ref has not been observed by this transaction.
func (s *ReadSet) Get(ref *ObjectRef) *ObjectRef {
	if s.m.IsMapped(ref) {
		return ref
	}
	return s.m.GetMapping(*ref)
}

// Add inserts a read-set entry for *ref and returns the new cell.
func (s *ReadSet) Add(ref *ObjectRef) *ObjectRef {
	return s.m.AddMapping(*ref, *ref)
}

// Intersects reports whether any object in other's write set has been read
// by this read set.
func (s *ReadSet) Intersects(other *WriteSet) bool {
	return s.m.intersects(other.m)
}

// Visit presents every live cell in the read set to visit, for GC.
func (s *ReadSet) Visit(visit Visitor) {
	s.m.Visit(visit)
}

// Len reports the number of entries in the read set.
func (s *ReadSet) Len() int {
	return s.m.Len()
}
