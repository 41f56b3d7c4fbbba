package stm

// WriteSet records the objects a transaction has speculatively mutated.
// Every CellPair's to field references a shadow copy that only the owning
// transaction may mutate until commit.
type WriteSet struct {
	m *CellMap
}

// NewWriteSet returns an empty WriteSet.
func NewWriteSet() *WriteSet {
	return &WriteSet{m: NewCellMap()}
}

// Get mirrors ReadSet.Get: it returns the existing shadow cell for ref, or
// nil if ref has not been written by this transaction.
func (s *WriteSet) Get(ref *ObjectRef) *ObjectRef {
	if s.m.IsMapped(ref) {
		return ref
	}
	return s.m.GetMapping(*ref)
}

// Add records that *ref has been shadowed by shadow and returns the new
// cell.
func (s *WriteSet) Add(ref *ObjectRef, shadow ObjectRef) *ObjectRef {
	return s.m.AddMapping(*ref, shadow)
}

// CommitChanges copies every shadow object back onto its canonical object.
func (s *WriteSet) CommitChanges(heap Heap) error {
	return s.m.CommitChanges(heap)
}

// Intersects reports whether any object this write set redirects has also
// been redirected by other.
func (s *WriteSet) Intersects(other *WriteSet) bool {
	return s.m.intersects(other.m)
}

// Visit presents every live cell in the write set to visit, for GC.
func (s *WriteSet) Visit(visit Visitor) {
	s.m.Visit(visit)
}

// Len reports the number of entries in the write set.
func (s *WriteSet) Len() int {
	return s.m.Len()
}
