package stm

import "testing"

func TestCellMapAddAndGet(t *testing.T) {
	m := NewCellMap()
	if m.Len() != 0 {
		t.Fatalf("new CellMap: Len() = %d, want 0", m.Len())
	}

	cell := m.AddMapping(1, 2)
	if *cell != 2 {
		t.Fatalf("AddMapping: *cell = %d, want 2", *cell)
	}
	if got := m.GetMapping(1); got == nil || *got != 2 {
		t.Fatalf("GetMapping(1) = %v, want pointer to 2", got)
	}
	if got := m.GetMapping(99); got != nil {
		t.Fatalf("GetMapping(99) = %v, want nil", got)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}

func TestCellMapIsMapped(t *testing.T) {
	m := NewCellMap()
	cell := m.AddMapping(1, 2)
	if !m.IsMapped(cell) {
		t.Fatal("IsMapped(cell) = false, want true for a cell returned by AddMapping")
	}
	var other ObjectRef = 2
	if m.IsMapped(&other) {
		t.Fatal("IsMapped(&other) = true, want false for an unrelated address")
	}
}

func TestCellMapSpansBlocks(t *testing.T) {
	m := NewCellMap()
	const n = cellBlockSize*2 + 7
	cells := make([]*ObjectRef, n)
	for i := 0; i < n; i++ {
		cells[i] = m.AddMapping(ObjectRef(i+1), ObjectRef(i+1))
	}
	if m.Len() != n {
		t.Fatalf("Len() = %d, want %d", m.Len(), n)
	}
	// cells allocated in earlier blocks must stay at the same address once
	// later blocks are appended.
	for i := 0; i < n; i++ {
		if got := m.GetMapping(ObjectRef(i + 1)); got != cells[i] {
			t.Fatalf("cell %d relocated: got %p, want %p", i, got, cells[i])
		}
	}
}

func TestCellMapCommitChanges(t *testing.T) {
	h := newFakeHeap()
	canonical := h.alloc(1)
	shadow := h.alloc(99)

	m := NewCellMap()
	m.AddMapping(canonical, shadow)
	if err := m.CommitChanges(h); err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	if h.values[canonical] != 99 {
		t.Fatalf("canonical value = %d, want 99", h.values[canonical])
	}
}

func TestCellMapCommitChangesSkipsIdentityPairs(t *testing.T) {
	h := newFakeHeap()
	canonical := h.alloc(1)

	m := NewCellMap()
	m.AddMapping(canonical, canonical) // a read-set entry: from == to
	h.copyBlockCalls = 0
	if err := m.CommitChanges(h); err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	if h.copyBlockCalls != 0 {
		t.Fatalf("CommitChanges called CopyBlock %d times on an identity pair, want 0", h.copyBlockCalls)
	}
}

func TestCellMapVisitRebuildsObjectMapOnRelocation(t *testing.T) {
	m := NewCellMap()
	m.AddMapping(1, 10)
	m.AddMapping(2, 20)

	m.Visit(func(from, to *ObjectRef) {
		if *from == 1 {
			*from = 100
		}
	})

	if m.GetMapping(1) != nil {
		t.Fatal("GetMapping(1) should be nil after relocation to 100")
	}
	if got := m.GetMapping(100); got == nil || *got != 10 {
		t.Fatalf("GetMapping(100) = %v, want pointer to 10", got)
	}
	if got := m.GetMapping(2); got == nil || *got != 20 {
		t.Fatalf("GetMapping(2) = %v, want pointer to 20", got)
	}
}

func TestCellMapIntersects(t *testing.T) {
	a := NewCellMap()
	a.AddMapping(1, 1)
	a.AddMapping(2, 2)

	b := NewCellMap()
	b.AddMapping(3, 30)

	if a.intersects(b) {
		t.Fatal("disjoint maps: intersects = true, want false")
	}

	b.AddMapping(2, 20)
	if !a.intersects(b) {
		t.Fatal("maps sharing object 2: intersects = false, want true")
	}
}
