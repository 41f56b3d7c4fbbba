package stm

// ObjectRef is an opaque, word-sized handle to a heap object. Its bit
// pattern may be rewritten by a collection; a caller must never cache it
// across a safepoint without re-resolving it through the cell that produced
// it. The zero value denotes no object.
type ObjectRef uintptr

// Visitor is presented with the address of the from and to fields of every
// live CellPair during GC visitation. A visitor that relocates an object
// writes the new ObjectRef through the pointer it was given.
type Visitor func(from, to *ObjectRef)

// Heap is implemented by the collaborator that owns managed object storage
// and its collector. The STM package requires only CopyObject, CopyBlock,
// Size, and Transactional from it — EnterAllocationScope/EnterCollectionScope
// and their Leave counterparts (see STM) run in the other direction: they
// are operations the STM exposes for a Heap's allocator and collector to
// call around their own allocation and collection paths.
type Heap interface {
	// CopyObject returns a shallow copy of obj's own fields, suitable for
	// use as a write-set shadow. Transitive reachability is the heap's
	// concern, not the STM's.
	CopyObject(obj ObjectRef) (ObjectRef, error)

	// CopyBlock overwrites dst's storage with src's storage, preserving
	// dst's object size. Used only to publish a write-set shadow back onto
	// its canonical object at commit time.
	CopyBlock(dst, src ObjectRef) error

	// Size reports the size in bytes of obj's own storage.
	Size(obj ObjectRef) int

	// Transactional reports whether obj is of a type subject to
	// transactional protection. Callables and other non-structured objects
	// return false and pass through redirection unchanged.
	Transactional(obj ObjectRef) bool
}
