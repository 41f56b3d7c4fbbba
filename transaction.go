package stm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// txState is the transaction lifecycle: Active -> Committing -> Finalized,
// passing through Aborted between Committing and Finalized when the
// transaction was aborted. A peer's Abort sets only the aborted flag; the
// state changes inside CommitTransaction. No state is re-entered.
type txState int32

const (
	txActive txState = iota
	txCommitting
	txAborted
	txFinalized
)

// Transaction is the per-thread transactional context: it owns a ReadSet
// and a WriteSet, arbitrates load/store redirection, performs conflict
// detection against peers, copies the write set back to the heap on
// commit, and participates in the GC safepoint protocol.
//
// Every exported method is called exactly on the goroutine that owns the
// transaction, except Lock, Unlock, HasConflicts, Abort, and ID, which a
// committer calls against its peers.
type Transaction struct {
	// id is used only for diagnostics (logging, test failure messages); it
	// plays no role in the commit algorithm.
	id string

	heap Heap

	aborted atomic.Bool
	state   atomic.Int32

	readSet  *ReadSet
	writeSet *WriteSet

	// failure records why Abort was called, when it was triggered by a
	// heap error rather than a peer conflict, so CommitTransaction can
	// report it instead of a bare "aborted".
	failure error

	// mu guards set additions (step 5 of RedirectLoad/RedirectStore) and is
	// also held by a committer while inspecting this transaction's sets
	// for conflicts.
	mu sync.Mutex

	// gcMu is held by the owning goroutine for the entire lifetime the
	// transaction counts as "running" for the GC safepoint protocol. It is
	// released only while paused at a safepoint or, briefly, at the start
	// of CommitTransaction.
	gcMu sync.Mutex

	// resume is the one-shot semaphore a collector signals to wake a
	// mutator paused in pauseForGC.
	resume chan struct{}
}

func newTransaction(heap Heap) *Transaction {
	tx := &Transaction{
		id:       uuid.NewString(),
		heap:     heap,
		readSet:  NewReadSet(),
		writeSet: NewWriteSet(),
		resume:   make(chan struct{}, 1),
	}
	return tx
}

// ID returns the transaction's diagnostic identifier.
func (tx *Transaction) ID() string { return tx.id }

// transition moves the transaction to state next. When debug is true it
// panics on a transition out of Finalized or back into Active from any
// other state; other transitions are not checked.
func (tx *Transaction) transition(next txState, debug bool) {
	if debug {
		cur := txState(tx.state.Load())
		if cur == txFinalized {
			panic("stm: transition out of Finalized state")
		}
		if next == txActive && cur != txActive {
			panic("stm: re-entry into Active state")
		}
	}
	tx.state.Store(int32(next))
}

// RedirectLoad implements spec step 4.3: non-protected types pass through
// unchanged; an aborted transaction signals terminate; a write-set hit
// gives read-your-writes; otherwise the object is added to (or already
// found in) the read set.
func (tx *Transaction) RedirectLoad(obj ObjectRef) (ObjectRef, bool) {
	if !tx.heap.Transactional(obj) {
		return obj, false
	}
	if tx.aborted.Load() {
		return obj, true
	}
	if cell := tx.writeSet.Get(&obj); cell != nil {
		return *cell, false
	}
	if cell := tx.readSet.Get(&obj); cell != nil {
		return *cell, false
	}

	tx.mu.Lock()
	cell := tx.readSet.Add(&obj)
	tx.mu.Unlock()
	return *cell, false
}

// RedirectStore implements the store-side counterpart: a write-set hit
// returns the existing shadow; otherwise a fresh shadow copy is allocated
// and recorded in the write set.
func (tx *Transaction) RedirectStore(obj ObjectRef) (ObjectRef, bool) {
	if !tx.heap.Transactional(obj) {
		return obj, false
	}
	if tx.aborted.Load() {
		return obj, true
	}
	if cell := tx.writeSet.Get(&obj); cell != nil {
		return *cell, false
	}

	shadow, err := tx.heap.CopyObject(obj)
	if err != nil {
		tx.failure = fmt.Errorf("%w: %v", ErrShadowAllocationFailed, err)
		tx.Abort()
		return obj, true
	}

	tx.mu.Lock()
	cell := tx.writeSet.Add(&obj, shadow)
	tx.mu.Unlock()
	return *cell, false
}

// HasConflicts reports whether this transaction has read or written
// anything other has written. A committer calls P.HasConflicts(T) to
// decide whether peer P must be aborted in favor of committer T.
func (tx *Transaction) HasConflicts(other *Transaction) bool {
	if tx.readSet.Intersects(other.writeSet) {
		return true
	}
	if tx.writeSet.Intersects(other.writeSet) {
		return true
	}
	return false
}

// CommitHeap copies the write set back onto the canonical heap. The caller
// must hold the global commit mutex and have every peer either locked or
// blocked before its critical section; see STM.CommitTransaction.
func (tx *Transaction) CommitHeap() error {
	return tx.writeSet.CommitChanges(tx.heap)
}

// Abort marks the transaction aborted. The next RedirectLoad/RedirectStore
// call on the victim observes it and signals terminate.
func (tx *Transaction) Abort() {
	tx.aborted.Store(true)
}

// IsAborted reports whether Abort has been called.
func (tx *Transaction) IsAborted() bool {
	return tx.aborted.Load()
}

// Lock and Unlock guard this transaction's sets against a committer's
// conflict inspection; the owning goroutine also holds this lock across
// Add in RedirectLoad/RedirectStore.
func (tx *Transaction) Lock()   { tx.mu.Lock() }
func (tx *Transaction) Unlock() { tx.mu.Unlock() }

// Visit presents every cell in both sets to the visitor, for GC.
func (tx *Transaction) Visit(visit Visitor) {
	tx.readSet.Visit(visit)
	tx.writeSet.Visit(visit)
}

// pauseForGC blocks until a collector in progress finishes. The caller must
// hold gcMu on entry and will hold it again on return.
func (tx *Transaction) pauseForGC() {
	tx.gcMu.Unlock()
	<-tx.resume
	tx.gcMu.Lock()
}
