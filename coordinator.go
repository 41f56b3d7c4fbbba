package stm

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type ctxKey struct{}

func fromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(ctxKey{}).(*Transaction)
	return tx, ok
}

// STM is the process-wide (per-isolate) coordinator: it tracks live
// transactions, serializes commits, mediates allocation and collection
// scopes between mutator goroutines and the collector, and exposes the
// redirection entry points an interpreter calls from generated code.
type STM struct {
	heap   Heap
	config Config
	policy AbortPolicy
	logger *slog.Logger

	// Lock order, strictly: commitMu, transactionsMu, each Transaction's
	// gcMu (in list order), each Transaction's mu (in list order), heapMu.
	// needGC participates via atomic CAS only, outside this order.
	commitMu       sync.Mutex
	transactionsMu sync.Mutex
	heapMu         sync.Mutex

	transactions []*Transaction

	needGC atomic.Bool
	gcGate atomic.Pointer[chan struct{}]

	commitSeq atomic.Uint64
	commits   atomic.Uint64
	aborts    atomic.Uint64
}

// New returns an STM coordinating transactions over heap, configured by
// config.
func New(heap Heap, config Config) *STM {
	return &STM{
		heap:   heap,
		config: config,
		policy: config.abortPolicy(),
		logger: slog.Default(),
	}
}

// Stats reports the aggregate commit/abort counters a worker reports on
// shutdown.
type Stats struct {
	Commits uint64
	Aborts  uint64
}

// Stats returns a snapshot of the commit/abort counters.
func (s *STM) Stats() Stats {
	return Stats{Commits: s.commits.Load(), Aborts: s.aborts.Load()}
}

// StartTransaction allocates a Transaction, registers it in the global
// transaction list, and returns a context carrying it as the calling
// goroutine's current transaction. If the STM is disabled, ctx is returned
// unchanged and RedirectLoad/RedirectStore/CommitTransaction become no-ops
// for it.
func (s *STM) StartTransaction(ctx context.Context) context.Context {
	if !s.config.Enabled {
		return ctx
	}

	tx := newTransaction(s.heap)
	tx.gcMu.Lock() // counts as running for the GC safepoint protocol

	s.transactionsMu.Lock()
	s.transactions = append(s.transactions, tx)
	s.transactionsMu.Unlock()

	return context.WithValue(ctx, ctxKey{}, tx)
}

// CommitTransaction runs the commit algorithm for the context's current
// transaction: it aborts any peer that has read or written an object this
// transaction wrote, then publishes the write set to the heap. It returns
// true if the transaction's writes were published to the heap, false if it
// must be retried.
func (s *STM) CommitTransaction(ctx context.Context) (bool, error) {
	if !s.config.Enabled {
		return true, nil
	}

	tx, ok := fromContext(ctx)
	if !ok {
		return false, ErrNoActiveTransaction
	}
	if txState(tx.state.Load()) == txFinalized {
		return false, ErrTransactionFinalized
	}

	// Diagnostic abort knob: independent of conflict detection, applied
	// before the ordinary aborted check so it is handled by the same code
	// path as a peer-initiated abort.
	seq := s.commitSeq.Add(1)
	if s.policy.ShouldForceAbort(seq) {
		tx.Abort()
	}

	tx.transition(txCommitting, s.config.Debug)

	tx.gcMu.Unlock()
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.transactionsMu.Lock()
	defer s.transactionsMu.Unlock()
	tx.gcMu.Lock()

	committed := false
	var commitErr error

	if tx.IsAborted() {
		tx.transition(txAborted, s.config.Debug)
		s.aborts.Add(1)
		s.logger.Debug("stm: transaction aborted before commit", "tx", tx.ID())
		commitErr = tx.failure
	} else {
		peers := s.peersLocked(tx)
		for _, p := range peers {
			p.Lock()
		}
		for _, p := range peers {
			if p.HasConflicts(tx) {
				p.Abort()
				s.logger.Debug("stm: aborting peer on conflict", "winner", tx.ID(), "loser", p.ID())
			}
		}
		commitErr = tx.CommitHeap()
		for i := len(peers) - 1; i >= 0; i-- {
			peers[i].Unlock()
		}

		if commitErr == nil {
			committed = true
			s.commits.Add(1)
		}
	}

	tx.transition(txFinalized, s.config.Debug)
	s.deregisterLocked(tx)
	return committed, commitErr
}

// peersLocked returns every transaction other than tx, in list order.
// Caller must hold transactionsMu.
func (s *STM) peersLocked(tx *Transaction) []*Transaction {
	peers := make([]*Transaction, 0, len(s.transactions))
	for _, p := range s.transactions {
		if p != tx {
			peers = append(peers, p)
		}
	}
	return peers
}

// deregisterLocked removes tx from the transaction list. Caller must hold
// transactionsMu.
func (s *STM) deregisterLocked(tx *Transaction) {
	for i, p := range s.transactions {
		if p == tx {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return
		}
	}
}

// RedirectLoad dispatches to the calling goroutine's current transaction,
// or returns obj unchanged if ctx carries none (including when the STM is
// disabled).
func (s *STM) RedirectLoad(ctx context.Context, obj ObjectRef) (ObjectRef, bool) {
	if !s.config.Enabled {
		return obj, false
	}
	tx, ok := fromContext(ctx)
	if !ok {
		return obj, false
	}
	return tx.RedirectLoad(obj)
}

// RedirectStore dispatches to the calling goroutine's current transaction,
// or returns obj unchanged if ctx carries none.
func (s *STM) RedirectStore(ctx context.Context, obj ObjectRef) (ObjectRef, bool) {
	if !s.config.Enabled {
		return obj, false
	}
	tx, ok := fromContext(ctx)
	if !ok {
		return obj, false
	}
	return tx.RedirectStore(obj)
}

// Iterate visits every live transaction's cells so the collector can update
// from/to references in place. The caller must be the goroutine that called
// EnterCollectionScope and received true, and must call this between Enter
// and Leave — the transaction list is guaranteed frozen for that window.
func (s *STM) Iterate(visit Visitor) {
	for _, tx := range s.transactions {
		tx.Visit(visit)
	}
}

// EnterAllocationScope brackets a heap allocation: it first pauses the
// caller at a GC safepoint if a collection is in flight, then acquires the
// heap mutex enforcing single-allocator semantics.
func (s *STM) EnterAllocationScope(ctx context.Context) {
	s.pauseForGC(ctx)
	s.heapMu.Lock()
}

// LeaveAllocationScope releases the heap mutex acquired by
// EnterAllocationScope.
func (s *STM) LeaveAllocationScope() {
	s.heapMu.Unlock()
}

// pauseForGC blocks the caller until any collection currently in flight
// finishes. If ctx carries a transaction, the transaction's own gc mutex is
// released for the duration, so the collector can observe it at a
// safepoint; otherwise the caller waits on the current collection's gate.
func (s *STM) pauseForGC(ctx context.Context) {
	tx, hasTx := fromContext(ctx)
	for s.needGC.Load() {
		if hasTx {
			tx.pauseForGC()
			continue
		}
		if gate := s.gcGate.Load(); gate != nil {
			<-*gate
		}
	}
}

// EnterCollectionScope attempts to claim the right to collect. On success
// it freezes the transaction list and waits for every live transaction to
// reach a safepoint, then returns true: the caller may run its collector
// and call Iterate. On failure, another goroutine is already collecting;
// this goroutine instead waits for that collection to finish and returns
// false, telling the caller to skip its own collection attempt.
func (s *STM) EnterCollectionScope() bool {
	if !s.needGC.CompareAndSwap(false, true) {
		if gate := s.gcGate.Load(); gate != nil {
			<-*gate
		}
		return false
	}

	gate := make(chan struct{})
	s.gcGate.Store(&gate)

	s.transactionsMu.Lock()
	for _, tx := range s.transactions {
		tx.gcMu.Lock()
	}
	return true
}

// LeaveCollectionScope clears the collection-in-progress flag, releases
// every transaction's gc mutex, wakes every transaction paused in
// pauseForGC, and releases the transaction list.
func (s *STM) LeaveCollectionScope() {
	s.needGC.Store(false)

	for _, tx := range s.transactions {
		tx.gcMu.Unlock()
	}
	for _, tx := range s.transactions {
		select {
		case tx.resume <- struct{}{}:
		default:
		}
	}

	if gate := s.gcGate.Load(); gate != nil {
		close(*gate)
	}
	s.gcGate.Store(nil)

	s.transactionsMu.Unlock()
}
