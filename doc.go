/*
Package stm provides Software Transactional Memory for a managed-object heap.
It is the concurrency layer a dynamic-language runtime sits a worker pool on
top of: closures drawn from a shared queue run inside a transaction that
observes a consistent snapshot of the heap and either commits atomically or
is discarded and retried.

Unlike a plain in-memory STM (compare-and-swap on a handful of Vars), this
package coordinates with a relocating, stop-the-world collector: every live
transaction's read and write sets must be visitable and patchable by the
collector, and mutators must pause at a safepoint without deadlocking the
commit protocol.

To begin, construct an STM over a Heap implementation:

	s := stm.New(heap, stm.Config{Enabled: true, ThreadCount: 4})

A worker drives one transaction at a time through a context:

	ctx = s.StartTransaction(ctx)
	obj, terminate := s.RedirectLoad(ctx, obj)
	if terminate {
		return // peer aborted us; unwind without further heap mutation
	}
	obj, terminate = s.RedirectStore(ctx, obj)
	... mutate the redirected object ...
	if ok, _ := s.CommitTransaction(ctx); !ok {
		// retry: start a new transaction and run the event again
	}

RedirectLoad and RedirectStore are the only two calls the interpreter needs
to make before every protected field access; everything else — conflict
detection, peer aborts, GC safepoints — happens inside CommitTransaction and
the allocation/collection scope calls the heap makes back into the STM.

Transactions are not composable the way channels are: a transaction either
completes its observable effects atomically or, from the caller's
perspective, never ran at all between successive retries. Events run inside
a transaction must be idempotent, since CommitTransaction may discard and
rerun them any number of times before they stick.

See Pool for the retry harness that wraps StartTransaction/CommitTransaction
around an event queue, and the internal/refheap package for a reference Heap
implementation used by this package's own tests.
*/
package stm
