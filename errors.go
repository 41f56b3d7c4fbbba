package stm

import "errors"

var (
	// ErrShadowAllocationFailed is returned when the heap refuses a copy
	// request during RedirectStore. It is fatal to the current
	// transaction: the transaction is marked aborted and terminate is
	// signaled to the caller. A retry may succeed after the next GC.
	ErrShadowAllocationFailed = errors.New("stm: shadow allocation failed")

	// ErrNoActiveTransaction is returned by CommitTransaction when called
	// with a context that carries no transaction while the STM is enabled.
	// RedirectLoad and RedirectStore return the object unchanged instead.
	ErrNoActiveTransaction = errors.New("stm: no active transaction in context")

	// ErrTransactionFinalized is returned by CommitTransaction when called
	// again on a transaction that an earlier CommitTransaction finalized.
	ErrTransactionFinalized = errors.New("stm: transaction already finalized")
)
