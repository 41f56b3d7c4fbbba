package stm

import "sync/atomic"

// AbortPolicy decides, independently of conflict detection, whether the
// commit currently in progress should be forced to abort. It exists to
// model the abort_every_other_commit diagnostic knob as an injectable
// policy object rather than a module-level flag.
type AbortPolicy interface {
	// ShouldForceAbort is consulted once per CommitTransaction call, at the
	// very start, before the transaction's state transition, before any
	// lock is acquired, and before conflict detection runs. A transaction
	// it forces to abort is handled by the same path as a peer-initiated
	// abort. commitSeq is the 1-based index of this call, incrementing on
	// every CommitTransaction call including ones that end up retried,
	// useful for policies like "every other commit".
	ShouldForceAbort(commitSeq uint64) bool
}

// neverAbort never forces an abort; it is the default policy.
type neverAbort struct{}

func (neverAbort) ShouldForceAbort(uint64) bool { return false }

// NeverAbort returns the default AbortPolicy, which never forces an abort;
// conflicts are the only source of aborts.
func NeverAbort() AbortPolicy { return neverAbort{} }

// alternatingAbort forces every other commit to abort, for testing the
// retry path under single-thread or low-contention workloads where real
// conflicts would otherwise be rare.
type alternatingAbort struct {
	n atomic.Uint64
}

// NewAlternatingAbortPolicy returns an AbortPolicy that forces one in two
// commits to abort, for exercising the retry path under workloads that
// otherwise rarely conflict.
func NewAlternatingAbortPolicy() AbortPolicy {
	return &alternatingAbort{}
}

func (p *alternatingAbort) ShouldForceAbort(uint64) bool {
	return p.n.Add(1)%2 == 0
}
