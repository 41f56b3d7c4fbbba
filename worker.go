package stm

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Event is a unit of work a Pool runs inside a transaction. It must be
// idempotent: CommitTransaction may discard and rerun it any number of
// times before it sticks. An Event signals a desire to unwind early by
// returning a non-nil error; that error is not surfaced once the
// transaction aborts, but is propagated if the transaction that ran it went
// on to commit.
type Event func(ctx context.Context) error

// Pool runs Config.ThreadCount workers, each pulling events off a shared
// queue and driving the start/execute/commit retry loop:
//
//	loop:
//	    ctx = stm.StartTransaction(ctx)
//	    err = event(ctx)
//	    if ok, _ := stm.CommitTransaction(ctx); ok {
//	        break
//	    }
type Pool struct {
	stm    *STM
	events chan Event
	group  *errgroup.Group
	ctx    context.Context
}

// NewPool returns a Pool of s.config.ThreadCount workers, started
// immediately against ctx. Submit events with Submit; call Close (which
// stops accepting new events and waits for in-flight ones to finish) when
// done.
func NewPool(ctx context.Context, s *STM) *Pool {
	threadCount := s.config.ThreadCount
	if threadCount < 1 {
		threadCount = 1
	}

	group, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		stm:    s,
		events: make(chan Event),
		group:  group,
		ctx:    gctx,
	}

	for i := 0; i < threadCount; i++ {
		group.Go(p.runWorker)
	}
	return p
}

func (p *Pool) runWorker() error {
	for {
		select {
		case <-p.ctx.Done():
			return p.ctx.Err()
		case ev, ok := <-p.events:
			if !ok {
				return nil
			}
			if err := p.runEvent(ev); err != nil {
				return err
			}
		}
	}
}

// runEvent executes ev inside a transaction, retrying until it commits, the
// event returns a non-nil error on a transaction that then commits, or the
// pool's context is canceled.
func (p *Pool) runEvent(ev Event) error {
	for {
		if p.ctx.Err() != nil {
			return p.ctx.Err()
		}

		ctx := p.stm.StartTransaction(p.ctx)
		err := ev(ctx)

		ok, commitErr := p.stm.CommitTransaction(ctx)
		if commitErr != nil && !errors.Is(commitErr, ErrShadowAllocationFailed) {
			return commitErr
		}
		if !ok {
			continue // retry: this attempt's effects never happened
		}
		return err
	}
}

// Submit enqueues ev to run on the next available worker. It blocks if
// every worker is busy.
func (p *Pool) Submit(ev Event) {
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	}
}

// Close stops accepting new events and waits for every worker to finish its
// current event, returning the first worker error (if any) or the context's
// cancellation cause.
func (p *Pool) Close() error {
	close(p.events)
	return p.group.Wait()
}

// Stats reports the pool's STM's aggregate commit/abort counters.
func (p *Pool) Stats() Stats {
	return p.stm.Stats()
}
