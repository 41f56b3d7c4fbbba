package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rivervm/stm"
	"github.com/rivervm/stm/internal/refheap"
)

// scenario runs one end-to-end concurrency demonstration against a fresh
// heap and STM, returning a human-readable summary of the outcome.
type scenario func(cfg stm.Config) (string, error)

var scenarios = map[string]scenario{
	"counter-race":     counterRaceScenario,
	"disjoint-objects": disjointObjectsScenario,
	"write-write":      writeWriteConflictScenario,
	"read-write":       readWriteConflictScenario,
	"gc-during-commit": gcDuringTransactionScenario,
}

// counterRaceScenario: two threads each enqueue 100 increment events
// against a shared counter object. Expected final count: 200, with a
// finite but nonzero number of aborts.
func counterRaceScenario(cfg stm.Config) (string, error) {
	heap := refheap.New()
	counter := heap.Alloc(refheap.Object{Kind: refheap.KindStruct, Fields: map[string]int64{"n": 0}})

	s := stm.New(heap, cfg)
	pool := stm.NewPool(context.Background(), s)

	var wg sync.WaitGroup
	for t := 0; t < 2; t++ {
		wg.Add(100)
		for i := 0; i < 100; i++ {
			go func() {
				defer wg.Done()
				pool.Submit(func(ctx context.Context) error {
					cur, terminate := s.RedirectLoad(ctx, counter)
					if terminate {
						return nil
					}
					n, err := heap.Field(cur, "n")
					if err != nil {
						return err
					}
					dst, terminate := s.RedirectStore(ctx, counter)
					if terminate {
						return nil
					}
					return heap.SetField(dst, "n", n+1)
				})
			}()
		}
	}
	wg.Wait()
	if err := pool.Close(); err != nil {
		return "", err
	}

	final, err := heap.Field(counter, "n")
	if err != nil {
		return "", err
	}
	stats := pool.Stats()
	return fmt.Sprintf("counter-race: n=%d commits=%d aborts=%d", final, stats.Commits, stats.Aborts), nil
}

// disjointObjectsScenario: two events mutate disjoint objects. No conflicts
// are expected; both commit on the first attempt.
func disjointObjectsScenario(cfg stm.Config) (string, error) {
	heap := refheap.New()
	a := heap.Alloc(refheap.Object{Kind: refheap.KindStruct, Fields: map[string]int64{"v": 0}})
	b := heap.Alloc(refheap.Object{Kind: refheap.KindStruct, Fields: map[string]int64{"v": 0}})

	s := stm.New(heap, cfg)
	pool := stm.NewPool(context.Background(), s)

	var wg sync.WaitGroup
	wg.Add(2)
	mutate := func(obj stm.ObjectRef, value int64) {
		defer wg.Done()
		pool.Submit(func(ctx context.Context) error {
			dst, terminate := s.RedirectStore(ctx, obj)
			if terminate {
				return nil
			}
			return heap.SetField(dst, "v", value)
		})
	}
	go mutate(a, 1)
	go mutate(b, 2)
	wg.Wait()
	if err := pool.Close(); err != nil {
		return "", err
	}

	stats := pool.Stats()
	return fmt.Sprintf("disjoint-objects: commits=%d aborts=%d (expect aborts=0)", stats.Commits, stats.Aborts), nil
}

// writeWriteConflictScenario: two events both set x.v to their own thread
// id. Exactly one commits per attempt pair; the loser retries.
func writeWriteConflictScenario(cfg stm.Config) (string, error) {
	heap := refheap.New()
	x := heap.Alloc(refheap.Object{Kind: refheap.KindStruct, Fields: map[string]int64{"v": 0}})

	s := stm.New(heap, cfg)
	pool := stm.NewPool(context.Background(), s)

	var wg sync.WaitGroup
	wg.Add(2)
	for tid := int64(1); tid <= 2; tid++ {
		tid := tid
		go func() {
			defer wg.Done()
			pool.Submit(func(ctx context.Context) error {
				dst, terminate := s.RedirectStore(ctx, x)
				if terminate {
					return nil
				}
				return heap.SetField(dst, "v", tid)
			})
		}()
	}
	wg.Wait()
	if err := pool.Close(); err != nil {
		return "", err
	}

	v, err := heap.Field(x, "v")
	if err != nil {
		return "", err
	}
	stats := pool.Stats()
	return fmt.Sprintf("write-write: x.v=%d commits=%d aborts=%d", v, stats.Commits, stats.Aborts), nil
}

// readWriteConflictScenario: thread 1 reads x.v then writes y.v = x.v+1;
// thread 2 writes x.v = 99. If thread 2 commits first, thread 1 aborts and
// retries, landing on y.v == 100.
func readWriteConflictScenario(cfg stm.Config) (string, error) {
	heap := refheap.New()
	x := heap.Alloc(refheap.Object{Kind: refheap.KindStruct, Fields: map[string]int64{"v": 0}})
	y := heap.Alloc(refheap.Object{Kind: refheap.KindStruct, Fields: map[string]int64{"v": 0}})

	s := stm.New(heap, cfg)
	pool := stm.NewPool(context.Background(), s)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pool.Submit(func(ctx context.Context) error {
			cx, terminate := s.RedirectLoad(ctx, x)
			if terminate {
				return nil
			}
			xv, err := heap.Field(cx, "v")
			if err != nil {
				return err
			}
			dy, terminate := s.RedirectStore(ctx, y)
			if terminate {
				return nil
			}
			return heap.SetField(dy, "v", xv+1)
		})
	}()
	go func() {
		defer wg.Done()
		pool.Submit(func(ctx context.Context) error {
			dx, terminate := s.RedirectStore(ctx, x)
			if terminate {
				return nil
			}
			return heap.SetField(dx, "v", 99)
		})
	}()
	wg.Wait()
	if err := pool.Close(); err != nil {
		return "", err
	}

	xv, err := heap.Field(x, "v")
	if err != nil {
		return "", err
	}
	yv, err := heap.Field(y, "v")
	if err != nil {
		return "", err
	}
	stats := pool.Stats()
	return fmt.Sprintf("read-write: x.v=%d y.v=%d commits=%d aborts=%d", xv, yv, stats.Commits, stats.Aborts), nil
}

// gcDuringTransactionScenario: one thread holds a large write set while a
// second thread triggers a collection. The collector must pause the first
// thread at its next allocation, relocate its cells, and let it resume and
// commit correctly against the relocated canonical objects.
func gcDuringTransactionScenario(cfg stm.Config) (string, error) {
	heap := refheap.New()
	objs := make([]stm.ObjectRef, 50)
	for i := range objs {
		objs[i] = heap.Alloc(refheap.Object{Kind: refheap.KindStruct, Fields: map[string]int64{"v": int64(i)}})
	}

	s := stm.New(heap, cfg)

	writerDone := make(chan error, 1)
	allocated := make(chan struct{})
	go func() {
		ctx := s.StartTransaction(context.Background())
		for _, obj := range objs {
			dst, terminate := s.RedirectStore(ctx, obj)
			if terminate {
				writerDone <- nil
				return
			}
			if err := heap.SetField(dst, "v", -1); err != nil {
				writerDone <- err
				return
			}
		}
		close(allocated)

		s.EnterAllocationScope(ctx)
		s.LeaveAllocationScope()

		ok, err := s.CommitTransaction(ctx)
		if err != nil {
			writerDone <- err
			return
		}
		if !ok {
			writerDone <- fmt.Errorf("gc-during-commit: writer unexpectedly lost its commit")
			return
		}
		writerDone <- nil
	}()

	<-allocated
	roots := make([]*stm.ObjectRef, len(objs))
	for i := range objs {
		roots[i] = &objs[i]
	}
	if !s.EnterCollectionScope() {
		return "", fmt.Errorf("gc-during-commit: collector lost the CAS unexpectedly")
	}
	heap.Collect(roots, s.Iterate)
	s.LeaveCollectionScope()

	if err := <-writerDone; err != nil {
		return "", err
	}

	v, err := heap.Field(objs[len(objs)-1], "v")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("gc-during-commit: objs[last].v=%d commits=%d aborts=%d", v, s.Stats().Commits, s.Stats().Aborts), nil
}
