// Package wheel implements the engine's single timer service: one
// deadline-ordered heap of pending callbacks serviced by one goroutine,
// mirroring the original actor-framework's dedicated timer actor (spec
// §4.7) without needing an actual actor (and the import cycle that would
// create, since this package sits below the root package).
package wheel

import (
	"container/heap"
	"sync"
	"time"
)

type entry struct {
	deadline time.Time
	id       uint64
	fn       func()
	index    int // position in the heap, maintained by container/heap
	canceled bool
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Service is a single-goroutine, deadline-ordered scheduler for one-shot
// callbacks. It is the sole owner of its goroutine; Stop blocks until that
// goroutine has exited.
type Service struct {
	mu      sync.Mutex
	cond    *sync.Cond
	h       entryHeap
	byID    map[uint64]*entry
	nextID  uint64
	stopped bool
	done    chan struct{}
}

// New returns a Service with its background goroutine already running.
func New() *Service {
	s := &Service{byID: make(map[uint64]*entry), done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// Schedule arranges for fn to run (on the service's own goroutine, so fn
// should be quick — typically just an envelope enqueue) once at has
// passed. It returns an id that Cancel accepts.
func (s *Service) Schedule(at time.Time, fn func()) uint64 {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	e := &entry{deadline: at, id: id, fn: fn}
	s.byID[id] = e
	heap.Push(&s.h, e)
	s.mu.Unlock()
	s.cond.Broadcast()
	return id
}

// After is a convenience for Schedule(time.Now().Add(d), fn).
func (s *Service) After(d time.Duration, fn func()) uint64 {
	return s.Schedule(time.Now().Add(d), fn)
}

// Cancel prevents a previously scheduled callback from running, if it has
// not already fired. It reports whether the cancellation was in time; a
// false result means fn either already ran or never existed (stale id),
// and callers that rely on timeout-id staleness for classification (spec
// §4.7) should treat both the same way: ignore.
func (s *Service) Cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	e.canceled = true
	delete(s.byID, id)
	return true
}

func (s *Service) loop() {
	defer close(s.done)
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		for len(s.h) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			return
		}
		next := s.h[0]
		wait := time.Until(next.deadline)
		if wait > 0 {
			// Wait releases the lock; a Schedule/Cancel/Stop call that
			// races in will re-check the heap head on wakeup.
			timer := time.AfterFunc(wait, func() {
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			})
			s.cond.Wait()
			timer.Stop()
			continue
		}
		heap.Pop(&s.h)
		delete(s.byID, next.id)
		if next.canceled {
			continue
		}
		fn := next.fn
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
}

// Stop halts the service and waits for its goroutine to exit. Pending
// callbacks are discarded without running.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cond.Broadcast()
	<-s.done
}
