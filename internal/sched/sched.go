// Package sched implements the work-stealing scheduler that drives every
// event-based actor's resume loop (spec §4.6). Each worker owns a private
// deque; it pushes and pops its own end, and only ever touches a sibling's
// deque through steal, which pops from the opposite end so a running
// worker's own LIFO locality is undisturbed by a thief.
package sched

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
)

// Resumable is anything the scheduler can run a slice of work for — in
// revue this is always an actor's event-based dispatch loop, but the
// interface itself names no actor concept so this package stays
// domain-agnostic (spec §4.5/§4.6).
type Resumable interface {
	// Resume executes on worker's goroutine until the job either finishes,
	// needs to yield back to the scheduler, or the execution unit calling
	// it should itself shut down.
	Resume(worker *Worker) ResumeResult
}

// ResumeResult is Resumable.Resume's verdict on what the scheduler should
// do with the job next.
type ResumeResult int

const (
	// Done means the job is finished and should not be re-enqueued.
	Done ResumeResult = iota
	// ResumeLater means the job parked itself (e.g. an actor whose
	// mailbox went empty transitioning to blocked) and takes
	// responsibility for re-enqueueing itself via Scheduler.Schedule once
	// it has new work; the worker must not push it back onto its deque.
	ResumeLater
	// ShutdownExecutionUnit asks the calling worker itself to stop after
	// this job returns, used by the scheduler's own poison-pill shutdown.
	ShutdownExecutionUnit
)

// backoff stages mirror a spin-then-park poller: briefly spin (cheapest
// path, catches the common case of a steal succeeding almost immediately),
// then yield-sleep with growing intervals, then truly park.
var backoffStages = []time.Duration{
	0, 0, 0, 0, // aggressive: pure spin
	50 * time.Microsecond, 50 * time.Microsecond, 200 * time.Microsecond,
	1 * time.Millisecond, 4 * time.Millisecond,
}

const parkAfterStage = 9 // index past backoffStages: park, polling the external queue at the slowest backoff interval

// Scheduler owns a fixed pool of workers and the shared external queue
// used to inject work from outside any worker (spec §4.6 "coordinator").
type Scheduler struct {
	workers []*Worker
	next    atomic.Uint64 // round-robin cursor for external enqueue

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates and starts a Scheduler with the given number of workers.
// numWorkers must be at least 1.
func New(numWorkers int) *Scheduler {
	if numWorkers < 1 {
		numWorkers = 1
	}
	s := &Scheduler{workers: make([]*Worker, numWorkers)}
	for i := range s.workers {
		s.workers[i] = newWorker(i, s)
	}
	s.wg.Add(numWorkers)
	for _, w := range s.workers {
		go w.run(&s.wg)
	}
	return s
}

// Schedule injects job into the pool from outside any worker goroutine,
// round-robining across workers' external inboxes (spec §4.6 "coordinator
// round-robin external enqueue").
func (s *Scheduler) Schedule(job Resumable) {
	i := s.next.Add(1) % uint64(len(s.workers))
	s.workers[i].pushExternal(job)
}

// NumWorkers reports the size of the pool.
func (s *Scheduler) NumWorkers() int {
	return len(s.workers)
}

// WorkerStat is one worker's live counters, for the demo dashboard
// (SPEC_FULL.md §4.14).
type WorkerStat struct {
	ID         int
	QueueDepth int
	StolenFrom uint64
	StolenBy   uint64
}

// Stats snapshots every worker's queue depth and steal counters.
func (s *Scheduler) Stats() []WorkerStat {
	out := make([]WorkerStat, len(s.workers))
	for i, w := range s.workers {
		from, by := w.StealCounts()
		out[i] = WorkerStat{ID: w.ID(), QueueDepth: w.QueueDepth(), StolenFrom: from, StolenBy: by}
	}
	return out
}

// Shutdown stops every worker once its current job (if any) returns, and
// waits for all worker goroutines to exit.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	for _, w := range s.workers {
		w.pushExternal(shutdownJob{})
	}
	s.wg.Wait()
}

type shutdownJob struct{}

func (shutdownJob) Resume(*Worker) ResumeResult { return ShutdownExecutionUnit }

// Worker is one scheduler execution unit: a private deque plus a
// mutex-protected external inbox that other goroutines (and the
// coordinator) push onto.
type Worker struct {
	id    int
	sched *Scheduler

	// privMu guards private: the owning goroutine takes it on every push
	// and pop, and a thief takes it to steal from the opposite end. This
	// is the mutex-based stand-in for CAF's lock-free
	// detail::double_ended_queue.
	privMu  sync.Mutex
	private deque.Deque[Resumable]

	extMu sync.Mutex
	ext   deque.Deque[Resumable]

	stolenFrom atomic.Uint64 // jobs other workers have stolen from us
	stolenBy   atomic.Uint64 // jobs this worker has stolen from others
}

func newWorker(id int, s *Scheduler) *Worker {
	return &Worker{id: id, sched: s}
}

// ID returns the worker's index within the pool, stable for its lifetime.
func (w *Worker) ID() int { return w.id }

// Push enqueues job onto this worker's own private deque. Only the owning
// worker's goroutine may call this (e.g. Context.Spawn placing a freshly
// created actor local to the spawning actor's worker for cache locality).
func (w *Worker) Push(job Resumable) {
	w.privMu.Lock()
	w.private.PushBack(job)
	w.privMu.Unlock()
}

func (w *Worker) popOwn() (Resumable, bool) {
	w.privMu.Lock()
	defer w.privMu.Unlock()
	if w.private.Len() == 0 {
		return nil, false
	}
	return w.private.PopBack(), true
}

func (w *Worker) pushExternal(job Resumable) {
	w.extMu.Lock()
	w.ext.PushBack(job)
	w.extMu.Unlock()
}

func (w *Worker) popExternal() (Resumable, bool) {
	w.extMu.Lock()
	defer w.extMu.Unlock()
	if w.ext.Len() == 0 {
		return nil, false
	}
	return w.ext.PopFront(), true
}

// steal takes one job from the tail of w's private deque on behalf of a
// thief running on a different goroutine. Stealing from the opposite end
// from Push/PopBack keeps the owner's LIFO recency intact.
func (w *Worker) steal() (Resumable, bool) {
	w.privMu.Lock()
	defer w.privMu.Unlock()
	if w.private.Len() == 0 {
		return nil, false
	}
	job := w.private.PopFront()
	w.stolenFrom.Add(1)
	return job, true
}

// QueueDepth reports the current length of the worker's private deque,
// for the demo dashboard (SPEC_FULL.md §4.14).
func (w *Worker) QueueDepth() int {
	w.privMu.Lock()
	defer w.privMu.Unlock()
	return w.private.Len()
}

// StealCounts reports how many jobs other workers have stolen from this
// one, and how many this worker has stolen from others.
func (w *Worker) StealCounts() (stolenFrom, stolenBy uint64) {
	return w.stolenFrom.Load(), w.stolenBy.Load()
}

func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	stage := 0
	for {
		job, ok := w.nextJob()
		if !ok {
			if w.waitForWork(&stage) {
				return
			}
			continue
		}
		stage = 0
		switch job.Resume(w) {
		case Done, ResumeLater:
			// Done: terminated, nothing to reschedule. ResumeLater: the
			// job transitioned itself to blocked and will re-enqueue
			// itself (via Scheduler.Schedule) the moment new work
			// arrives — the worker must not touch its own deque here.
		case ShutdownExecutionUnit:
			return
		}
	}
}

// nextJob tries, in order: the worker's own deque (most recently pushed
// first, for cache locality on actors that keep producing work for
// themselves), its external inbox, then a random-ish sweep stealing from
// siblings (spec §4.6 "steal-from-tail").
func (w *Worker) nextJob() (Resumable, bool) {
	if job, ok := w.popOwn(); ok {
		return job, true
	}
	if job, ok := w.popExternal(); ok {
		return job, true
	}
	n := len(w.sched.workers)
	for i := 1; i < n; i++ {
		victim := w.sched.workers[(w.id+i)%n]
		if victim == w {
			continue
		}
		if job, ok := victim.steal(); ok {
			w.stolenBy.Add(1)
			return job, true
		}
	}
	return nil, false
}

func (w *Worker) waitForWork(stage *int) (shutdown bool) {
	s := *stage
	if s >= parkAfterStage {
		w.extMu.Lock()
		for w.ext.Len() == 0 {
			w.sched.mu.Lock()
			closed := w.sched.closed
			w.sched.mu.Unlock()
			if closed {
				w.extMu.Unlock()
				return true
			}
			w.extMu.Unlock()
			time.Sleep(backoffStages[len(backoffStages)-1])
			w.extMu.Lock()
		}
		w.extMu.Unlock()
		return false
	}
	d := backoffStages[s]
	if d > 0 {
		time.Sleep(d)
	}
	*stage = s + 1
	return false
}
