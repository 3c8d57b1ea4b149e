// File: internal/sched/sched_test.go
package sched

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingJob records that it ran, closes ran, and hands control back
// with Done. It must be resumed only once.
type countingJob struct {
	ran  chan struct{}
	done atomic.Bool
}

func (j *countingJob) Resume(w *Worker) ResumeResult {
	defer close(j.ran)
	j.done.Store(true)
	return Done
}

func TestScheduler_ScheduleRunsJob(t *testing.T) {
	s := New(2)
	defer s.Shutdown()

	j := &countingJob{ran: make(chan struct{})}
	s.Schedule(j)

	select {
	case <-j.ran:
		assert.True(t, j.done.Load())
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
}

func TestScheduler_NumWorkers(t *testing.T) {
	s := New(4)
	defer s.Shutdown()
	assert.Equal(t, 4, s.NumWorkers())
}

func TestScheduler_ZeroWorkersClampsToOne(t *testing.T) {
	s := New(0)
	defer s.Shutdown()
	assert.Equal(t, 1, s.NumWorkers())
}

// parkJob yields ResumeLater exactly once (simulating an actor going
// blocked), then Done on its second Resume.
type parkJob struct {
	s        *Scheduler
	resumed  atomic.Int32
	finished chan struct{}
}

func (j *parkJob) Resume(w *Worker) ResumeResult {
	if j.resumed.Add(1) == 1 {
		go j.s.Schedule(j) // re-enqueues itself, as spec'd for ResumeLater
		return ResumeLater
	}
	close(j.finished)
	return Done
}

func TestScheduler_ResumeLaterDoesNotSelfRequeueOnWorkerDeque(t *testing.T) {
	s := New(1)
	defer s.Shutdown()

	j := &parkJob{s: s, finished: make(chan struct{})}
	s.Schedule(j)

	select {
	case <-j.finished:
		assert.EqualValues(t, 2, j.resumed.Load())
	case <-time.After(time.Second):
		t.Fatal("job parked via ResumeLater was never resumed a second time")
	}
}

// busyJob only signals that it ran; the stealing test pushes many of them
// onto one worker's own deque so its neighbours, with no external work,
// are forced to steal.
type busyJob struct {
	wg  *sync.WaitGroup
	ran chan struct{}
}

func (j *busyJob) Resume(w *Worker) ResumeResult {
	close(j.ran)
	j.wg.Done()
	return Done
}

func TestScheduler_StealingDistributesWorkAcrossWorkers(t *testing.T) {
	s := New(4)
	defer s.Shutdown()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)

	// Push everything onto worker 0's own deque directly, forcing the
	// other three workers to steal all their work from it.
	jobs := make([]*busyJob, n)
	for i := range jobs {
		jobs[i] = &busyJob{wg: &wg, ran: make(chan struct{})}
		s.workers[0].Push(jobs[i])
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stolen work to complete")
	}

	stats := s.Stats()
	require.Len(t, stats, 4)
	var totalStolenBy uint64
	for _, st := range stats {
		totalStolenBy += st.StolenBy
	}
	assert.Greater(t, totalStolenBy, uint64(0), "at least one sibling worker should have stolen work from worker 0")
}

func TestWorker_StealTakesFromOppositeEndOfPush(t *testing.T) {
	// A standalone worker with no run loop started, so nothing races the
	// test's own pushes and steal.
	w := newWorker(0, nil)
	var order []int
	var mu sync.Mutex
	record := func(i int) *recordJob {
		return &recordJob{i: i, mu: &mu, order: &order}
	}
	w.Push(record(1))
	w.Push(record(2))
	w.Push(record(3))

	// Owner pops from the back (LIFO): should get 3 first if it pops
	// directly; a thief instead takes from the front (FIFO relative to
	// push order), i.e. 1.
	job, ok := w.steal()
	require.True(t, ok)
	rj := job.(*recordJob)
	assert.Equal(t, 1, rj.i)

	from, _ := w.StealCounts()
	assert.EqualValues(t, 1, from)
}

type recordJob struct {
	i     int
	mu    *sync.Mutex
	order *[]int
}

func (r *recordJob) Resume(w *Worker) ResumeResult {
	r.mu.Lock()
	*r.order = append(*r.order, r.i)
	r.mu.Unlock()
	return Done
}

func TestScheduler_ShutdownStopsAllWorkers(t *testing.T) {
	s := New(3)
	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown never returned")
	}
}
