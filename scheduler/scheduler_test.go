package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_Schedule(t *testing.T) {
	jobID := "test-scheduler-job-1"
	s := NewDefaultScheduler()
	wg := sync.WaitGroup{}
	wg.Add(1)

	// a one-shot job runs exactly once
	var runs int32
	s.Schedule(50*time.Millisecond, jobID, func() {
		atomic.AddInt32(&runs, 1)
		wg.Done()
	})
	wg.Wait()

	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))

	s.mu.Lock()
	assert.Len(t, s.jobs, 0)
	s.mu.Unlock()
}

func TestScheduler_Replace(t *testing.T) {
	jobID := "test-scheduler-job-1"
	s := NewDefaultScheduler()

	fired := make(chan string, 2)
	s.Schedule(100*time.Millisecond, jobID, func() { fired <- "first" })
	s.Schedule(20*time.Millisecond, jobID, func() { fired <- "second" })

	select {
	case got := <-fired:
		assert.Equal(t, "second", got)
	case <-time.After(time.Second):
		t.Fatal("replacement job didn't run")
	}

	// the replaced job must never fire
	select {
	case got := <-fired:
		t.Fatalf("unexpected job run: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestScheduler_Cancel(t *testing.T) {
	jobID1 := "test-scheduler-job-1"
	jobID2 := "test-scheduler-job-2"
	s := NewDefaultScheduler()

	fired := make(chan string, 2)
	s.Schedule(50*time.Millisecond, jobID1, func() { fired <- jobID1 })
	s.Schedule(50*time.Millisecond, jobID2, func() { fired <- jobID2 })

	s.mu.Lock()
	assert.Len(t, s.jobs, 2)
	s.mu.Unlock()

	s.Cancel(jobID1)

	select {
	case got := <-fired:
		assert.Equal(t, jobID2, got)
	case <-time.After(time.Second):
		t.Fatal("job 2 didn't run")
	}

	select {
	case got := <-fired:
		t.Fatalf("cancelled job ran: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestScheduler_CancelUnknownID(t *testing.T) {
	s := NewDefaultScheduler()
	s.Cancel("does-not-exist")
}
