// Package scheduler runs named one-shot jobs after a delay.
package scheduler

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler is an interface which implementations can schedule and cancel delayed jobs
type Scheduler interface {
	// Schedule arms job to run once after the given delay. A pending job with
	// the same ID is replaced.
	Schedule(in time.Duration, id string, job func())
	// Cancel drops pending jobs by ID. Unknown IDs are ignored.
	Cancel(ids ...string)
}

// MockScheduler is a mock implementation of Scheduler
type MockScheduler struct {
	ScheduleFunc func(in time.Duration, id string, job func())
	CancelFunc   func(ids ...string)
}

// Schedule mocks the Schedule function of the Scheduler interface
func (mock *MockScheduler) Schedule(in time.Duration, id string, job func()) {
	if mock.ScheduleFunc != nil {
		mock.ScheduleFunc(in, id, job)
		return
	}
	log.Errorf("MockScheduler doesn't have Schedule function defined")
}

// Cancel mocks the Cancel function of the Scheduler interface
func (mock *MockScheduler) Cancel(ids ...string) {
	if mock.CancelFunc != nil {
		mock.CancelFunc(ids...)
		return
	}
	log.Errorf("MockScheduler doesn't have Cancel function defined")
}

// DefaultScheduler schedules jobs (functions) to run once in the future and cancels them by ID.
type DefaultScheduler struct {
	// jobs map holds cancellation channels indexed by the job ID
	jobs map[string]chan struct{}
	mu   sync.Mutex
}

// NewDefaultScheduler creates an instance of a DefaultScheduler
func NewDefaultScheduler() *DefaultScheduler {
	return &DefaultScheduler{
		jobs: make(map[string]chan struct{}),
	}
}

func (s *DefaultScheduler) cancel(id string) bool {
	cancel, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
		close(cancel)
		log.Debugf("cancelled scheduled job %s", id)
	}
	return ok
}

// Cancel cancels the scheduled jobs by ID if present
func (s *DefaultScheduler) Cancel(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.cancel(id)
	}
}

// Schedule a job to run once after the given delay. If a job with the
// provided ID is already pending it is cancelled and replaced.
func (s *DefaultScheduler) Schedule(in time.Duration, id string, job func()) {
	s.mu.Lock()
	s.cancel(id)
	cancel := make(chan struct{})
	s.jobs[id] = cancel
	log.Debugf("scheduled a job %s to run in %s. There are %d total jobs scheduled.", id, in.String(), len(s.jobs))
	s.mu.Unlock()

	timer := time.NewTimer(in)
	go func() {
		select {
		case <-timer.C:
			select {
			case <-cancel:
				log.Debugf("scheduled job %s was canceled, stop timer", id)
				return
			default:
			}

			s.mu.Lock()
			if s.jobs[id] == cancel {
				delete(s.jobs, id)
			}
			s.mu.Unlock()

			log.Debugf("time to do a scheduled job %s", id)
			job()
		case <-cancel:
			log.Debugf("job %s was canceled, stopping timer", id)
			timer.Stop()
		}
	}()
}
