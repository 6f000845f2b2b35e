package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Memory is an in-process queue with the same retry and dead-letter rules as Queue.
// It serves single-instance development and tests.
type Memory struct {
	mu     sync.Mutex
	jobs   []*Job
	dead   []*Job
	notify chan struct{}
	wait   time.Duration
	logger *zap.Logger
}

// NewMemory creates an in-process queue. wait bounds each Dequeue.
func NewMemory(wait time.Duration, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if wait <= 0 {
		wait = pollTimeout
	}
	return &Memory{notify: make(chan struct{}, 1), wait: wait, logger: logger}
}

// EnqueueTripArchive enqueues a trip archive job.
func (m *Memory) EnqueueTripArchive(_ context.Context, payload TripArchivePayload) error {
	job, err := NewJob(JobTypeTripArchive, payload)
	if err != nil {
		return err
	}
	m.push(job)
	return nil
}

func (m *Memory) push(job *Job) {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Dequeue returns the oldest job, waiting up to the configured duration.
func (m *Memory) Dequeue(ctx context.Context) (*Job, error) {
	timer := time.NewTimer(m.wait)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if len(m.jobs) > 0 {
			job := m.jobs[0]
			m.jobs = m.jobs[1:]
			m.mu.Unlock()
			return job, nil
		}
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-m.notify:
		}
	}
}

// Retry re-enqueues job or moves it to the dead-letter list after MaxRetries attempts.
func (m *Memory) Retry(_ context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		m.mu.Lock()
		m.dead = append(m.dead, job)
		m.mu.Unlock()
		m.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	m.push(job)
	return nil
}

// Len returns the number of queued jobs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// DeadLetters returns jobs that exhausted their retries.
func (m *Memory) DeadLetters() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Job(nil), m.dead...)
}
