package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/autobills/internal/jobs"
)

// Queue is an in-memory implementation of the run publisher and consumer.
// A single worker goroutine drains an unbuffered channel, so at most one
// reconciliation run is ever in flight: publishing while the worker is busy
// fails with jobs.ErrRunInFlight rather than queueing a second run behind
// the first. Suitable for the single-instance deployments this service
// targets.
type Queue struct {
	jobChan   chan *jobs.CheckBillsJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.RunStore
	closed    bool
}

// NewQueue creates a new in-memory run queue recording outcomes in store
// (which may be nil).
func NewQueue(store jobs.RunStore) *Queue {
	return &Queue{
		jobChan:   make(chan *jobs.CheckBillsJob),
		closeChan: make(chan struct{}),
		store:     store,
	}
}

// PublishCheckBills implements the Publisher interface. The handoff is
// non-blocking: it succeeds only when the worker is idle and waiting.
func (q *Queue) PublishCheckBills(ctx context.Context, job *jobs.CheckBillsJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	default:
		return jobs.ErrRunInFlight
	}
}

// Start implements the Consumer interface. It starts the single worker
// goroutine that executes published runs through handler.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	q.wg.Add(1)
	go q.worker(ctx, handler)

	return nil
}

// worker executes runs from the channel until the queue closes.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single run. Failures are recorded, never retried.
func (q *Queue) processJob(ctx context.Context, job *jobs.CheckBillsJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements the Consumer interface. It stops the queue and waits for
// an in-flight run to complete, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
