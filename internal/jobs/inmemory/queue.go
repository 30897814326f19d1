package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/bankmail-ledger/internal/jobs"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
)

// Defaults for NewQueue.
const (
	DefaultWorkers    = 1
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second
)

// Queue is an in-memory job publisher and consumer backed by a channel.
// With the default single worker, batches never overlap, which keeps one
// writer per ledger.
type Queue struct {
	jobChan   chan *jobs.BatchJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers int
	backoff time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBackoff sets the retry backoff unit; retry n waits n units.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishBatch blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.BatchJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   DefaultWorkers,
		backoff:   DefaultBackoff,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishBatch implements the Publisher interface. It fills in the job id,
// status and creation time on job and enqueues a copy.
func (q *Queue) PublishBatch(ctx context.Context, job *jobs.BatchJob) error {
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
	if job.MaxRetries == 0 {
		job.MaxRetries = DefaultMaxRetries
	}
	if job.Trigger == "" {
		job.Trigger = jobs.TriggerManual
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

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

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.BatchJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Str("trigger", string(job.Trigger)).Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(logger.WithContext(ctx, log), job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case !errors.Is(err, jobs.ErrNoRetry) && job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying

		backoff := time.Duration(job.RetryCount) * q.backoff
		log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("Batch job failed, retrying")

		retry := *job
		retry.Status = jobs.JobStatusPending
		retry.StartedAt = nil
		retry.CompletedAt = nil
		time.AfterFunc(backoff, func() {
			if err := q.PublishBatch(ctx, &retry); err != nil {
				log.Error().Err(err).Msg("Failed to re-enqueue batch job")
			}
		})
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Msg("Batch job failed")
	}

	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.BatchJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
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

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
