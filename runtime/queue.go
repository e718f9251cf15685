// Package runtime is a small local stand-in for the serverless job runtime:
// it queues jobs, runs them one at a time through the worker and keeps their
// records for polling.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/whisperjob/component"
	"github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/job"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/pipeline"
	"github.com/kbukum/whisperjob/worker"
)

// Handler produces the messages of one job.
type Handler interface {
	Handle(ctx context.Context, j job.Job) pipeline.Iterator[worker.Message]
}

// Queue runs submitted jobs strictly one at a time on a single goroutine.
type Queue struct {
	handler Handler
	store   Store
	log     *logger.Logger
	now     func() time.Time

	jobs chan string
	wg   sync.WaitGroup

	mu      sync.Mutex
	base    context.Context
	stop    context.CancelFunc
	running string
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}
}

var _ component.Component = (*Queue)(nil)

// NewQueue creates a queue holding up to size waiting jobs.
func NewQueue(handler Handler, store Store, size int) *Queue {
	return &Queue{
		handler: handler,
		store:   store,
		log:     logger.Get("runtime"),
		now:     time.Now,
		jobs:    make(chan string, size),
		cancels: make(map[string]context.CancelFunc),
		done:    make(map[string]chan struct{}),
	}
}

func (q *Queue) Name() string { return "queue" }

// Start launches the worker goroutine.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stop != nil {
		return fmt.Errorf("queue already started")
	}
	q.base, q.stop = context.WithCancel(context.WithoutCancel(ctx))
	q.wg.Add(1)
	go q.loop()
	return nil
}

// Stop cancels the running job and waits for the worker goroutine. Jobs still
// waiting stay IN_QUEUE in the store.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	stop := q.stop
	q.mu.Unlock()
	if stop == nil {
		return nil
	}
	stop()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Health(context.Context) component.Health {
	q.mu.Lock()
	running := q.running
	q.mu.Unlock()
	return component.Health{
		Name:   q.Name(),
		Status: component.StatusHealthy,
		Details: map[string]string{
			"waiting": fmt.Sprint(len(q.jobs)),
			"running": running,
		},
	}
}

// Submit stores a new IN_QUEUE record for input and enqueues it. A full queue
// is rejected with SERVICE_UNAVAILABLE and nothing is stored.
func (q *Queue) Submit(ctx context.Context, input map[string]any) (*Record, error) {
	rec := &Record{
		ID:        uuid.NewString(),
		Status:    StatusInQueue,
		Input:     input,
		CreatedAt: q.now(),
	}
	if err := q.store.Put(ctx, rec); err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.done[rec.ID] = make(chan struct{})
	q.mu.Unlock()

	select {
	case q.jobs <- rec.ID:
		q.log.Debug("Job queued", logger.Fields(logger.FieldJobID, rec.ID))
		return rec, nil
	default:
		q.finish(rec.ID)
		_ = q.store.Delete(ctx, rec.ID)
		return nil, errors.ServiceUnavailable("job queue")
	}
}

// Status returns the current record of id.
func (q *Queue) Status(ctx context.Context, id string) (*Record, error) {
	return q.store.Get(ctx, id)
}

// Cancel stops a job. A waiting job is marked CANCELLED right away; a running
// job has its context cancelled and is marked by the worker goroutine once it
// stops. Terminal jobs are returned unchanged.
//
// The check runs under q.mu, the same lock process holds while it moves a job
// from IN_QUEUE to IN_PROGRESS, so a job is either cancelled before it starts
// or cancelled through its context.
func (q *Queue) Cancel(ctx context.Context, id string) (*Record, error) {
	rec, queued, err := q.cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if queued {
		q.finish(id)
	}
	return rec, nil
}

func (q *Queue) cancel(ctx context.Context, id string) (*Record, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if rec.Status.Terminal() {
		return rec, false, nil
	}
	if cancel, running := q.cancels[id]; running {
		cancel()
		return rec, false, nil
	}
	rec.Status = StatusCancelled
	now := q.now()
	rec.CompletedAt = &now
	if err := q.store.Put(ctx, rec); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Wait blocks until id reaches a terminal status or ctx ends, then returns
// the latest record.
func (q *Queue) Wait(ctx context.Context, id string) (*Record, error) {
	q.mu.Lock()
	done, ok := q.done[id]
	q.mu.Unlock()
	if ok {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return q.store.Get(context.WithoutCancel(ctx), id)
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.base.Done():
			return
		case id := <-q.jobs:
			q.process(id)
		}
	}
}

func (q *Queue) process(id string) {
	ctx, cancel := context.WithCancel(q.base)
	defer cancel()
	defer q.finish(id)

	rec, started, ok := q.begin(ctx, id, cancel)
	if !ok {
		return
	}
	defer func() {
		q.mu.Lock()
		delete(q.cancels, id)
		q.running = ""
		q.mu.Unlock()
	}()

	it := q.handler.Handle(logger.ContextWithJobID(ctx, id), job.Job{ID: id, Input: rec.Input})
	defer it.Close()

	runErr := pipeline.DrainIter(ctx, it, func(_ context.Context, msg worker.Message) error {
		rec.Stream = append(rec.Stream, msg)
		q.save(rec)
		return nil
	})

	completed := q.now()
	rec.CompletedAt = &completed
	switch {
	case runErr == nil:
		rec.Status = StatusCompleted
		rec.Output = rec.Stream
	case ctx.Err() != nil:
		rec.Status = StatusCancelled
	default:
		rec.Status = StatusFailed
		rec.Error = errors.Message(runErr)
	}
	q.save(rec)

	q.log.Info("Job finished", logger.MergeWithDuration(logger.Fields(
		logger.FieldJobID, id,
		logger.FieldStatus, string(rec.Status),
	), completed.Sub(started)))
}

// begin moves a queued job to IN_PROGRESS and registers its cancel func. It
// reports false when the job vanished or is no longer waiting.
func (q *Queue) begin(ctx context.Context, id string, cancel context.CancelFunc) (*Record, time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, err := q.store.Get(ctx, id)
	if err != nil {
		q.log.Warn("Queued job vanished", logger.MergeWithError(logger.Fields(logger.FieldJobID, id), err))
		return nil, time.Time{}, false
	}
	if rec.Status != StatusInQueue {
		return nil, time.Time{}, false
	}

	q.cancels[id] = cancel
	q.running = id
	started := q.now()
	rec.Status = StatusInProgress
	rec.StartedAt = &started
	q.save(rec)
	return rec, started, true
}

// save writes rec with a context that outlives job cancellation.
func (q *Queue) save(rec *Record) {
	if err := q.store.Put(context.Background(), rec); err != nil {
		q.log.Error("Saving job record failed", logger.MergeWithError(logger.Fields(logger.FieldJobID, rec.ID), err))
	}
}

func (q *Queue) finish(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if done, ok := q.done[id]; ok {
		close(done)
		delete(q.done, id)
	}
}

// StreamPage is the part of a job's stream after an offset.
type StreamPage struct {
	Record   *Record
	Messages []worker.Message
	// Next is the offset to ask for on the following poll.
	Next int
}

// Stream returns the messages of id from offset on.
func (q *Queue) Stream(ctx context.Context, id string, offset int) (StreamPage, error) {
	rec, err := q.store.Get(ctx, id)
	if err != nil {
		return StreamPage{}, err
	}
	offset = max(0, min(offset, len(rec.Stream)))
	return StreamPage{Record: rec, Messages: rec.Stream[offset:], Next: len(rec.Stream)}, nil
}
