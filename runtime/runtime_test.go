package runtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/job"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/pipeline"
	"github.com/kbukum/whisperjob/redis"
	"github.com/kbukum/whisperjob/transcription"
	"github.com/kbukum/whisperjob/worker"
)

// scriptHandler emits the messages listed under input["emit"] and then the
// optional input["fail"] error. With input["block"] set it waits for the job
// context to end.
type scriptHandler struct {
	started chan string
}

func (h *scriptHandler) Handle(ctx context.Context, j job.Job) pipeline.Iterator[worker.Message] {
	if h.started != nil {
		h.started <- j.ID
	}
	return &scriptIter{input: j.Input}
}

type scriptIter struct {
	input map[string]any
	i     int
}

func (it *scriptIter) Next(ctx context.Context) (worker.Message, bool, error) {
	if _, ok := it.input["block"]; ok {
		<-ctx.Done()
		return worker.Message{}, false, ctx.Err()
	}
	n, _ := it.input["emit"].(int)
	if it.i < n {
		it.i++
		return worker.NewBatch([]transcription.Record{{"id": it.i}}), true, nil
	}
	if msg, ok := it.input["fail"].(string); ok {
		return worker.Message{}, false, errors.TranscriptionFailed(fmt.Errorf("%s", msg))
	}
	return worker.Message{}, false, nil
}

func (it *scriptIter) Close() error { return nil }

func startQueue(t *testing.T, h Handler, store Store, size int) *Queue {
	t.Helper()
	q := NewQueue(h, store, size)
	q.log = logger.Nop()
	if err := q.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

func waitFor(t *testing.T, q *Queue, id string) *Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := q.Wait(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Status.Terminal() {
		t.Fatalf("job %s did not finish, status %s", id, rec.Status)
	}
	return rec
}

func TestQueue_CompletesWithAggregateOutput(t *testing.T) {
	q := startQueue(t, &scriptHandler{}, NewMemoryStore(time.Minute), 4)
	rec, err := q.Submit(context.Background(), map[string]any{"emit": 3})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != StatusInQueue || rec.ID == "" {
		t.Errorf("unexpected submitted record %+v", rec)
	}

	done := waitFor(t, q, rec.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", done.Status, done.Error)
	}
	if len(done.Stream) != 3 || len(done.Output) != 3 {
		t.Errorf("expected 3 streamed and 3 output messages, got %d/%d", len(done.Stream), len(done.Output))
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("expected timestamps to be set")
	}

	page, err := q.Stream(context.Background(), rec.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 2 || page.Next != 3 {
		t.Errorf("unexpected page: %d messages, next %d", len(page.Messages), page.Next)
	}
}

func TestQueue_FailedJobKeepsStream(t *testing.T) {
	q := startQueue(t, &scriptHandler{}, NewMemoryStore(0), 4)
	rec, _ := q.Submit(context.Background(), map[string]any{"emit": 1, "fail": "gpu lost"})

	done := waitFor(t, q, rec.ID)
	if done.Status != StatusFailed || done.Error != "Transcription failed." {
		t.Errorf("expected FAILED with message, got %s %q", done.Status, done.Error)
	}
	if len(done.Stream) != 1 || done.Output != nil {
		t.Errorf("expected stream kept and no output, got %d/%v", len(done.Stream), done.Output)
	}
}

func TestQueue_CancelRunningAndQueued(t *testing.T) {
	h := &scriptHandler{started: make(chan string, 4)}
	q := startQueue(t, h, NewMemoryStore(0), 4)
	ctx := context.Background()

	running, _ := q.Submit(ctx, map[string]any{"block": true})
	queued, _ := q.Submit(ctx, map[string]any{"emit": 1})
	<-h.started

	rec, err := q.Cancel(ctx, queued.ID)
	if err != nil || rec.Status != StatusCancelled {
		t.Fatalf("expected queued job cancelled right away, got %v %v", rec, err)
	}
	if _, err := q.Cancel(ctx, running.ID); err != nil {
		t.Fatal(err)
	}
	if done := waitFor(t, q, running.ID); done.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", done.Status)
	}

	// The cancelled queued job is skipped by the worker.
	time.Sleep(20 * time.Millisecond)
	select {
	case id := <-h.started:
		t.Errorf("cancelled job %s must not run", id)
	default:
	}
}

// pickupStore runs onPickup alongside the first Get, which is the worker
// reading a job it just took off the queue, and holds that Get open long
// enough for onPickup to run.
type pickupStore struct {
	*MemoryStore
	once     sync.Once
	onPickup func()
}

func (s *pickupStore) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.MemoryStore.Get(ctx, id)
	s.once.Do(func() {
		go s.onPickup()
		time.Sleep(30 * time.Millisecond)
	})
	return rec, err
}

func TestQueue_CancelDuringPickup(t *testing.T) {
	store := &pickupStore{MemoryStore: NewMemoryStore(0)}
	q := startQueue(t, &scriptHandler{}, store, 4)
	ctx := context.Background()

	var id string
	cancelled := make(chan error, 1)
	submitted := make(chan struct{})
	store.onPickup = func() {
		<-submitted
		_, err := q.Cancel(ctx, id)
		cancelled <- err
	}

	rec, err := q.Submit(ctx, map[string]any{"block": true})
	if err != nil {
		t.Fatal(err)
	}
	id = rec.ID
	close(submitted)

	if done := waitFor(t, q, id); done.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", done.Status)
	}
	select {
	case err := <-cancelled:
		if err != nil {
			t.Errorf("cancel failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not return")
	}
}

func TestQueue_FullQueueRejected(t *testing.T) {
	h := &scriptHandler{started: make(chan string, 4)}
	store := NewMemoryStore(0)
	q := startQueue(t, h, store, 1)
	ctx := context.Background()

	first, _ := q.Submit(ctx, map[string]any{"block": true})
	<-h.started
	if _, err := q.Submit(ctx, map[string]any{"emit": 1}); err != nil {
		t.Fatalf("second job should fit in the buffer: %v", err)
	}
	_, err := q.Submit(ctx, map[string]any{"emit": 1})
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeServiceUnavailable {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	_, _ = q.Cancel(ctx, first.ID)
}

func TestQueue_UnknownJob(t *testing.T) {
	q := NewQueue(&scriptHandler{}, NewMemoryStore(0), 1)
	_, err := q.Status(context.Background(), "nope")
	if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Put(ctx, &Record{ID: "a", Status: StatusCompleted})
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "a"); err == nil {
		t.Error("expected record to expire")
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	rec := &Record{ID: "a", Stream: []worker.Message{worker.NewError("x")}}
	_ = s.Put(ctx, rec)
	rec.Stream = append(rec.Stream, worker.NewError("y"))

	got, _ := s.Get(ctx, "a")
	if len(got.Stream) != 1 {
		t.Errorf("store must not alias caller slices, got %d messages", len(got.Stream))
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mini := miniredis.RunT(t)
	client, err := redis.New(redis.Config{Enabled: true, Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	s := NewRedisStore(client, "whisperjob:job", time.Minute)
	ctx := context.Background()
	rec := &Record{
		ID:     "j1",
		Status: StatusCompleted,
		Input:  map[string]any{"url": "http://x/a.wav"},
		Stream: []worker.Message{
			worker.NewBatch([]transcription.Record{{"id": 1, "text": "hi"}}),
			worker.NewError("boom"),
		},
	}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if ttl := mini.TTL("whisperjob:job:j1"); ttl != time.Minute {
		t.Errorf("expected 1m ttl, got %v", ttl)
	}

	got, err := s.Get(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || len(got.Stream) != 2 {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Stream[0].Kind() != worker.KindBatch || got.Stream[1].Text() != "boom" {
		t.Errorf("messages did not survive the round trip: %+v", got.Stream)
	}

	_, err = s.Get(ctx, "missing")
	if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}
