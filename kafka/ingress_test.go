package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/whisperjob/job"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/pipeline"
	"github.com/kbukum/whisperjob/runtime"
	"github.com/kbukum/whisperjob/transcription"
	"github.com/kbukum/whisperjob/worker"
)

type fakeReader struct {
	msgs chan kafkago.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafkago.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafkago.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	fail   []error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.fail) > 0 {
		err := w.fail[0]
		w.fail = w.fail[1:]
		if err != nil {
			return err
		}
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafkago.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafkago.Message(nil), w.msgs...)
}

// scriptHandler emits one batch per entry of input["texts"] and fails when
// input["fail"] is set.
type scriptHandler struct{}

func (scriptHandler) Handle(_ context.Context, j job.Job) pipeline.Iterator[worker.Message] {
	var out []worker.Message
	texts, _ := j.Input["texts"].([]any)
	for _, t := range texts {
		out = append(out, worker.NewBatch([]transcription.Record{{"text": t}}))
	}
	if _, ok := j.Input["fail"]; ok {
		return &failingIter{msgs: out, err: errors.New("model exploded")}
	}
	return pipeline.Slice(out...)
}

type failingIter struct {
	msgs []worker.Message
	err  error
}

func (it *failingIter) Next(context.Context) (worker.Message, bool, error) {
	if len(it.msgs) == 0 {
		return worker.Message{}, false, it.err
	}
	m := it.msgs[0]
	it.msgs = it.msgs[1:]
	return m, true, nil
}

func (it *failingIter) Close() error { return nil }

func jobMessage(t *testing.T, offset int64, id string, input map[string]any) kafkago.Message {
	t.Helper()
	value, err := json.Marshal(envelope{ID: id, Input: input})
	if err != nil {
		t.Fatal(err)
	}
	return kafkago.Message{Offset: offset, Value: value}
}

func newTestIngress(r *fakeReader, w *fakeWriter) *Ingress {
	cfg := Config{}
	cfg.ApplyDefaults()
	log := logger.Nop()
	return newIngress(cfg,
		newConsumer(r, cfg.JobsTopic, cfg.GroupID, log),
		newProducer(w, cfg.ResultsTopic, 3, log),
		scriptHandler{}, log)
}

func header(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestIngress_PublishesMessagesThenDone(t *testing.T) {
	w := &fakeWriter{}
	in := newTestIngress(newFakeReader(), w)

	msg := jobMessage(t, 0, "job-1", map[string]any{"texts": []any{"a", "b"}})
	if err := in.handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	got := w.written()
	if len(got) != 3 {
		t.Fatalf("expected 2 batches and a done marker, got %d", len(got))
	}
	for i, typ := range []string{"batch", "batch", TypeDone} {
		if string(got[i].Key) != "job-1" {
			t.Errorf("message %d keyed %q, want job-1", i, got[i].Key)
		}
		if header(got[i], HeaderType) != typ {
			t.Errorf("message %d type %q, want %q", i, header(got[i], HeaderType), typ)
		}
	}
	if string(got[0].Value) != `[{"text":"a"}]` {
		t.Errorf("unexpected first batch %s", got[0].Value)
	}

	var done Done
	if err := json.Unmarshal(got[2].Value, &done); err != nil {
		t.Fatal(err)
	}
	if done.Status != runtime.StatusCompleted || done.ID != "job-1" {
		t.Errorf("unexpected done marker %+v", done)
	}
}

func TestIngress_FailedJob(t *testing.T) {
	w := &fakeWriter{}
	in := newTestIngress(newFakeReader(), w)

	msg := jobMessage(t, 0, "job-2", map[string]any{"texts": []any{"a"}, "fail": true})
	if err := in.handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	got := w.written()
	if len(got) != 2 {
		t.Fatalf("expected the batch before the failure and a done marker, got %d", len(got))
	}
	var done Done
	if err := json.Unmarshal(got[1].Value, &done); err != nil {
		t.Fatal(err)
	}
	if done.Status != runtime.StatusFailed || done.Error != "model exploded" {
		t.Errorf("unexpected done marker %+v", done)
	}
}

func TestIngress_RejectsMalformedMessage(t *testing.T) {
	w := &fakeWriter{}
	in := newTestIngress(newFakeReader(), w)

	msg := kafkago.Message{Key: []byte("k-1"), Value: []byte("not json")}
	if err := in.handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	got := w.written()
	if len(got) != 2 {
		t.Fatalf("expected an error message and a done marker, got %d", len(got))
	}
	if header(got[0], HeaderType) != "error" || string(got[0].Key) != "k-1" {
		t.Errorf("unexpected rejection %s type=%s", got[0].Key, header(got[0], HeaderType))
	}
}

func TestProducer_Retries(t *testing.T) {
	t.Run("transient errors are retried", func(t *testing.T) {
		w := &fakeWriter{fail: []error{errors.New("leader not available")}}
		p := newProducer(w, "out", 3, logger.Nop())
		if err := p.PublishDone(context.Background(), Done{ID: "j", Status: runtime.StatusCompleted}); err != nil {
			t.Fatalf("expected success after retry, got %v", err)
		}
		if len(w.written()) != 1 {
			t.Errorf("expected one written message, got %d", len(w.written()))
		}
	})

	t.Run("permanent errors are not", func(t *testing.T) {
		w := &fakeWriter{fail: []error{errors.New("message too large"), nil}}
		p := newProducer(w, "out", 3, logger.Nop())
		if err := p.Publish(context.Background(), "j", worker.NewError("x")); err == nil {
			t.Fatal("expected error")
		}
		if len(w.written()) != 0 {
			t.Error("a permanent error must not be retried")
		}
	})

	t.Run("closed", func(t *testing.T) {
		w := &fakeWriter{}
		p := newProducer(w, "out", 1, logger.Nop())
		_ = p.Close()
		if err := p.Publish(context.Background(), "j", worker.NewError("x")); err == nil {
			t.Error("expected error after close")
		}
		if !w.closed {
			t.Error("writer should be closed")
		}
	})
}

func TestIngress_ConsumeLoopCommitsInOrder(t *testing.T) {
	r := newFakeReader(
		jobMessage(t, 10, "a", map[string]any{"texts": []any{"1"}}),
		jobMessage(t, 11, "b", map[string]any{"texts": []any{"2"}}),
	)
	w := &fakeWriter{}
	in := newTestIngress(r, w)

	if err := in.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(r.commits()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := in.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	commits := r.commits()
	if len(commits) != 2 || commits[0] != 10 || commits[1] != 11 {
		t.Fatalf("unexpected commits %v", commits)
	}
	got := w.written()
	if len(got) != 4 || string(got[0].Key) != "a" || string(got[2].Key) != "b" {
		t.Errorf("jobs were not handled serially: %d messages", len(got))
	}
	if !r.closed || !w.closed {
		t.Error("stop should close reader and writer")
	}
}
