package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisperjob/aggregate"
	"github.com/kbukum/whisperjob/component"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/modelcache"
	"github.com/kbukum/whisperjob/runtime"
	"github.com/kbukum/whisperjob/transcription"
	"github.com/kbukum/whisperjob/worker"
)

type echoModel struct{ engine, name string }

func (m *echoModel) Engine() string { return m.engine }
func (m *echoModel) Name() string   { return m.name }
func (m *echoModel) Transcribe(_ context.Context, args transcription.Args) (transcription.Result, error) {
	url, _ := args.String("url")
	return transcription.Materialized([]transcription.Segment{
		{ID: 0, Start: 0, End: 1.5, Text: "audio at " + url},
	}), nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *modelcache.Cache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cache := modelcache.New(transcription.LoaderFunc(func(_ context.Context, engine, model string) (transcription.Model, error) {
		return &echoModel{engine: engine, name: model}, nil
	}), modelcache.WithLogger(logger.Nop()))
	handler := worker.New(cache, aggregate.New(aggregate.WithLogger(logger.Nop())), worker.WithLogger(logger.Nop()))

	q := runtime.NewQueue(handler, runtime.NewMemoryStore(time.Minute), 8)
	if err := q.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	r := gin.New()
	NewJobs(q, 5*time.Second).Register(r)
	r.GET("/health", Health("whisperjob", "test",
		func(ctx context.Context) []component.Health { return []component.Health{q.Health(ctx)} },
		cache.Current))
	return r, cache
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func TestRunSync_NonStreamingResult(t *testing.T) {
	r, _ := newTestRouter(t)
	rr, body := do(t, r, http.MethodPost, "/runsync", map[string]any{
		"input": map[string]any{"model": "tiny", "url": "http://x/a.wav"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}
	if body["status"] != "COMPLETED" {
		t.Fatalf("expected COMPLETED, got %v", body["status"])
	}
	output := body["output"].([]any)
	if len(output) != 1 {
		t.Fatalf("expected one output message, got %v", output)
	}
	result := output[0].(map[string]any)["result"].([]any)
	if seg := result[0].(map[string]any); seg["text"] != "audio at http://x/a.wav" {
		t.Errorf("unexpected segment %v", seg)
	}
}

func TestRunSync_ValidationErrorsInOutput(t *testing.T) {
	r, _ := newTestRouter(t)
	rr, body := do(t, r, http.MethodPost, "/runsync", map[string]any{
		"input": map[string]any{"engine": "vosk"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	output := body["output"].([]any)
	if len(output) != 3 {
		t.Fatalf("expected 3 error messages, got %v", output)
	}
	first := output[0].(map[string]any)["error"]
	if first != "engine should be 'faster-whisper' or 'stable-whisper', but is vosk instead." {
		t.Errorf("unexpected first error %v", first)
	}
}

func TestRun_StatusAndStream(t *testing.T) {
	r, _ := newTestRouter(t)
	rr, body := do(t, r, http.MethodPost, "/run", map[string]any{
		"input": map[string]any{"model": "tiny", "url": "u", "streaming": true},
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	id := body["id"].(string)

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, st := do(t, r, http.MethodGet, "/status/"+id, nil)
		if st["status"] == "COMPLETED" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not complete: %v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, page := do(t, r, http.MethodGet, "/stream/"+id+"?offset=0", nil)
	stream := page["stream"].([]any)
	if len(stream) != 1 || page["offset"] != float64(1) {
		t.Fatalf("unexpected stream page %v", page)
	}
	batch := stream[0].(map[string]any)["output"].([]any)
	if len(batch) != 1 {
		t.Errorf("expected a one-record batch, got %v", batch)
	}

	_, page = do(t, r, http.MethodGet, "/stream/"+id+"?offset=1", nil)
	if len(page["stream"].([]any)) != 0 {
		t.Errorf("expected no messages after offset 1, got %v", page["stream"])
	}
}

func TestErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	const missing = "3f1c6f8e-8a43-4d8f-9d5b-6f1f0d6b9c11"
	tests := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodGet, "/status/" + missing, nil, http.StatusNotFound},
		{http.MethodPost, "/cancel/" + missing, nil, http.StatusNotFound},
		{http.MethodGet, "/status/not-a-uuid", nil, http.StatusBadRequest},
		{http.MethodGet, "/stream/" + missing + "?offset=-1", nil, http.StatusBadRequest},
		{http.MethodPost, "/run", map[string]any{"nope": 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.method, tt.path), func(t *testing.T) {
			rr, body := do(t, r, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body)
			}
			if _, ok := body["error"].(map[string]any)["code"]; !ok {
				t.Errorf("expected an error body, got %v", body)
			}
		})
	}
}

func TestHealth_ReportsModel(t *testing.T) {
	r, cache := newTestRouter(t)
	_, body := do(t, r, http.MethodGet, "/health", nil)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if _, ok := body["model"]; ok {
		t.Error("no model should be reported before the first job")
	}

	if _, err := cache.EnsureLoaded(context.Background(), "faster-whisper", "tiny"); err != nil {
		t.Fatal(err)
	}
	_, body = do(t, r, http.MethodGet, "/health", nil)
	model, ok := body["model"].(map[string]any)
	if !ok || model["engine"] != "faster-whisper" || model["model"] != "tiny" {
		t.Errorf("unexpected model %v", body["model"])
	}
}

func TestHealth_Unhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health("svc", "v", func(context.Context) []component.Health {
		return []component.Health{{Name: "redis", Status: component.StatusUnhealthy}}
	}, nil))
	rr, _ := do(t, r, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}
