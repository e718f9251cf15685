package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/server/middleware"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.MaxBodySize != "50MB" || cfg.WriteTimeout != 120 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.MaxBodySize = "huge"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid max_body_size")
	}
}

func TestServer_StartServeStop(t *testing.T) {
	srv, err := New(Config{Host: "127.0.0.1", Port: 0}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	srv.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	if h := srv.Health(context.Background()); h.Status != "unhealthy" {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", srv.Addr()))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(middleware.HeaderRequestID) == "" {
		t.Error("expected a request id on the response")
	}
	if h := srv.Health(context.Background()); h.Status != "healthy" {
		t.Errorf("expected healthy after start, got %s", h.Status)
	}
}

func TestServer_BodyLimit(t *testing.T) {
	srv, err := New(Config{MaxBodySize: "16B"}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	srv.Engine().POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			RespondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, body)
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/echo",
		strings.NewReader(`{"input":"far more than sixteen bytes"}`)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rr.Code)
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"app error", apperrors.NotFound("job", "x"), http.StatusNotFound, "NOT_FOUND"},
		{"wrapped app error", fmt.Errorf("ctx: %w", apperrors.ServiceUnavailable("job queue")), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"too large", &http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			RespondWithError(c, tt.err)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			var body apperrors.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if string(body.Error.Code) != tt.wantBody {
				t.Errorf("expected %s, got %s", tt.wantBody, body.Error.Code)
			}
		})
	}
}
