// Package endpoint holds the gin handlers of the job API.
package endpoint

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/runtime"
	"github.com/kbukum/whisperjob/server"
	"github.com/kbukum/whisperjob/validation"
	"github.com/kbukum/whisperjob/worker"
)

// JobRuntime is the part of runtime.Queue the API needs.
type JobRuntime interface {
	Submit(ctx context.Context, input map[string]any) (*runtime.Record, error)
	Status(ctx context.Context, id string) (*runtime.Record, error)
	Cancel(ctx context.Context, id string) (*runtime.Record, error)
	Wait(ctx context.Context, id string) (*runtime.Record, error)
	Stream(ctx context.Context, id string, offset int) (runtime.StreamPage, error)
}

// Jobs serves the job routes.
type Jobs struct {
	runtime     JobRuntime
	syncTimeout time.Duration
}

// NewJobs creates the job handlers. syncTimeout bounds /runsync.
func NewJobs(rt JobRuntime, syncTimeout time.Duration) *Jobs {
	return &Jobs{runtime: rt, syncTimeout: syncTimeout}
}

// Register mounts the job routes on r.
func (h *Jobs) Register(r gin.IRoutes) {
	r.POST("/run", h.Run)
	r.POST("/runsync", h.RunSync)
	r.GET("/status/:id", h.Status)
	r.GET("/stream/:id", h.Stream)
	r.POST("/cancel/:id", h.Cancel)
}

type runRequest struct {
	Input map[string]any `json:"input" binding:"required"`
}

type jobRef struct {
	ID     string         `json:"id"`
	Status runtime.Status `json:"status"`
}

type statusResponse struct {
	ID     string           `json:"id"`
	Status runtime.Status   `json:"status"`
	Output []worker.Message `json:"output,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type streamItem struct {
	Output worker.Message `json:"output"`
}

type streamResponse struct {
	ID     string         `json:"id"`
	Status runtime.Status `json:"status"`
	Stream []streamItem   `json:"stream"`
	Offset int            `json:"offset"`
}

func (h *Jobs) submit(c *gin.Context) (*runtime.Record, bool) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, bindError(err))
		return nil, false
	}
	rec, err := h.runtime.Submit(c.Request.Context(), req.Input)
	if err != nil {
		server.RespondWithError(c, err)
		return nil, false
	}
	return rec, true
}

// Run queues a job and returns its id.
func (h *Jobs) Run(c *gin.Context) {
	rec, ok := h.submit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, jobRef{ID: rec.ID, Status: rec.Status})
}

// RunSync queues a job and waits for it. A job still running when the wait
// ends is returned as a 202 reference to poll.
func (h *Jobs) RunSync(c *gin.Context) {
	rec, ok := h.submit(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.syncTimeout)
	defer cancel()

	rec, err := h.runtime.Wait(ctx, rec.ID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if !rec.Status.Terminal() {
		c.JSON(http.StatusAccepted, jobRef{ID: rec.ID, Status: rec.Status})
		return
	}
	c.JSON(http.StatusOK, toStatus(rec))
}

// Status returns the job state and, once finished, its output.
func (h *Jobs) Status(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	rec, err := h.runtime.Status(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatus(rec))
}

// Stream returns the messages emitted after ?offset and the offset to use
// on the next poll.
func (h *Jobs) Stream(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			server.RespondWithError(c, errors.InvalidInput("offset", "must be a non-negative integer"))
			return
		}
		offset = n
	}

	page, err := h.runtime.Stream(c.Request.Context(), id, offset)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	items := make([]streamItem, len(page.Messages))
	for i, m := range page.Messages {
		items[i] = streamItem{Output: m}
	}
	c.JSON(http.StatusOK, streamResponse{
		ID:     page.Record.ID,
		Status: page.Record.Status,
		Stream: items,
		Offset: page.Next,
	})
}

// Cancel stops a waiting or running job.
func (h *Jobs) Cancel(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	rec, err := h.runtime.Cancel(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobRef{ID: rec.ID, Status: rec.Status})
}

// jobID reads the :id path parameter. Job ids are UUIDs, so anything else is
// rejected before touching the store.
func jobID(c *gin.Context) (string, bool) {
	id, err := validation.ValidateUUID("id", c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return "", false
	}
	return id.String(), true
}

func toStatus(rec *runtime.Record) statusResponse {
	return statusResponse{ID: rec.ID, Status: rec.Status, Output: rec.Output, Error: rec.Error}
}

// bindError keeps body-size errors intact and reports the rest as invalid
// input.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return err
	}
	return errors.InvalidInput("input", err.Error()).WithCause(err)
}
