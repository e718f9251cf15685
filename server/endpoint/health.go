package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisperjob/component"
	"github.com/kbukum/whisperjob/modelcache"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// ModelInfo reports the model cache slot; nil means nothing is loaded.
type ModelInfo func() *modelcache.Loaded

type loadedModel struct {
	Engine   string    `json:"engine"`
	Model    string    `json:"model"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Health reports overall status, component health and the cached model.
// An unhealthy component turns the response into a 503.
func Health(service, version string, checker HealthChecker, model ModelInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}
		status := component.Overall(components)

		body := gin.H{
			"status":     status,
			"service":    service,
			"version":    version,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		}
		if model != nil {
			if m := model(); m != nil {
				body["model"] = loadedModel{Engine: m.Engine, Model: m.Model, LoadedAt: m.LoadedAt}
			}
		}

		httpStatus := http.StatusOK
		if status == component.StatusUnhealthy {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, body)
	}
}
