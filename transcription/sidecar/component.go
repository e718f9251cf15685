package sidecar

import (
	"context"

	"github.com/kbukum/whisperjob/component"
	"github.com/kbukum/whisperjob/logger"
)

// Component reports sidecar reachability. Models load lazily on the first
// job, so an unreachable sidecar at startup is logged, not fatal.
type Component struct {
	loader  *Loader
	baseURL string
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps loader, which was built from cfg.
func NewComponent(loader *Loader, cfg Config) *Component {
	cfg.ApplyDefaults()
	return &Component{loader: loader, baseURL: cfg.BaseURL}
}

func (c *Component) Name() string { return "sidecar" }

func (c *Component) Start(ctx context.Context) error {
	if err := c.loader.Ping(ctx); err != nil {
		c.loader.log.Warn("Sidecar not reachable yet", logger.MergeWithError(logger.Fields("base_url", c.baseURL), err))
	}
	return nil
}

func (c *Component) Stop(context.Context) error { return nil }

func (c *Component) Health(ctx context.Context) component.Health {
	if err := c.loader.Ping(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	return component.Description{Type: "sidecar", Details: c.baseURL}
}
