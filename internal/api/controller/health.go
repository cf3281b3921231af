package controller

import (
	"github.com/labstack/echo/v4"
)

func (c *Controller) Health(ctx echo.Context) error {
	health, err := c.service.Health(ctx.Request().Context())
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{
		"service":  health.Service,
		"driver":   health.Driver,
		"metrics":  health.Metrics,
		"snapshot": health.Snapshot,
	})
}
