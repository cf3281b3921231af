package controller

import (
	"github.com/labstack/echo/v4"
	"github.com/ougirez/areametrics/internal/service/acceleration"
)

func (c *Controller) RefreshSnapshot(ctx echo.Context) error {
	var req struct {
		Recreate   bool  `json:"recreate"`
		Concurrent *bool `json:"concurrent"`
	}
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	result, err := c.service.Refresh(ctx.Request().Context(), acceleration.RefreshOpts{
		Recreate:   req.Recreate,
		Concurrent: req.Concurrent,
	})
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"actions": result.Actions, "state": result.State})
}
