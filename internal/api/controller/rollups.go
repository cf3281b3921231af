package controller

import (
	"github.com/labstack/echo/v4"
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/service/lookup"
)

func (c *Controller) GetCityRollup(ctx echo.Context) error {
	return c.rollup(ctx, domain.LevelCity)
}

func (c *Controller) GetProvinceRollup(ctx echo.Context) error {
	return c.rollup(ctx, domain.LevelProvince)
}

func (c *Controller) rollup(ctx echo.Context, level domain.Level) error {
	var req struct {
		Ref     string `param:"ref" validate:"required"`
		Metrics string `query:"metrics"`
	}
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	rollup, err := c.service.Rollup(ctx.Request().Context(), level, req.Ref, lookup.ParseCodes(req.Metrics))
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"rollup": rollup})
}
