package controller

import (
	"github.com/labstack/echo/v4"
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/service/lookup"
)

type refRequest struct {
	Ref string `param:"ref" validate:"required"`
}

func (c *Controller) Resolve(ctx echo.Context) error {
	var req struct {
		Level string `param:"level" validate:"required"`
		Ref   string `param:"ref" validate:"required"`
	}
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	level, err := domain.ParseLevel(req.Level)
	if err != nil {
		return constants.ErrBadRequest.Withf("%s", err.Error())
	}

	id, err := c.service.Resolve(ctx.Request().Context(), level, req.Ref)
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"level": level, "ref": req.Ref, "id": id})
}

func (c *Controller) GetCountries(ctx echo.Context) error {
	countries, err := c.service.Countries(ctx.Request().Context())
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"countries": countries})
}

func (c *Controller) GetProvinces(ctx echo.Context) error {
	return c.children(ctx, domain.LevelProvince, "provinces")
}

func (c *Controller) GetCities(ctx echo.Context) error {
	return c.children(ctx, domain.LevelCity, "cities")
}

func (c *Controller) GetAreasInCity(ctx echo.Context) error {
	return c.children(ctx, domain.LevelArea, "areas")
}

func (c *Controller) children(ctx echo.Context, level domain.Level, key string) error {
	var req refRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	children, err := c.service.Children(ctx.Request().Context(), level, req.Ref)
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{key: children})
}

func (c *Controller) ListAreas(ctx echo.Context) error {
	var req struct {
		Metrics string `query:"metrics"`
		Limit   int    `query:"limit" validate:"omitempty,min=1"`
	}
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	areas, source, err := c.service.ListAreas(ctx.Request().Context(), lookup.ParseCodes(req.Metrics), req.Limit)
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"areas": areas, "source": source})
}

func (c *Controller) SearchAreas(ctx echo.Context) error {
	results, err := c.service.SearchAreas(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"areas": results})
}

func (c *Controller) GetArea(ctx echo.Context) error {
	var req refRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	area, err := c.service.AreaDetail(ctx.Request().Context(), req.Ref)
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"area": area})
}
