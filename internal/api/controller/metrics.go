package controller

import (
	"github.com/labstack/echo/v4"
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/service/aggregation"
	"github.com/ougirez/areametrics/internal/service/lookup"
)

type metricRequest struct {
	Ref  string `param:"ref" validate:"required"`
	Code string `param:"code" validate:"required"`
}

type seriesRequest struct {
	Ref    string `param:"ref" validate:"required"`
	Code   string `param:"code" validate:"required"`
	Months *int   `query:"months" validate:"omitempty,min=1,max=1200"`
	Start  string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End    string `query:"end" validate:"omitempty,datetime=2006-01-02"`
}

func (r seriesRequest) seriesRange() (aggregation.SeriesRange, error) {
	rng := aggregation.SeriesRange{Months: r.Months}
	if r.Start != "" {
		start, err := domain.ParseDate(r.Start)
		if err != nil {
			return rng, constants.ErrBadRequest.Withf("start: %s", err.Error())
		}
		rng.Start = &start
	}
	if r.End != "" {
		end, err := domain.ParseDate(r.End)
		if err != nil {
			return rng, constants.ErrBadRequest.Withf("end: %s", err.Error())
		}
		rng.End = &end
	}
	return rng, nil
}

func (c *Controller) GetLatestMetrics(ctx echo.Context) error {
	var req struct {
		Ref     string `param:"ref" validate:"required"`
		Metrics string `query:"metrics"`
	}
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	latest, err := c.service.LatestMetrics(ctx.Request().Context(), req.Ref, lookup.ParseCodes(req.Metrics))
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"metrics": latest})
}

func (c *Controller) GetSeries(ctx echo.Context) error {
	var req seriesRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	rng, err := req.seriesRange()
	if err != nil {
		return err
	}

	series, err := c.service.Series(ctx.Request().Context(), req.Ref, req.Code, rng)
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"code": req.Code, "series": series})
}

func (c *Controller) GetTrend(ctx echo.Context) error {
	var req metricRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	trend, err := c.service.Trend(ctx.Request().Context(), req.Ref, req.Code)
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"trend": trend})
}

func (c *Controller) GetStatistics(ctx echo.Context) error {
	var req refRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	stats, err := c.service.AreaStatistics(ctx.Request().Context(), req.Ref)
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"statistics": stats})
}

func (c *Controller) GetTypeDistribution(ctx echo.Context) error {
	var req refRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	distribution, err := c.service.TypeDistribution(ctx.Request().Context(), req.Ref)
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"distribution": distribution})
}

func (c *Controller) GetPriceSeries(ctx echo.Context) error {
	var req struct {
		Ref   string `param:"ref" validate:"required"`
		Years int    `query:"years" validate:"omitempty,min=1,max=100"`
	}
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if req.Years == 0 {
		req.Years = 10
	}

	series, err := c.service.PriceSeries(ctx.Request().Context(), req.Ref, req.Years, c.now())
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"years": req.Years, "series": series})
}

func (c *Controller) GetCatalog(ctx echo.Context) error {
	catalog, err := c.service.Catalog(ctx.Request().Context())
	if err != nil {
		return err
	}

	return ok(ctx, echo.Map{"metrics": catalog})
}
