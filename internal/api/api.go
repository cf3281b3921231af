package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/ougirez/areametrics/internal/api/controller"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/metrics"
	"github.com/ougirez/areametrics/internal/service/lookup"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type Config struct {
	CORSOrigins []string
	LogLevel    string
}

type APIService struct {
	router *echo.Echo
}

func (svc *APIService) Serve(addr string) {
	if err := svc.router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(context.Background(), err)
	}
}

func (svc *APIService) Shutdown(ctx context.Context) error {
	return svc.router.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (svc *APIService) Handler() http.Handler {
	return svc.router
}

func NewAPIService(service *lookup.Service, cfg Config) *APIService {
	svc := &APIService{router: echo.New()}

	svc.router.HideBanner = true
	svc.router.Logger.SetLevel(echoLogLevel(cfg.LogLevel))
	svc.router.JSONSerializer = NewSerializer()
	svc.router.Validator = NewValidator()
	svc.router.Binder = NewBinder()
	svc.router.HTTPErrorHandler = httpErrorHandler

	svc.router.Use(middleware.Recover())
	svc.router.Use(svc.RequestIDMiddleware())
	svc.router.Use(svc.RequestLoggerMiddleware())
	svc.router.Use(svc.MetricsMiddleware)
	svc.router.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
	}))

	svc.router.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	cntrl := controller.NewController(service)

	api := svc.router.Group("/api")
	api.GET("/health", cntrl.Health)
	api.GET("/resolve/:level/:ref", cntrl.Resolve)

	api.GET("/countries", cntrl.GetCountries)
	api.GET("/provinces/:ref", cntrl.GetProvinces)
	api.GET("/cities/:ref", cntrl.GetCities)
	api.GET("/provinces/:ref/metrics/rollup", cntrl.GetProvinceRollup)
	api.GET("/cities/:ref/metrics/rollup", cntrl.GetCityRollup)

	areas := api.Group("/areas")
	areas.GET("", cntrl.ListAreas)
	areas.GET("/search", cntrl.SearchAreas)
	areas.GET("/in/:ref", cntrl.GetAreasInCity)

	area := api.Group("/area/:ref")
	area.GET("", cntrl.GetArea)
	area.GET("/metrics/latest", cntrl.GetLatestMetrics)
	area.GET("/metrics/:code/series", cntrl.GetSeries)
	area.GET("/metrics/:code/trend", cntrl.GetTrend)
	area.GET("/statistics", cntrl.GetStatistics)
	area.GET("/types/distribution", cntrl.GetTypeDistribution)
	area.GET("/price-series", cntrl.GetPriceSeries)

	metricsGroup := api.Group("/metrics")
	metricsGroup.GET("/catalog", cntrl.GetCatalog)
	metricsGroup.POST("/snapshot/refresh", cntrl.RefreshSnapshot)

	return svc
}

func echoLogLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	}
	return log.INFO
}
