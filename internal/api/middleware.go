package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
	"github.com/ougirez/areametrics/internal/pkg/metrics"
)

// RequestIDMiddleware keeps an incoming X-Request-ID or generates one, and puts it in the request
// context for the logger.
func (svc *APIService) RequestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    uuid.NewString,
		TargetHeader: constants.HeaderRequestID,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := context.WithValue(c.Request().Context(), constants.CtxKeyRequestID, id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}

func (svc *APIService) RequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info(c.Request().Context(), "request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
			)
			return nil
		},
	})
}

func (svc *APIService) MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			var (
				ce *constants.CodedError
				he *echo.HTTPError
			)
			switch {
			case errors.As(err, &ce):
				status = ce.Code()
			case errors.As(err, &he):
				status = he.Code
			default:
				status = http.StatusInternalServerError
			}
		}

		route := c.Path()
		metrics.RequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
		metrics.RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		return err
	}
}
