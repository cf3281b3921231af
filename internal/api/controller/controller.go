package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ougirez/areametrics/internal/service/lookup"
)

type Controller struct {
	service *lookup.Service
	now     func() time.Time
}

func NewController(service *lookup.Service) *Controller {
	return &Controller{service: service, now: time.Now}
}

func ok(ctx echo.Context, payload echo.Map) error {
	payload["success"] = true
	return ctx.JSON(http.StatusOK, payload)
}
