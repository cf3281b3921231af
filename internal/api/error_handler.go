package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ougirez/areametrics/internal/domain"
	"github.com/ougirez/areametrics/internal/pkg/constants"
	"github.com/ougirez/areametrics/internal/pkg/logger"
)

// httpErrorHandler renders every failure as {success: false, error, code}. Only CodedError reasons
// and echo's own HTTP errors reach the caller; anything else is logged and reported as internal.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	ctx := c.Request().Context()
	code := http.StatusInternalServerError
	msg := constants.ErrInternal.Reason()

	var (
		ce *constants.CodedError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &ce):
		code = ce.Code()
		msg = ce.Reason()
		if code >= http.StatusInternalServerError {
			logger.Errorf(ctx, "%s %s: %s", c.Request().Method, c.Path(), err.Error())
		}
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprint(he.Message)
	default:
		logger.Errorf(ctx, "%s %s: %s", c.Request().Method, c.Path(), err.Error())
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}

	_ = c.JSON(code, domain.ErrorResponse{
		Success: false,
		Message: msg,
		Code:    code,
	})
}
