package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionEnded = echo.NewHTTPError(http.StatusUnauthorized, "session ended, please log in again")
)

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(kind core.ErrorKind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindNetwork, core.KindTimeout:
		return http.StatusServiceUnavailable
	case core.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that answers every error with a core.Result.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var res core.Result

		if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
			if herr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
			} else {
				if herr.Internal != nil {
					if inner, ok := herr.Internal.(*echo.HTTPError); ok {
						herr = inner
					}
				}
				code = herr.Code
			}
			res = core.Result{Message: fmt.Sprint(herr.Message)}
		} else {
			res = core.NewResult(nil, err)
			code = statusOf(core.KindOf(err))

			if code == http.StatusInternalServerError {
				msg := http.StatusText(code)
				var person core.Person
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					person = claims
				}
				logger.Error(msg, errors.Wrap(err, msg), person)
				if !ctx.Echo().Debug {
					res.Message = msg
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
