package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "coordinator not authenticated")
	errInvalidToken   = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errRefreshExpired = echo.NewHTTPError(http.StatusUnauthorized, "refresh has expired")
	errForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errSchoolAccess   = echo.NewHTTPError(http.StatusUnauthorized, "a coordinator token or the school PIN is required")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var payload core.ErrorPayload

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				payload = core.ErrorPayload{Error: httpMessage(origErr), Kind: core.KindAuth}
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			payload = core.ErrorPayload{Error: httpMessage(origErr), Kind: core.KindHTTP}
			if code == http.StatusUnauthorized {
				payload.Kind = core.KindAuth
			}
		case validator.ValidationErrors:
			fields := make([]core.FieldError, 0, len(origErr))
			for _, vErr := range origErr {
				fields = append(fields, core.FieldError{Field: vErr.Field(), Error: vErr.Error()})
			}
			payload, code = core.NewErrorPayload(core.NewValidationError(nil, fields...))
		default:
			payload, code = core.NewErrorPayload(err)
			if code == http.StatusInternalServerError {
				usr := school.Teacher{SchoolID: ctx.Param("id")}
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Email = claims.Email
					usr.SchoolID = claims.SchoolID
					usr.Role = school.Role(claims.Role)
				}
				logger.Error(payload.Error, errors.Wrap(err, payload.Error), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
				if ctx.Echo().Debug {
					payload.Error = err.Error()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, payload)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func httpMessage(herr *echo.HTTPError) string {
	if msg, ok := herr.Message.(string); ok {
		return msg
	}
	return http.StatusText(herr.Code)
}
