package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

// schoolAccessMiddleware admits a coordinator token issued for the school in the path,
// or the school PIN in the X-School-Pin header.
func schoolAccessMiddleware(auth *authenticator, repo school.Repository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			schoolID := ctx.Param("id")

			claims, err := auth.parseBearer(ctx)
			if err != nil {
				return err
			}
			if claims != nil {
				if claims.SchoolID != schoolID {
					return errForbidden
				}
				ctx.Set(tokenContextKey, claims)
				return next(ctx)
			}

			pin := core.CleanString(ctx.Request().Header.Get(schoolPINHeader))
			if pin == "" {
				return errSchoolAccess
			}
			sch, err := repo.GetSchoolByPIN(ctx.Request().Context(), pin)
			if err != nil {
				if core.IsNotFound(err) {
					return core.NewAuthError("invalid school PIN")
				}
				return errors.Wrap(err, "finding school by PIN")
			}
			if sch.ID != schoolID {
				return errForbidden
			}
			ctx.Set(schoolContextKey, sch)
			return next(ctx)
		}
	}
}

// coordinatorMiddleware must run after schoolAccessMiddleware.
func coordinatorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Role == string(school.RoleCoordinator) {
				return next(ctx)
			}
			return errForbidden
		}
	}
}
