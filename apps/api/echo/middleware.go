package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	metricsvc "github.com/trezcool/vigil/services/metrics"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(claims, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func clientMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsClient && claims.ClientID != "" {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// metricsMiddleware records every request by route path, after the error handler has written the response.
func metricsMiddleware(m *metricsvc.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}
			endpoint := ctx.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			m.ObserveHTTPRequest(endpoint, ctx.Request().Method, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
