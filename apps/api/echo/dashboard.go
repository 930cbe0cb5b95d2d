package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core/evaluation"
)

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *evaluation.Service) {
	g.GET("/dashboard", func(ctx echo.Context) error {
		dash, err := svc.Dashboard(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "building dashboard")
		}
		return ctx.JSON(http.StatusOK, dash)
	}, jwt, adminMiddleware())
}
