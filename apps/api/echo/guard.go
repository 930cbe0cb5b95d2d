package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
)

var errGrdNotFoundInCtx = errors.New("guard object not found in echo.Context")

type guardApi struct {
	svc      *guard.Service
	evalSvc  *evaluation.Service
	validate *validator.Validate
}

func registerGuardAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *guard.Service,
	evalSvc *evaluation.Service,
	validate *validator.Validate,
) {
	api := guardApi{svc: svc, evalSvc: evalSvc, validate: validate}

	// clients list guards to pick the one they evaluate
	gg := g.Group("/guards", jwt)
	gg.GET("", api.query)
	gg.POST("", api.create, adminMiddleware())

	dg := gg.Group("/:guard_id", objectGuardMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/summary", api.summary, adminMiddleware())
}

func (api *guardApi) create(ctx echo.Context) error {
	var data guard.NewGuard
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGuard")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grd, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating guard")
	}
	return ctx.JSON(http.StatusCreated, grd)
}

func (api *guardApi) query(ctx echo.Context) error {
	var filter guard.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []guard.Guard{})
	}
	var created CreatedRange
	if err := created.Bind(ctx); err != nil {
		return err
	}
	filter.CreatedFrom, filter.CreatedTo = created.From, created.To
	ordering := new(Ordering)
	ordering.Bind(ctx)

	guards, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying guards")
	}
	if guards == nil {
		guards = []guard.Guard{}
	}
	return ctx.JSON(http.StatusOK, guards)
}

func (api *guardApi) retrieve(ctx echo.Context) error {
	grd, ok := ctx.Get("object").(guard.Guard)
	if !ok {
		return errors.Wrap(errGrdNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *guardApi) destroy(ctx echo.Context) error {
	grd, ok := ctx.Get("object").(guard.Guard)
	if !ok {
		return errors.Wrap(errGrdNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), grd.GuardID); err != nil {
		return errors.Wrap(err, "deleting guard")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *guardApi) summary(ctx echo.Context) error {
	grd, ok := ctx.Get("object").(guard.Guard)
	if !ok {
		return errors.Wrap(errGrdNotFoundInCtx, "retrieving object from context")
	}
	sum, err := api.evalSvc.GuardSummary(ctx.Request().Context(), grd.GuardID)
	if err != nil {
		return errors.Wrap(err, "summarizing guard")
	}
	if sum.History == nil {
		sum.History = []evaluation.View{}
	}
	return ctx.JSON(http.StatusOK, sum)
}

func objectGuardMiddleware(svc *guard.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			grd, err := svc.Get(ctx.Request().Context(), ctx.Param("guard_id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding guard")
			}
			ctx.Set("object", grd)
			return next(ctx)
		}
	}
}
