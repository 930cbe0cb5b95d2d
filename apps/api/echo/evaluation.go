package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/evaluation"
)

type evaluationApi struct {
	svc      *evaluation.Service
	validate *validator.Validate
}

func registerEvaluationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *evaluation.Service, validate *validator.Validate) {
	api := evaluationApi{svc: svc, validate: validate}

	eg := g.Group("/evaluations", jwt)
	eg.POST("", api.submit, clientMiddleware())
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)
}

// submit records a client's evaluation. The client re-enters its password to sign it.
func (api *evaluationApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data evaluation.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	data.ClientID = claims.ClientID
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	view, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting evaluation")
	}
	return ctx.JSON(http.StatusCreated, view)
}

// query lists evaluations, newest first by default. Clients only see their own.
func (api *evaluationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsAdmin || claims.IsClient) {
		return errHttpForbidden
	}

	var filter evaluation.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []evaluation.View{})
	}
	var created CreatedRange
	if err := created.Bind(ctx); err != nil {
		return err
	}
	filter.CreatedFrom, filter.CreatedTo = created.From, created.To
	if claims.IsClient {
		filter.ClientID = claims.ClientID
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	views, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying evaluations")
	}
	if views == nil {
		views = []evaluation.View{}
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *evaluationApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsAdmin || claims.IsClient) {
		return errHttpForbidden
	}

	view, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if core.IsNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding evaluation")
	}
	if claims.IsClient && view.ClientID != claims.ClientID {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, view)
}
