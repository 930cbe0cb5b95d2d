package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
)

var errCltNotFoundInCtx = errors.New("client object not found in echo.Context")

type clientApi struct {
	svc      *client.Service
	validate *validator.Validate
}

func registerClientAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *client.Service, validate *validator.Validate) {
	api := clientApi{svc: svc, validate: validate}

	cg := g.Group("/clients", jwt, adminMiddleware())
	cg.GET("", api.query)
	cg.POST("", api.create)

	dg := cg.Group("/:client_id", objectClientMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("/password", api.resetPassword)
	dg.DELETE("", api.destroy)
}

func (api *clientApi) create(ctx echo.Context) error {
	var data client.NewClient
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClient")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	clt, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating client")
	}
	return ctx.JSON(http.StatusCreated, clt)
}

func (api *clientApi) query(ctx echo.Context) error {
	var filter client.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []client.Client{})
	}
	var created CreatedRange
	if err := created.Bind(ctx); err != nil {
		return err
	}
	filter.CreatedFrom, filter.CreatedTo = created.From, created.To
	ordering := new(Ordering)
	ordering.Bind(ctx)

	clients, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying clients")
	}
	if clients == nil {
		clients = []client.Client{}
	}
	return ctx.JSON(http.StatusOK, clients)
}

func (api *clientApi) retrieve(ctx echo.Context) error {
	clt, ok := ctx.Get("object").(client.Client)
	if !ok {
		return errors.Wrap(errCltNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, clt)
}

func (api *clientApi) resetPassword(ctx echo.Context) error {
	clt, ok := ctx.Get("object").(client.Client)
	if !ok {
		return errors.Wrap(errCltNotFoundInCtx, "retrieving object from context")
	}

	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), clt.ClientID, data.Password); err != nil {
		return errors.Wrap(err, "resetting client password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *clientApi) destroy(ctx echo.Context) error {
	clt, ok := ctx.Get("object").(client.Client)
	if !ok {
		return errors.Wrap(errCltNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), clt.ClientID); err != nil {
		return errors.Wrap(err, "deleting client")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func objectClientMiddleware(svc *client.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			clt, err := svc.Get(ctx.Request().Context(), ctx.Param("client_id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding client")
			}
			ctx.Set("object", clt)
			return next(ctx)
		}
	}
}

type (
	PasswordResetRequest struct {
		Password        string `json:"password" validate:"required,min=8"`
		PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)
