package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/user"
)

type sessionApi struct {
	auth     *authenticator
	usrSvc   *user.Service
	cltSvc   *client.Service
	validate *validator.Validate
}

func registerAuthAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	usrSvc *user.Service,
	cltSvc *client.Service,
	validate *validator.Validate,
) {
	api := sessionApi{auth: auth, usrSvc: usrSvc, cltSvc: cltSvc, validate: validate}

	ag := g.Group("/auth")
	// TODO: rate limit `/login` per IP
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

// login authenticates an administrator by username or email, or a client by client ID.
func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	var (
		claims *Claims
		err    error
	)
	if data.ClientID != "" {
		claims, err = api.auth.authenticateClient(ctx.Request().Context(), data.ClientID, data.Password, api.cltSvc)
	} else {
		claims, err = api.auth.authenticateUser(ctx.Request().Context(), data.Username, data.Password, api.usrSvc)
	}
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}

	token, err := api.auth.generateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *sessionApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx, api.usrSvc, api.cltSvc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required_without=ClientID"`
		ClientID string `json:"client_id"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	lr.ClientID = core.CleanString(lr.ClientID)
	return validate.Struct(lr)
}
