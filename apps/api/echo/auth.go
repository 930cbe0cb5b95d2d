package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/user"
)

const (
	tokenContextKey  = "userToken"
	contextUserKey   = "user"
	contextClientKey = "client"
	tokenAudience    = "Vigil"
)

// Claims represents the authorization claims transmitted via a JWT.
// Admin tokens carry the User's ID as subject, client tokens the Client's ID.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`  // -> ADMIN PORTAL
	IsClient     bool     `json:"is_client,omitempty"` // -> CLIENT PORTAL
	ClientID     string   `json:"client_id,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

type authenticator struct {
	conf *core.Config
}

func newAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{conf: conf}
}

func (a *authenticator) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(a.conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

func (a *authenticator) standardClaims(subject string) jwt.StandardClaims {
	now := time.Now()
	return jwt.StandardClaims{
		Issuer:    a.conf.AppName,
		Subject:   subject,
		Audience:  tokenAudience,
		ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
		IssuedAt:  now.Unix(),
	}
}

func origIssuedAt(std jwt.StandardClaims, origIat []int64) int64 {
	if len(origIat) > 0 {
		return origIat[0]
	}
	return std.IssuedAt
}

func (a *authenticator) userClaims(usr user.User, origIat ...int64) *Claims {
	std := a.standardClaims(usr.ID)
	return &Claims{
		StandardClaims: std,
		OrigIssuedAt:   origIssuedAt(std, origIat),
		Username:       usr.Username,
		Email:          usr.Email,
		IsAdmin:        usr.IsAdmin(),
		Roles:          usr.Roles,
	}
}

func (a *authenticator) clientClaims(clt client.Client, origIat ...int64) *Claims {
	std := a.standardClaims(clt.ID)
	return &Claims{
		StandardClaims: std,
		OrigIssuedAt:   origIssuedAt(std, origIat),
		Email:          clt.Email,
		IsClient:       true,
		ClientID:       clt.ClientID,
	}
}

// generateToken generates a signed JWT token string representing the Claims.
func (a *authenticator) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(a.conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// GenerateUserToken issues an admin token for usr.
func GenerateUserToken(conf *core.Config, usr user.User) (string, error) {
	a := newAuthenticator(conf)
	return a.generateToken(a.userClaims(usr))
}

// GenerateClientToken issues a client portal token for clt.
func GenerateClientToken(conf *core.Config, clt client.Client) (string, error) {
	a := newAuthenticator(conf)
	return a.generateToken(a.clientClaims(clt))
}

func (a *authenticator) authenticateUser(ctx context.Context, uname, pwd string, svc *user.Service) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}
	if usr, err = svc.SetLastLogin(ctx, usr); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return a.userClaims(usr), nil
}

func (a *authenticator) authenticateClient(ctx context.Context, clientID, pwd string, svc *client.Service) (*Claims, error) {
	clt, err := svc.Authenticate(ctx, clientID, pwd)
	if err != nil {
		if errors.Cause(err) == client.ErrInvalidCredentials {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "authenticating client")
	}
	return a.clientClaims(clt), nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin {
		return user.User{}, errHttpForbidden
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func getContextClient(ctx echo.Context, svc *client.Service) (client.Client, error) {
	if clt, ok := ctx.Get(contextClientKey).(client.Client); ok {
		return clt, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return client.Client{}, errors.Wrap(err, "getting context claims")
	}
	if !claims.IsClient {
		return client.Client{}, errHttpForbidden
	}

	clt, err := svc.Get(ctx.Request().Context(), claims.ClientID)
	if err != nil {
		if core.IsNotFound(err) {
			return client.Client{}, errUnauthorized
		}
		return client.Client{}, errors.Wrap(err, "finding client")
	}
	ctx.Set(contextClientKey, clt)
	return clt, nil
}

func contextHasAnyRole(claims Claims, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		for _, r := range claims.Roles {
			if role == r {
				return true
			}
		}
	}
	return false
}

func (a *authenticator) refreshToken(ctx echo.Context, usrSvc *user.Service, cltSvc *client.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	var newClaims *Claims
	if claims.IsClient {
		clt, err := getContextClient(ctx, cltSvc)
		if err != nil {
			return "", errors.Wrap(err, "getting context client")
		}
		newClaims = a.clientClaims(clt, claims.OrigIssuedAt)
	} else {
		usr, err := getContextUser(ctx, usrSvc)
		if err != nil {
			return "", errors.Wrap(err, "getting context user")
		}
		// check if user is still active
		if !usr.IsActive {
			return "", errAccountDeactivated
		}
		newClaims = a.userClaims(usr, claims.OrigIssuedAt)
	}

	token, err := a.generateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
