package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/user"
	metricsvc "github.com/trezcool/vigil/services/metrics"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Metrics    *metricsvc.Manager // optional

		UserSvc   *user.Service
		GuardSvc  *guard.Service
		ClientSvc *client.Service
		EvalSvc   *evaluation.Service
	}

	Server struct {
		app      *echo.Echo
		address  string
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		address:  deps.Conf.Server.Address,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf
	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	if deps.Metrics != nil {
		s.app.Use(metricsMiddleware(deps.Metrics))
		s.app.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	auth := newAuthenticator(conf)
	jwt := middleware.JWTWithConfig(auth.jwtConfig())

	registerAuthAPI(v1, jwt, auth, deps.UserSvc, deps.ClientSvc, deps.Validate)
	registerUserAPI(v1, jwt, deps.UserSvc, deps.Validate)
	registerRubricAPI(v1, deps.EvalSvc)
	registerGuardAPI(v1, jwt, deps.GuardSvc, deps.EvalSvc, deps.Validate)
	registerClientAPI(v1, jwt, deps.ClientSvc, deps.Validate)
	registerEvaluationAPI(v1, jwt, deps.EvalSvc, deps.Validate)
	registerDashboardAPI(v1, jwt, deps.EvalSvc)
}

// Start blocks until the server stops. Errors other than a graceful shutdown are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Vigil API!")
}
