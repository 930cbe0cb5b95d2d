package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/vigil/apps/api/echo"
	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/user"
	emailsvc "github.com/trezcool/vigil/services/email"
	logsvc "github.com/trezcool/vigil/services/logger"
	metricsvc "github.com/trezcool/vigil/services/metrics"
	"github.com/trezcool/vigil/storage/database"
	inmemdb "github.com/trezcool/vigil/storage/database/inmem"
	sqlxrepos "github.com/trezcool/vigil/storage/database/sqlx"
)

type repositories struct {
	users       user.Repository
	guards      guard.Repository
	clients     client.Repository
	evaluations evaluation.Repository
	closer      io.Closer
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	console, err := logsvc.NewConsole(conf.Debug)
	if err != nil {
		log.Fatalf("building console logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(console.Named("api"), conf)
	logger.Enable(!conf.Debug)
	defer func() { _ = logger.Sync() }()

	dbLogger := logsvc.NewRollbarLogger(console.Named("db"), conf)

	// set up DB
	repos, err := setUpRepositories(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if repos.closer != nil {
		defer func() {
			if err = repos.closer.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
	}

	policy, err := evaluation.ParsePolicy(conf.Evaluation.CompletenessPolicy)
	if err != nil {
		logger.Fatal(fmt.Sprintf("reading evaluation config: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	metrics := metricsvc.NewManager()

	usrSvc := user.NewService(repos.users)
	grdSvc := guard.NewService(repos.guards)
	cltSvc := client.NewService(repos.clients)
	evalSvc := evaluation.NewService(repos.evaluations, cltSvc, grdSvc, mailSvc, logger, evaluation.Options{
		Policy:     policy,
		EditWindow: conf.Evaluation.EditWindow,
		Metrics:    metrics,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(conf.Debug); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("rubric").Set(evalSvc.Rubric().Version())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Metrics:    metrics,
		UserSvc:    usrSvc,
		GuardSvc:   grdSvc,
		ClientSvc:  cltSvc,
		EvalSvc:    evalSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepositories opens the configured store. The memory engine is not persisted.
func setUpRepositories(ctx context.Context, conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		return repositories{
			users:       inmemdb.NewUserRepository(db),
			guards:      inmemdb.NewGuardRepository(db),
			clients:     inmemdb.NewClientRepository(db),
			evaluations: inmemdb.NewEvaluationRepository(db),
		}, nil
	}

	if err := database.Provision(ctx, conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Connect(ctx, conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	return repositories{
		users:       sqlxrepos.NewUserRepository(db),
		guards:      sqlxrepos.NewGuardRepository(db),
		clients:     sqlxrepos.NewClientRepository(db),
		evaluations: sqlxrepos.NewEvaluationRepository(db),
		closer:      db,
	}, nil
}
