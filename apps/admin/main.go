package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/user"
	emailsvc "github.com/trezcool/vigil/services/email"
	logsvc "github.com/trezcool/vigil/services/logger"
	"github.com/trezcool/vigil/storage/database"
	inmemdb "github.com/trezcool/vigil/storage/database/inmem"
	sqlxrepos "github.com/trezcool/vigil/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	console, err := logsvc.NewConsole(conf.Debug)
	if err != nil {
		log.Fatalf("building console logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(console.Named("admin"), conf)
	defer func() { _ = logger.Sync() }()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	cli := commandLine{validate: validate, translator: translator, out: os.Stdout}

	var (
		grdRepo  guard.Repository
		cltRepo  client.Repository
		evalRepo evaluation.Repository
	)
	if conf.Database.Engine == "memory" {
		mem := inmemdb.Open()
		cli.usrRepo = inmemdb.NewUserRepository(mem)
		grdRepo = inmemdb.NewGuardRepository(mem)
		cltRepo = inmemdb.NewClientRepository(mem)
		evalRepo = inmemdb.NewEvaluationRepository(mem)
	} else {
		db, err := database.Connect(context.Background(), conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()
		cli.db = db.DB
		cli.usrRepo = sqlxrepos.NewUserRepository(db)
		grdRepo = sqlxrepos.NewGuardRepository(db)
		cltRepo = sqlxrepos.NewClientRepository(db)
		evalRepo = sqlxrepos.NewEvaluationRepository(db)
	}

	policy, err := evaluation.ParsePolicy(conf.Evaluation.CompletenessPolicy)
	if err != nil {
		logger.Fatal(fmt.Sprintf("reading evaluation config: %v", err), err)
	}
	cli.grdSvc = guard.NewService(grdRepo)
	cli.cltSvc = client.NewService(cltRepo)
	cli.evalSvc = evaluation.NewService(evalRepo, cli.cltSvc, cli.grdSvc, emailsvc.NewConsoleService(conf, logger), logger, evaluation.Options{
		Policy:     policy,
		EditWindow: conf.Evaluation.EditWindow,
	})

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", cli.describe(err))
		}
		_ = logger.Sync()
		os.Exit(1)
	}
}
