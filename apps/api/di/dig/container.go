package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/frizwan636-dotcom/attendancepro/apps/api/echo"
	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/email"
	"github.com/frizwan636-dotcom/attendancepro/services/gateway/local"
	"github.com/frizwan636-dotcom/attendancepro/services/logger"
	"github.com/frizwan636-dotcom/attendancepro/storage/database"
	"github.com/frizwan636-dotcom/attendancepro/storage/database/inmem"
	"github.com/frizwan636-dotcom/attendancepro/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the database behind the repository.
	DBCloser func() error

	RepositoryResult struct {
		dig.Out
		Repo  school.Repository
		Close DBCloser
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepository(conf *core.Config, loggerParam DBLoggerParam) RepositoryResult {
	if conf.Database.Engine == core.EngineMemory {
		loggerParam.Logger.Warn("using the in-memory database; nothing survives a restart")
		db := inmemdb.Open()
		return RepositoryResult{Repo: inmemdb.NewSchoolRepository(db), Close: func() error { return nil }}
	}

	db, err := database.Setup(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return RepositoryResult{Repo: sqlxrepos.NewSchoolRepository(db), Close: db.Close}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	core.ParseEmailTemplates(conf, logger)
	return emailsvc.NewService(conf, logger)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	repo school.Repository,
	gw *localgw.Gateway,
	metrics *echoapi.Metrics,
	email core.EmailService,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Repo:       repo,
		Gateway:    gw,
		Metrics:    metrics,
		Email:      email,
		Validate:   validate,
		Translator: translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepository))
	must(c.Provide(school.NewValidator))
	must(c.Provide(localgw.New))
	must(c.Provide(echoapi.NewMetrics))
	must(c.Provide(newEmailService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
