package main

import (
	"context"
	"log"
	"os"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/email"
	"github.com/frizwan636-dotcom/attendancepro/services/gateway/local"
	"github.com/frizwan636-dotcom/attendancepro/services/logger"
	"github.com/frizwan636-dotcom/attendancepro/storage/database"
	"github.com/frizwan636-dotcom/attendancepro/storage/database/inmem"
	"github.com/frizwan636-dotcom/attendancepro/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	cli := commandLine{
		conf:   conf,
		logger: logger,
		out:    os.Stdout,
		opener: printOpener{w: os.Stdout},
	}

	// set up the repository
	if conf.Database.Engine == core.EngineMemory {
		cli.repo = inmemdb.NewSchoolRepository(inmemdb.Open())
	} else {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal("opening database", err)
		}
		defer db.Close()
		if err = db.Ping(); err != nil {
			logger.Fatal("pinging database", err)
		}
		cli.repo = sqlxrepos.NewSchoolRepository(db)
		cli.migrateFunc = func(ctx context.Context, command string, args ...string) error {
			return database.RunGoose(ctx, db, command, args...)
		}
	}

	validate, translator := school.NewValidator()
	cli.gw = localgw.New(cli.repo, validate, translator)

	core.ParseEmailTemplates(conf, logger)
	cli.email = emailsvc.NewService(conf, logger)

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
