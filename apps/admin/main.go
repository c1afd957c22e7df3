package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	logsvc "github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database"
	inmemdb "github.com/trezcool/ratiba/storage/database/inmem"
	redisrepos "github.com/trezcool/ratiba/storage/database/redis"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags), conf)
	logger.Enable(!conf.Debug)

	// set up storage
	var db *sqlx.DB
	var repo timetable.Repository
	closeStorage := func() error { return nil }
	switch conf.Database.Engine {
	case core.EngineMemory:
		repo = inmemdb.NewTimetableRepository(inmemdb.Open())
	case core.EngineRedis:
		rdb, err := redisrepos.Open(context.Background(), conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening redis: %v", err), err)
		}
		closeStorage = rdb.Close
		repo = redisrepos.NewTimetableRepository(rdb, conf.Redis.KeyPrefix)
	default:
		var err error
		if err = database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		if db, err = database.Open(conf); err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		closeStorage = db.Close
		repo = sqlxrepos.NewTimetableRepository(db)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	timetable.InitValidators(validate, translator, conf.Timetable.MaxPeriods)

	// start CLI
	cli := commandLine{
		db:         db,
		svc:        timetable.NewService(repo),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
	err := cli.run(context.Background(), os.Args)
	_ = closeStorage()
	if err != nil {
		if err != errHelp {
			printError(err)
		}
		os.Exit(1)
	}
}

func printError(err error) {
	if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && len(vErr.Fields) > 0 {
		fmt.Fprintln(os.Stderr, "error: invalid input")
		for _, fld := range vErr.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", fld.Field, fld.Error)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
}
