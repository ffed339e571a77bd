package main

import (
	"context"

	"github.com/hondanabooks/hondana/pkg/config"
	"github.com/hondanabooks/hondana/pkg/database"
	"github.com/hondanabooks/hondana/pkg/jobs"
	"github.com/hondanabooks/hondana/pkg/libraries"
	"github.com/hondanabooks/hondana/pkg/migrations"
	"github.com/hondanabooks/hondana/pkg/version"
	"github.com/hondanabooks/hondana/pkg/watcher"
	"github.com/hondanabooks/hondana/pkg/worker"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting hondana", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	wrkr := worker.New(cfg, db)

	libraryService := libraries.NewService(db)
	jobService := jobs.NewService(db)

	watched, err := libraryService.ListLibraries(ctx, libraries.ListLibrariesOptions{})
	if err != nil {
		log.Err(err).Fatal("listing libraries error")
	}

	wtchr := watcher.New(cfg, log, jobService)
	if err := wtchr.Start(watched); err != nil {
		log.Err(err).Fatal("watcher error")
	}
	log.Info("watcher started")

	graceful := signals.Setup()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	wtchr.Stop()
	log.Info("watcher shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
