package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/patiponrmutl/TutorSystem/config"
	"github.com/patiponrmutl/TutorSystem/database"
	"github.com/patiponrmutl/TutorSystem/logger"
)

// @title           Tutor Service API
// @version         1.0
// @description     Echo + PostgreSQL tutor profiles
// @BasePath        /api
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tutorsvc",
		Short:         "Tutor profile service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := newServeCmd()
	root.AddCommand(serve, newMigrateCmd(), newSeedCmd())
	// bare `tutorsvc` starts the server
	root.RunE = serve.RunE
	return root
}

// bootstrap loads config, builds the logger and opens the database. The
// returned cleanup closes both.
func bootstrap() (*config.Config, *zap.SugaredLogger, *gorm.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// fail early if the database is not up
	db, err := database.Connect(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warnw("close database", "error", err)
		}
		_ = log.Sync()
	}
	return cfg, log, db, cleanup, nil
}
