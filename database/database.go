package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/patiponrmutl/TutorSystem/config"
	"github.com/patiponrmutl/TutorSystem/models"
)

// Connect opens the store configured in cfg and tunes its pool. It does not
// migrate; call Migrate for that.
func Connect(cfg *config.Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.DBLogLevel)),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.DSN()))
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	pool, err := configurePool(db, cfg)
	if err != nil {
		return nil, err
	}

	log.Infow("database connected",
		"driver", cfg.DBDriver,
		"max_open_conns", pool.maxOpen,
		"max_idle_conns", pool.maxIdle,
	)
	return db, nil
}

// poolSettings records the limits actually applied to the pool.
type poolSettings struct {
	maxOpen int
	maxIdle int
}

func poolFor(cfg *config.Config) poolSettings {
	if cfg.DBDriver == config.DriverSQLite {
		// one writer; a second connection would see SQLITE_BUSY inside transactions
		return poolSettings{maxOpen: 1, maxIdle: 1}
	}
	return poolSettings{maxOpen: cfg.DBMaxOpenConns, maxIdle: cfg.DBMaxIdleConns}
}

func configurePool(db *gorm.DB, cfg *config.Config) (poolSettings, error) {
	pool := poolFor(cfg)
	sqlDB, err := db.DB()
	if err != nil {
		return pool, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(pool.maxOpen)
	sqlDB.SetMaxIdleConns(pool.maxIdle)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return pool, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates or updates the tutors table, including the unique index
// on email that backs the uniqueness rule.
func Migrate(db *gorm.DB, log *zap.SugaredLogger) error {
	if err := db.AutoMigrate(&models.Tutor{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if !db.Migrator().HasIndex(&models.Tutor{}, "idx_tutors_email") {
		return fmt.Errorf("auto migrate failed: unique index idx_tutors_email missing")
	}
	log.Infow("[migrate] tutors table ready")
	return nil
}

func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
