package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wikiguard/src/database/migrations"
	"wikiguard/src/model"
	"wikiguard/src/process"
)

// Dialector picks the gorm driver for config.DBDriver.
func Dialector(config Config) (gorm.Dialector, error) {
	switch config.DBDriver {
	case "postgres", "":
		return postgres.Open(config.DatabaseURLMain), nil
	case "sqlite":
		return sqlite.Open(config.DatabaseURLMain), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.DBDriver)
	}
}

// Open connects to the main database. Driver warnings and query errors are
// raised on host as runtime errors.
func Open(config Config, host *process.Host) (*gorm.DB, error) {
	dialector, err := Dialector(config)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: NewGormLogger(host, GormLoggerConfig{
			LogLevel:      logger.LogLevel(config.GormLogLevel),
			SlowThreshold: time.Duration(config.SlowQueryMillis) * time.Millisecond,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	if config.DBDriver == "sqlite" {
		// one writer; concurrent connections would each see their own :memory: db
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
	}
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	logrus.WithField("driver", dialector.Name()).Info("[database] connection established")
	return db, nil
}

// Migrate brings the schema up to date and runs pending data migrations.
func Migrate(db *gorm.DB) error {
	// Move an old-layout exceptions table aside before AutoMigrate creates
	// the structured one.
	if err := migrations.PrepareLegacyExceptionTable(db); err != nil {
		return fmt.Errorf("failed to prepare legacy exceptions table: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Exception{},
		&model.UserProperty{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run schema migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}

	logrus.Info("[database] migrations completed")
	return nil
}

// InitMainDB opens and migrates the main database.
func InitMainDB(config Config, host *process.Host) (*gorm.DB, error) {
	db, err := Open(config, host)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
