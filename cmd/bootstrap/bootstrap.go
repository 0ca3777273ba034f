package bootstrap

import (
	"fmt"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wikiguard/src/database"
	"wikiguard/src/errorhandler"
	"wikiguard/src/logging"
	"wikiguard/src/notify"
	"wikiguard/src/process"
	"wikiguard/src/repository"
)

// App is the wiring shared by every entrypoint: a host with the error
// pipeline installed and, when ENABLE_DB is set, the database behind it.
type App struct {
	Host     *process.Host
	Pipeline *errorhandler.Pipeline

	// Nil unless the database is enabled.
	DB         *gorm.DB
	Tx         *database.TxManager
	Exceptions *repository.ExceptionRepository

	sink *repository.ExceptionSink
}

// New builds the App from the environment. The schema is migrated by Run.
func New() (*App, error) {
	dbConfig := database.GetConfig()
	logging.Setup(dbConfig.LogLevel, dbConfig.LogFormat)

	a := &App{Host: process.NewHost()}
	config := errorhandler.GetConfig()
	a.Host.SetErrorReporting(process.Severity(config.ErrorReporting))

	hooks := errorhandler.NewHooks()
	opts := []errorhandler.Option{
		errorhandler.WithConfig(config),
		errorhandler.WithHooks(hooks),
	}

	// Connect before installing so the transaction guard can see the
	// database.
	if dbConfig.EnableDB {
		db, err := database.Open(dbConfig, a.Host)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Tx = database.NewTxManager(db)
		a.Exceptions = repository.NewExceptionRepository(db)
		opts = append(opts, errorhandler.WithTransactions(a.Tx))
	}

	a.Pipeline = errorhandler.NewPipeline(opts...)
	a.Pipeline.Install(a.Host)

	if webhookConfig := notify.GetConfig(); webhookConfig.WebhookURL != "" {
		webhook := notify.NewWebhook(webhookConfig)
		hooks.OnRecord(webhook.Observe)
		a.Host.RegisterShutdownFunction(webhook.Close)
	}

	if a.DB != nil {
		a.sink = repository.NewExceptionSink(a.DB, 0)
		logger.AddHook(a.sink)
		a.Host.RegisterShutdownFunction(a.sink.Close)
		a.Host.RegisterShutdownFunction(a.closeDB)
	}

	return a, nil
}

// Run migrates the database and then runs main, both under the host: an
// error or panic from either goes through the error pipeline and shutdown
// functions run afterwards. It returns the exit status.
func (a *App) Run(main func(a *App) error) int {
	return a.Host.Run(func() error {
		if a.DB != nil {
			if err := database.Migrate(a.DB); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
		}
		return main(a)
	})
}

// RequireDB fails when the command needs a database that is not enabled.
func (a *App) RequireDB() error {
	if a.DB == nil {
		return fmt.Errorf("this command needs a database, set ENABLE_DB=true")
	}
	return nil
}

func (a *App) closeDB() {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.WithError(err).Warn("[database] close failed")
	}
}
