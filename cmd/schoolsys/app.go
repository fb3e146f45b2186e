package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/loykin/schoolsys/cmd/schoolsys/config"
	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/database"
	"github.com/loykin/schoolsys/internal/ledger"
	"github.com/loykin/schoolsys/internal/lock"
	"github.com/loykin/schoolsys/internal/metrics"
	"github.com/loykin/schoolsys/internal/migration"
	"github.com/loykin/schoolsys/internal/schema"
	"github.com/spf13/viper"
)

// app is the composition root shared by the commands: one database handle,
// one ledger and one runner.
type app struct {
	doc    *config.ConfigDoc
	db     *sql.DB
	runner *migration.Runner
	logger *common.Logger
	// metrics is nil when disabled.
	metrics *metrics.Collector
}

func loadConfig() (*config.ConfigDoc, error) {
	v := viper.GetViper()
	// an empty path skips the file; the default path may be missing
	path := v.GetString("config")
	doc, err := config.Resolve(v, path, v.IsSet("config") && path != "")
	if err != nil {
		return nil, err
	}
	if _, err := doc.SetupLogging(os.Stderr); err != nil {
		return nil, &config.Error{Err: err}
	}
	return doc, nil
}

// openApp loads the configuration, waits for the database and wires the
// runner. Callers must close the app.
func openApp(ctx context.Context) (*app, error) {
	doc, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := common.GetLogger().WithComponent("app")

	tables, err := doc.Database.Tables()
	if err != nil {
		return nil, &config.Error{Err: err}
	}
	db, dialect, err := database.Open(ctx, doc.Database.Config)
	if err != nil {
		return nil, &migration.StorageError{Op: "connect", Err: err}
	}
	source, err := schema.Source(dialect.Name())
	if err != nil {
		_ = db.Close()
		return nil, &config.Error{Err: err}
	}

	r := &migration.Runner{
		DB:      db,
		Ledger:  ledger.NewStore(db, dialect, tables),
		Source:  source,
		LockKey: lock.Key(tables.Migrations),
		Logger:  logger,
	}
	if doc.Database.LockEnabled() {
		r.Locker = lock.New(db, dialect.Name())
	} else {
		logger.Warn("migration lock disabled, concurrent runs are not serialized")
		r.Locker = lock.Noop{}
	}
	var m *metrics.Collector
	if doc.Server.MetricsEnabled() {
		m = metrics.New("schoolsys")
		r.Metrics = m
	}
	return &app{doc: doc, db: db, runner: r, logger: logger, metrics: m}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
