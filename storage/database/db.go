package database

import (
	"context"
	"embed"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/schoolconnect/core"
)

const (
	migrationsDir = "migrations"
	sqliteFile    = "schoolconnect.db"
	sqliteParams  = "?_busy_timeout=5000&_journal_mode=WAL"
)

//go:embed migrations/*.sql
var migrations embed.FS

// pingAttempts bounds how long Open waits for the database.
var pingAttempts = 30 // mockable

// Open connects to the sqlite3 file under conf.Dir (or conf.DSN) or to the postgres conf.DSN.
func Open(ctx context.Context, conf core.StorageConfig) (*sqlx.DB, error) {
	var dsn string
	switch conf.Engine {
	case core.EngineSQLite:
		dsn = conf.DSN
		if dsn == "" {
			if err := os.MkdirAll(conf.Dir, 0o700); err != nil {
				return nil, errors.Wrap(err, "creating storage directory")
			}
			dsn = "file:" + filepath.Join(conf.Dir, sqliteFile) + sqliteParams
		}
	case core.EnginePostgres:
		dsn = conf.DSN
	default:
		return nil, errors.Errorf("storage engine %q is not a SQL database", conf.Engine)
	}

	db, err := sqlx.Open(conf.Engine, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if strings.Contains(dsn, ":memory:") {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	for attempts := 1; attempts <= pingAttempts; attempts++ {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "pinging database")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

// Migrate applies every pending migration, quietly.
func Migrate(db *sqlx.DB) error {
	goose.SetLogger(goose.NopLogger())
	return runGoose("up", db)
}

// RunGoose runs a goose command (up, down, status, version, redo, reset, up-to, down-to ...)
// against the embedded migrations, reporting to stdout.
func RunGoose(command string, db *sqlx.DB, args ...string) error {
	goose.SetLogger(log.New(os.Stdout, "", 0))
	return runGoose(command, db, args...)
}

func runGoose(command string, db *sqlx.DB, args ...string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(db.DriverName()); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Run(command, db.DB, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migration command %q", command)
	}
	return nil
}
