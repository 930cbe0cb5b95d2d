package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/fs"
)

const (
	maintenanceDB  = "postgres"
	migrationsDir  = "migrations"
	readyAttempts  = 30
	readyBaseDelay = 100 * time.Millisecond
)

// dsn builds the postgres URL for dbName, as the app user or, when admin is set & configured, as the admin user.
func dsn(conf core.DatabaseConfig, dbName string, admin bool) string {
	user := url.UserPassword(conf.User, conf.Password)
	if admin && conf.AdminUser != "" {
		user = url.UserPassword(conf.AdminUser, conf.AdminPassword)
	}

	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if conf.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{Scheme: conf.Engine, User: user, Host: conf.Address(), Path: dbName, RawQuery: q.Encode()}
	return u.String()
}

// Connect opens the Vigil database & waits for it to accept connections.
func Connect(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, dsn(conf.Database, conf.Database.Name, false))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = waitReady(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// waitReady pings db until it answers, waiting 100ms longer after each failed attempt.
func waitReady(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= readyAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for database")
		case <-time.After(time.Duration(attempt) * readyBaseDelay):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(ctx context.Context, db *sql.DB, query, name string) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, name).Scan(&found)
	return found, err
}

// Provision makes sure the app role & the Vigil database exist. It connects to the maintenance database,
// as the admin user when one is configured.
func Provision(ctx context.Context, conf *core.Config) error {
	dbConf := conf.Database
	db, err := sql.Open(dbConf.Engine, dsn(dbConf, maintenanceDB, true))
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = db.Close() }()
	if err = waitReady(ctx, db); err != nil {
		return err
	}

	if dbConf.User != "" {
		found, err := exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", dbConf.User)
		if err != nil {
			return errors.Wrap(err, "looking up app role")
		}
		if !found {
			q := "CREATE ROLE " + pq.QuoteIdentifier(dbConf.User) +
				" LOGIN CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(dbConf.Password)
			if _, err = db.ExecContext(ctx, q); err != nil {
				return errors.Wrap(err, "creating app role")
			}
		}
	}

	found, err := exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbConf.Name)
	if err != nil {
		return errors.Wrap(err, "looking up database")
	}
	if found {
		return nil
	}
	q := "CREATE DATABASE " + pq.QuoteIdentifier(dbConf.Name)
	if dbConf.User != "" {
		q += " OWNER " + pq.QuoteIdentifier(dbConf.User)
	}
	if _, err = db.ExecContext(ctx, q); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// Migrate applies the embedded migrations.
func Migrate(db *sqlx.DB) error {
	if err := goose.RunFS("up", db.DB, appfs.FS, migrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
