package database

import (
	"database/sql"
	"errors"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PgxDialect talks to PostgreSQL through pgx's database/sql adapter.
// SQL, placeholders and migrations are identical to PostgresDialect.
type PgxDialect struct {
	PostgresDialect
}

// NewPgxDialect creates a new pgx-backed PostgreSQL dialect
func NewPgxDialect() *PgxDialect {
	return &PgxDialect{}
}

func (d *PgxDialect) DriverName() string {
	return "pgx"
}

func (d *PgxDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func (d *PgxDialect) MigrationDriver(_ *sql.DB, dsn string) (migratedb.Driver, error) {
	pool, err := openMigrationPool(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	driver, err := pgxmigrate.WithInstance(pool, &pgxmigrate.Config{})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return driver, nil
}
