package database

import (
	"database/sql"
	"strings"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "modernc.org/sqlite"
)

// PureSQLiteDialect implements Dialect for SQLite through the cgo-free
// modernc.org/sqlite driver. Schema and migrations are shared with SQLiteDialect.
type PureSQLiteDialect struct {
	SQLiteDialect
}

// NewPureSQLiteDialect creates a new cgo-free SQLite dialect
func NewPureSQLiteDialect() *PureSQLiteDialect {
	return &PureSQLiteDialect{}
}

func (d *PureSQLiteDialect) DriverName() string {
	return "sqlite"
}

func (d *PureSQLiteDialect) IsUniqueViolation(err error) bool {
	// modernc reports constraint failures with SQLite's own message text
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *PureSQLiteDialect) ConfigureConnection(db *sql.DB) error {
	return configureSQLite(db)
}

func (d *PureSQLiteDialect) MigrationDriver(db *sql.DB, _ string) (migratedb.Driver, error) {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return nil, err
	}
	return sharedDriver{driver}, nil
}
