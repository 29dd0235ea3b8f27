package database

import (
	"database/sql"
	"regexp"
	"strconv"
	"strings"

	migratedb "github.com/golang-migrate/migrate/v4/database"
)

// openMigrationPool opens a pool owned by a migration driver, so that the
// driver's Close releases its pinned connection along with the pool.
func openMigrationPool(driverName, dsn string) (*sql.DB, error) {
	pool, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(2)
	return pool, nil
}

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// InsertIgnore turns a plain "INSERT INTO" statement into one that
	// silently skips rows violating a unique or primary key
	InsertIgnore(query string) string

	// IsUniqueViolation reports whether err was caused by a unique constraint
	IsUniqueViolation(err error) bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// MigrationDriver returns the golang-migrate driver for this database.
	// Closing the driver must not close db.
	MigrationDriver(db *sql.DB, dsn string) (migratedb.Driver, error)
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// appendOnConflictDoNothing is shared by the SQLite and PostgreSQL dialects
func appendOnConflictDoNothing(query string) string {
	query = strings.TrimSuffix(strings.TrimSpace(query), ";")
	return query + " ON CONFLICT DO NOTHING"
}
