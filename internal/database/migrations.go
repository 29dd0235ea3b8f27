package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunMigrations applies every pending up migration under the dialect's
// subdirectory of fsys and returns the names of the ones it applied.
// Files follow golang-migrate naming: NNN_name.up.sql and NNN_name.down.sql.
func (db *DB) RunMigrations(ctx context.Context, fsys fs.FS) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := iofs.New(fsys, db.Dialect.MigrationsSubdir())
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	driver, err := db.Dialect.MigrationDriver(db.DB, db.dsn)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.Dialect.MigrationsSubdir(), driver)
	if err != nil {
		src.Close()
		driver.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()
	stop := context.AfterFunc(ctx, func() { m.GracefulStop <- true })
	defer stop()

	before, err := currentVersion(m)
	if err != nil {
		return nil, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	after, err := currentVersion(m)
	if err != nil {
		return nil, err
	}
	return appliedBetween(src, before, after)
}

// currentVersion returns the applied schema version, or -1 for an empty
// database. A dirty version means a migration failed halfway and needs
// manual repair.
func currentVersion(m *migrate.Migrate) (int64, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty", version)
	}
	return int64(version), nil
}

// appliedBetween names the migrations with versions in (before, after]
func appliedBetween(src source.Driver, before, after int64) ([]string, error) {
	var applied []string
	if after <= before {
		return applied, nil
	}

	version, err := src.First()
	for err == nil {
		if v := int64(version); v > before && v <= after {
			name := strconv.FormatUint(uint64(version), 10)
			r, identifier, readErr := src.ReadUp(version)
			if readErr == nil {
				r.Close()
				name += "_" + identifier
			}
			applied = append(applied, name)
		}
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return applied, fmt.Errorf("failed to list migrations: %w", err)
	}
	return applied, nil
}

// sharedDriver keeps the caller's pool open when migrate closes the
// driver. SQLite needs this: an in-memory database lives on the one
// pooled connection.
type sharedDriver struct {
	migratedb.Driver
}

func (sharedDriver) Close() error {
	return nil
}
