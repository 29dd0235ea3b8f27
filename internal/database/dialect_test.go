package database

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDialectDriverNames(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		driver  string
		subdir  string
	}{
		{name: "sqlite", dialect: NewSQLiteDialect(), driver: "sqlite3", subdir: "sqlite"},
		{name: "sqlite pure go", dialect: NewPureSQLiteDialect(), driver: "sqlite", subdir: "sqlite"},
		{name: "postgres", dialect: NewPostgresDialect(), driver: "postgres", subdir: "postgres"},
		{name: "pgx", dialect: NewPgxDialect(), driver: "pgx", subdir: "postgres"},
		{name: "mysql", dialect: NewMySQLDialect(), driver: "mysql", subdir: "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.DriverName(); got != tt.driver {
				t.Errorf("DriverName() = %v, want %v", got, tt.driver)
			}
			if got := tt.dialect.MigrationsSubdir(); got != tt.subdir {
				t.Errorf("MigrationsSubdir() = %v, want %v", got, tt.subdir)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		input   string
		driver  string
		wantErr bool
	}{
		{input: "", driver: "sqlite3"},
		{input: "SQLite", driver: "sqlite3"},
		{input: "modernc", driver: "sqlite"},
		{input: "postgresql", driver: "postgres"},
		{input: "pgx", driver: "pgx"},
		{input: "mysql", driver: "mysql"},
		{input: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := DialectFor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DialectFor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && d.DriverName() != tt.driver {
				t.Errorf("DialectFor(%q).DriverName() = %v, want %v", tt.input, d.DriverName(), tt.driver)
			}
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM tasks WHERE id = ?",
			expected: "SELECT * FROM tasks WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM tasks WHERE id = ?",
			expected: "SELECT * FROM tasks WHERE id = $1",
		},
		{
			name:     "pgx multiple placeholders",
			dialect:  NewPgxDialect(),
			query:    "INSERT INTO profiles (id, email) VALUES (?, ?)",
			expected: "INSERT INTO profiles (id, email) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE tasks SET completed = ? WHERE id = ?",
			expected: "UPDATE tasks SET completed = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestInsertIgnore(t *testing.T) {
	query := "INSERT INTO user_family_groups (user_id, family_group_id, joined_at) VALUES (?, ?, ?)"
	tests := []struct {
		name     string
		dialect  Dialect
		expected string
	}{
		{
			name:     "sqlite",
			dialect:  NewSQLiteDialect(),
			expected: query + " ON CONFLICT DO NOTHING",
		},
		{
			name:     "postgres",
			dialect:  NewPostgresDialect(),
			expected: query + " ON CONFLICT DO NOTHING",
		},
		{
			name:     "mysql",
			dialect:  NewMySQLDialect(),
			expected: "INSERT IGNORE INTO user_family_groups (user_id, family_group_id, joined_at) VALUES (?, ?, ?)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.InsertIgnore(query); got != tt.expected {
				t.Errorf("InsertIgnore() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{name: "pq unique", dialect: NewPostgresDialect(), err: &pq.Error{Code: "23505"}, want: true},
		{name: "pq fk", dialect: NewPostgresDialect(), err: &pq.Error{Code: "23503"}, want: false},
		{name: "pgx unique", dialect: NewPgxDialect(), err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "mysql duplicate", dialect: NewMySQLDialect(), err: &mysql.MySQLError{Number: 1062}, want: true},
		{name: "mysql other", dialect: NewMySQLDialect(), err: &mysql.MySQLError{Number: 1452}, want: false},
		{name: "modernc message", dialect: NewPureSQLiteDialect(), err: errors.New("constraint failed: UNIQUE constraint failed: profiles.email (2067)"), want: true},
		{name: "plain error", dialect: NewSQLiteDialect(), err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMySQLDSNEnablesParseTime(t *testing.T) {
	dsn := NewMySQLDialect().DSN(DialectConfig{URL: "user:pw@tcp(localhost:3306)/tasks"})
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q) error = %v", dsn, err)
	}
	if !cfg.ParseTime {
		t.Errorf("expected parseTime in %q", dsn)
	}
}
