package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/sleepsupervisor/internal/dbx"
	"github.com/dmitrijs2005/sleepsupervisor/internal/filex"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/migrations"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLRepositoryManager serves both SQL backends; only the dialect and the
// repository constructors differ.
type SQLRepositoryManager struct {
	db          *sql.DB
	dialect     string
	newUsers    func(dbx.DBTX) users.Repository
	newSessions func(dbx.DBTX) sessions.Repository
}

// NewPostgresRepositoryManager wraps an open pgx connection pool.
func NewPostgresRepositoryManager(db *sql.DB) *SQLRepositoryManager {
	return &SQLRepositoryManager{
		db:          db,
		dialect:     migrations.DialectPostgres,
		newUsers:    func(tx dbx.DBTX) users.Repository { return users.NewPostgresRepository(tx) },
		newSessions: func(tx dbx.DBTX) sessions.Repository { return sessions.NewPostgresRepository(tx) },
	}
}

// NewSQLiteRepositoryManager wraps an open modernc sqlite handle.
func NewSQLiteRepositoryManager(db *sql.DB) *SQLRepositoryManager {
	return &SQLRepositoryManager{
		db:          db,
		dialect:     migrations.DialectSQLite,
		newUsers:    func(tx dbx.DBTX) users.Repository { return users.NewSQLiteRepository(tx) },
		newSessions: func(tx dbx.DBTX) sessions.Repository { return sessions.NewSQLiteRepository(tx) },
	}
}

func OpenPostgres(dsn string) (*SQLRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresRepositoryManager(db), nil
}

// OpenSQLite creates the parent directory of a file DSN and serializes access
// through a single connection.
func OpenSQLite(dsn string) (*SQLRepositoryManager, error) {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path != "" && path != ":memory:" {
		if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return NewSQLiteRepositoryManager(db), nil
}

func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	return migrations.Up(ctx, m.db, m.dialect)
}

func (m *SQLRepositoryManager) Users() users.Repository { return m.newUsers(m.db) }

func (m *SQLRepositoryManager) Sessions() sessions.Repository { return m.newSessions(m.db) }

func (m *SQLRepositoryManager) WithinTx(ctx context.Context, fn TxFunc) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, m.newUsers(tx), m.newSessions(tx))
	})
}

func (m *SQLRepositoryManager) Close() error {
	return m.db.Close()
}
