// Package repomanager vends the user and session repositories for the
// configured storage backend and runs multi-step work in a transaction.
package repomanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/users"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// TxFunc receives repositories bound to the same transaction.
type TxFunc func(ctx context.Context, u users.Repository, s sessions.Repository) error

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Sessions() sessions.Repository
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn TxFunc) error
	Close() error
}

// Open connects to the backend named by driver, applies migrations and
// returns a ready manager.
func Open(ctx context.Context, driver, dsn string) (RepositoryManager, error) {
	var (
		m   RepositoryManager
		err error
	)

	switch strings.ToLower(driver) {
	case DriverMemory:
		m = NewMemoryRepositoryManager()
	case DriverSQLite, "sqlite3":
		m, err = OpenSQLite(dsn)
	case DriverPostgres, "postgresql", "pgx":
		m, err = OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return m, nil
}
