package repomanager

import (
	"context"

	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process. WithinTx offers no
// rollback; each repository call is atomic on its own.
type MemoryRepositoryManager struct {
	users    *users.MemoryRepository
	sessions *sessions.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:    users.NewMemoryRepository(),
		sessions: sessions.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Users() users.Repository { return m.users }

func (m *MemoryRepositoryManager) Sessions() sessions.Repository { return m.sessions }

func (m *MemoryRepositoryManager) WithinTx(ctx context.Context, fn TxFunc) error {
	return fn(ctx, m.users, m.sessions)
}

func (m *MemoryRepositoryManager) Close() error { return nil }
