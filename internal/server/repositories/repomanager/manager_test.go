package repomanager

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sleepsupervisor/internal/common"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/models"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(name string) *models.User {
	return &models.User{
		ID:           name + "-id",
		Username:     name,
		PasswordHash: []byte("h"),
		Salt:         []byte("s"),
		CreatedAt:    time.Now(),
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "")
	require.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	m, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Users().Insert(ctx, newUser("alice")))
	_, err = m.Users().FindByUsername(ctx, "alice")
	require.NoError(t, err)
}

func TestMemoryWithinTx_PassesSharedRepos(t *testing.T) {
	m := NewMemoryRepositoryManager()
	ctx := context.Background()

	err := m.WithinTx(ctx, func(ctx context.Context, u users.Repository, s sessions.Repository) error {
		if err := u.Insert(ctx, newUser("bob")); err != nil {
			return err
		}
		return s.Create(ctx, &models.Session{ID: "sid", Username: "bob", ExpiresAt: time.Now().Add(time.Hour)})
	})
	require.NoError(t, err)

	_, err = m.Sessions().Find(ctx, "sid")
	require.NoError(t, err)
}

func TestOpenSQLite_CreatesDirAndMigrates(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "supervisor.db")

	m, err := Open(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Users().Insert(ctx, newUser("alice")))
	require.ErrorIs(t, m.Users().Insert(ctx, newUser("alice")), common.ErrConflict)
}

func TestSQLiteWithinTx_RollsBackOnError(t *testing.T) {
	m, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	err = m.WithinTx(ctx, func(ctx context.Context, u users.Repository, s sessions.Repository) error {
		if err := u.Insert(ctx, newUser("carol")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = m.Users().FindByUsername(ctx, "carol")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLiteWithinTx_Commits(t *testing.T) {
	m, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	err = m.WithinTx(ctx, func(ctx context.Context, u users.Repository, s sessions.Repository) error {
		if err := u.Insert(ctx, newUser("dave")); err != nil {
			return err
		}
		return s.Create(ctx, &models.Session{ID: "sid", Username: "dave", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)})
	})
	require.NoError(t, err)

	got, err := m.Sessions().Find(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "dave", got.Username)
}

func TestPostgresManager_WithinTxUsesTransaction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM sessions`).WithArgs("sid").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m := NewPostgresRepositoryManager(db)
	err = m.WithinTx(context.Background(), func(ctx context.Context, u users.Repository, s sessions.Repository) error {
		assert.IsType(t, &users.PostgresRepository{}, u)
		return s.Delete(ctx, "sid")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_BeginError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no tx"))

	m := NewPostgresRepositoryManager(db)
	called := false
	err = m.WithinTx(context.Background(), func(context.Context, users.Repository, sessions.Repository) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestSQLManager_FactoriesPickBackend(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pg := NewPostgresRepositoryManager(db)
	assert.IsType(t, &users.PostgresRepository{}, pg.Users())
	assert.IsType(t, &sessions.PostgresRepository{}, pg.Sessions())

	lite := NewSQLiteRepositoryManager(db)
	assert.IsType(t, &users.SQLiteRepository{}, lite.Users())
	assert.IsType(t, &sessions.SQLiteRepository{}, lite.Sessions())
}
