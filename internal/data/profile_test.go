package data

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"portfolio-backend/internal/biz"
	"portfolio-backend/internal/conf"

	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) biz.ProfileRepo {
	t.Helper()
	repo, err := NewSQLiteProfileRepo(filepath.Join(t.TempDir(), "nested", "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteProfileRepo_CreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "auth0|alice")
	require.ErrorIs(t, err, biz.ErrProfileNotFound)

	created, err := repo.Create(ctx, &biz.Profile{
		ID:        "auth0|alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Email:     "alice@example.com",
	})
	require.NoError(t, err)
	require.False(t, created.CreatedAt.IsZero())

	found, err := repo.FindByID(ctx, "auth0|alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", found.FirstName)
	require.Equal(t, "Liddell", found.LastName)
	require.Equal(t, "alice@example.com", found.Email)
	require.Empty(t, found.AvatarURL)
	require.Empty(t, found.Phone)
}

func TestSQLiteProfileRepo_DuplicateCreate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &biz.Profile{ID: "auth0|alice", FirstName: "First"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &biz.Profile{ID: "auth0|alice", FirstName: "Second"})
	require.ErrorIs(t, err, biz.ErrProfileExists)

	found, err := repo.FindByID(ctx, "auth0|alice")
	require.NoError(t, err)
	require.Equal(t, "First", found.FirstName)
}

func TestSQLiteProfileRepo_ConcurrentProvisioning(t *testing.T) {
	repo := newTestRepo(t)
	provisioner := biz.NewProfileProvisioner(repo)
	claims := &biz.Claims{Subject: "auth0|alice", Email: "alice@example.com", GivenName: "Alice"}

	var wg sync.WaitGroup
	errs := make([]error, 10)
	ids := make([]string, 10)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			profile, err := provisioner.GetOrCreate(context.Background(), claims)
			errs[i] = err
			if profile != nil {
				ids[i] = profile.ID
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err)
		require.Equal(t, "auth0|alice", ids[i])
	}

	sqlite := repo.(*sqliteProfileRepo)
	var count int
	require.NoError(t, sqlite.db.QueryRow("SELECT COUNT(*) FROM profiles").Scan(&count))
	require.Equal(t, 1, count)
}

func TestSQLiteProfileRepo_InMemory(t *testing.T) {
	repo, err := NewSQLiteProfileRepo(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Create(context.Background(), &biz.Profile{ID: "s"})
	require.NoError(t, err)
	_, err = repo.FindByID(context.Background(), "s")
	require.NoError(t, err)
}

func TestNewProfileRepo(t *testing.T) {
	repo, err := NewProfileRepo(context.Background(), conf.Store{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "portfolio.db"),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = NewProfileRepo(context.Background(), conf.Store{Driver: "mongodb"})
	require.ErrorContains(t, err, "unknown store driver")
}
