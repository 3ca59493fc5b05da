package biz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryProfileRepo 内存仓库，模拟主键唯一约束
type memoryProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	creates  int

	findErr error
	// conflictOnce simulates another login inserting the row between our
	// FindByID and Create.
	conflictOnce *Profile
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{profiles: map[string]*Profile{}}
}

func (r *memoryProfileRepo) FindByID(ctx context.Context, id string) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryProfileRepo) Create(ctx context.Context, profile *Profile) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictOnce != nil {
		r.profiles[r.conflictOnce.ID] = r.conflictOnce
		r.conflictOnce = nil
	}
	if _, ok := r.profiles[profile.ID]; ok {
		return nil, ErrProfileExists
	}
	r.creates++
	cp := *profile
	r.profiles[profile.ID] = &cp
	return profile, nil
}

func (r *memoryProfileRepo) Close() error { return nil }

func TestGetOrCreate_CreatesFromClaims(t *testing.T) {
	repo := newMemoryProfileRepo()
	p := NewProfileProvisioner(repo)

	profile, err := p.GetOrCreate(context.Background(), &Claims{
		Subject: "auth0|alice",
		Email:   "alice@example.com",
		Name:    "Alice Pleasance Liddell",
		Picture: "https://cdn.example.com/alice.png",
	})
	require.NoError(t, err)
	require.Equal(t, "auth0|alice", profile.ID)
	require.Equal(t, "Alice", profile.FirstName)
	require.Equal(t, "Pleasance Liddell", profile.LastName)
	require.Equal(t, "alice@example.com", profile.Email)
	require.Equal(t, "https://cdn.example.com/alice.png", profile.AvatarURL)
	require.Empty(t, profile.Phone)
	require.Equal(t, 1, repo.creates)
}

func TestGetOrCreate_ExistingProfileUntouched(t *testing.T) {
	repo := newMemoryProfileRepo()
	repo.profiles["auth0|alice"] = &Profile{ID: "auth0|alice", FirstName: "Ally", Phone: "+44 1234"}
	p := NewProfileProvisioner(repo)

	profile, err := p.GetOrCreate(context.Background(), &Claims{Subject: "auth0|alice", GivenName: "Alice"})
	require.NoError(t, err)
	require.Equal(t, "Ally", profile.FirstName)
	require.Equal(t, "+44 1234", profile.Phone)
	require.Zero(t, repo.creates)
}

func TestGetOrCreate_LostRaceRereads(t *testing.T) {
	repo := newMemoryProfileRepo()
	repo.conflictOnce = &Profile{ID: "auth0|alice", FirstName: "Winner"}
	p := NewProfileProvisioner(repo)

	profile, err := p.GetOrCreate(context.Background(), &Claims{Subject: "auth0|alice", GivenName: "Loser"})
	require.NoError(t, err)
	require.Equal(t, "Winner", profile.FirstName)
	require.Zero(t, repo.creates)
}

func TestGetOrCreate_Errors(t *testing.T) {
	p := NewProfileProvisioner(newMemoryProfileRepo())
	_, err := p.GetOrCreate(context.Background(), &Claims{})
	require.Error(t, err)

	repo := newMemoryProfileRepo()
	repo.findErr = errors.New("disk I/O error")
	p = NewProfileProvisioner(repo)
	_, err = p.GetOrCreate(context.Background(), &Claims{Subject: "auth0|alice"})
	require.ErrorContains(t, err, "disk I/O error")
	require.Zero(t, repo.creates)
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	repo := newMemoryProfileRepo()
	p := NewProfileProvisioner(repo)
	claims := &Claims{Subject: "auth0|alice", Email: "alice@example.com"}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			profile, err := p.GetOrCreate(context.Background(), claims)
			if err == nil && profile.ID != claims.Subject {
				err = errors.New("unexpected profile id " + profile.ID)
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, repo.creates)
	require.Len(t, repo.profiles, 1)
}

func TestProfileFromClaims(t *testing.T) {
	tests := []struct {
		name      string
		claims    Claims
		wantFirst string
		wantLast  string
	}{
		{name: "given and family", claims: Claims{Subject: "s", GivenName: "Ada", FamilyName: "Lovelace", Name: "Countess"}, wantFirst: "Ada", wantLast: "Lovelace"},
		{name: "split full name", claims: Claims{Subject: "s", Name: "Ada Lovelace"}, wantFirst: "Ada", wantLast: "Lovelace"},
		{name: "single word name", claims: Claims{Subject: "s", Name: "Ada"}, wantFirst: "Ada"},
		{name: "name is the email", claims: Claims{Subject: "s", Name: "ada@example.com", Email: "ada@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := profileFromClaims(&tt.claims)
			require.Equal(t, tt.wantFirst, profile.FirstName)
			require.Equal(t, tt.wantLast, profile.LastName)
			require.Equal(t, "s", profile.ID)
		})
	}
}
