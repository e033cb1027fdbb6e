package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/storefront/internal/devicestore"
	"github.com/vasiliy-maslov/storefront/internal/identity"
)

type fakeRepository struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*User
	revoked map[uuid.UUID]bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{users: map[uuid.UUID]*User{}, revoked: map[uuid.UUID]bool{}}
}

func (f *fakeRepository) Create(_ context.Context, user *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == normalizeEmail(user.Email) {
			return ErrEmailExists
		}
	}
	user.ID = uuid.Must(uuid.NewV4())
	user.Email = normalizeEmail(user.Email)
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeRepository) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == normalizeEmail(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepository) RevokeToken(_ context.Context, tokenID, _ uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[tokenID] = true
	return nil
}

func (f *fakeRepository) IsTokenRevoked(_ context.Context, tokenID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[tokenID], nil
}

func newTestProvider(t *testing.T) (*PasswordProvider, *fakeRepository, *devicestore.MemoryStorage) {
	t.Helper()
	repo := newFakeRepository()
	storage := devicestore.NewMemoryStorage()
	p := NewPasswordProvider(repo, NewTokenIssuer("test-secret", time.Hour), storage)
	p.hashCost = bcrypt.MinCost
	return p, repo, storage
}

func TestPasswordProvider_SignUpValidation(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  error
		wantMsg  string
	}{
		{name: "short_password", userName: "Alice", email: "alice@example.com", password: "12345", wantErr: ErrValidation, wantMsg: "password must be at least 6 characters"},
		{name: "bad_email", userName: "Alice", email: "alice", password: "123456", wantErr: ErrValidation, wantMsg: "email is not valid"},
		{name: "missing_name", userName: "  ", email: "alice@example.com", password: "123456", wantErr: ErrValidation, wantMsg: "name is required"},
		{name: "ok", userName: "Alice", email: "alice@example.com", password: "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestProvider(t)

			id, err := p.SignUp(context.Background(), tt.userName, tt.email, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Alice", id.Name)
			assert.Equal(t, "alice@example.com", id.Email)
		})
	}
}

func TestPasswordProvider_SignUpDuplicateEmail(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.SignUp(ctx, "Alice Again", "ALICE@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestPasswordProvider_SessionLifecycle(t *testing.T) {
	p, _, storage := newTestProvider(t)
	ctx := context.Background()

	id, err := p.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, id, "no stored token means anonymous")

	registered, err := p.SignUp(ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	id, err = p.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, registered.ID, id.ID)

	require.NoError(t, p.SignOut(ctx))
	_, err = storage.Get(ctx, devicestore.SessionKey)
	assert.ErrorIs(t, err, devicestore.ErrNotFound)

	id, err = p.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestPasswordProvider_RevokedTokenIsRejected(t *testing.T) {
	p, repo, storage := newTestProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	raw, err := storage.Get(ctx, devicestore.SessionKey)
	require.NoError(t, err)
	claims, err := p.tokens.Parse(string(raw))
	require.NoError(t, err)
	jti, err := claims.TokenID()
	require.NoError(t, err)
	repo.revoked[jti] = true

	id, err := p.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestPasswordProvider_SignIn(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()
	_, err := p.SignUp(ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "ok", email: "alice@example.com", password: "secret1"},
		{name: "email_case_insensitive", email: " Alice@Example.com ", password: "secret1"},
		{name: "wrong_password", email: "alice@example.com", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown_user", email: "bob@example.com", password: "secret1", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := p.SignIn(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Alice", id.Name)
		})
	}
}

func TestPasswordProvider_BroadcastsSessionEvents(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()
	events, stop := p.Subscribe()
	defer stop()

	_, err := p.SignUp(ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, identity.EventSignedIn, ev.Kind)
	require.NotNil(t, ev.Identity)
	assert.Equal(t, "Alice", ev.Identity.Name)

	require.NoError(t, p.SignOut(ctx))

	ev = <-events
	assert.Equal(t, identity.EventSignedOut, ev.Kind)
	assert.Nil(t, ev.Identity)
}

func TestPasswordProvider_SlowSubscriberSeesLatestEvent(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()
	events, stop := p.Subscribe()
	defer stop()

	_, err := p.SignUp(ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	for range 10 {
		_, err = p.SignIn(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)
	}
	require.NoError(t, p.SignOut(ctx))

	ev := <-events
	assert.Equal(t, identity.EventSignedOut, ev.Kind)
	assert.Nil(t, ev.Identity)

	select {
	case ev := <-events:
		t.Fatalf("unexpected queued event %s", ev.Kind)
	default:
	}
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	user := &User{ID: uuid.Must(uuid.NewV4()), Email: "alice@example.com", Name: "Alice"}

	token, claims, err := issuer.Issue(user)
	require.NoError(t, err)

	parsed, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, parsed.ID)
	assert.Equal(t, user.ID.String(), parsed.Subject)
	assert.Equal(t, "Alice", parsed.Name)

	_, err = NewTokenIssuer("other-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenIssuer("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(user)
	require.NoError(t, err)
	_, err = issuer.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
