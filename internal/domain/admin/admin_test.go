package admin

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/fault"
)

type mockRepo struct {
	byID    map[string]*Admin
	touched string
}

func (m *mockRepo) FindByLogin(_ context.Context, login string) (*Admin, error) {
	for _, a := range m.byID {
		if a.Active && (a.Username == login || a.Email == login) {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Admin, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) Upsert(_ context.Context, a *Admin) error {
	m.byID[a.ID] = a
	return nil
}

func (m *mockRepo) TouchLogin(_ context.Context, id string, _ time.Time) error {
	m.touched = id
	return nil
}

// plainHasher stores passwords with a fixed prefix.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Check(password, hash string) bool   { return hash == "hashed:"+password }

type mockTokens struct{}

func (mockTokens) Issue(a *Admin) (string, time.Time, error) {
	return "token-" + a.ID, time.Unix(0, 0), nil
}

func (mockTokens) Verify(token string) (*Claims, error) {
	const prefix = "token-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return nil, errors.New("bad token")
	}
	return &Claims{AdminID: token[len(prefix):], Role: RoleAdmin}, nil
}

func newTestService(t *testing.T) (*Service, *mockRepo, *Admin) {
	t.Helper()
	repo := &mockRepo{byID: make(map[string]*Admin)}
	svc := NewService(repo, mockTokens{}, plainHasher{})
	a, err := svc.Register(context.Background(), RegisterInput{
		Username: "owner",
		Email:    "Owner@Shop.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return svc, repo, a
}

func TestService_Login(t *testing.T) {
	svc, repo, a := newTestService(t)

	tests := []struct {
		name     string
		login    string
		password string
		wantErr  error
	}{
		{name: "by username", login: "owner", password: "secret123"},
		{name: "by email", login: "owner@shop.com", password: "secret123"},
		{name: "wrong password", login: "owner", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", login: "ghost", password: "secret123", wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := svc.Login(context.Background(), tt.login, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, fault.Unauthorized, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "token-"+a.ID, s.Token)
			assert.NotNil(t, s.Admin.LastLogin)
			assert.Equal(t, a.ID, repo.touched)
		})
	}
}

func TestService_Authorize(t *testing.T) {
	svc, repo, a := newTestService(t)

	got, err := svc.Authorize(context.Background(), "token-"+a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = svc.Authorize(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authorize(context.Background(), "token-unknown")
	require.ErrorIs(t, err, ErrUnauthorized)

	repo.byID[a.ID].Active = false
	_, err = svc.Authorize(context.Background(), "token-"+a.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "a", Email: "a@b.c", Password: "123"})
	assert.Equal(t, fault.InvalidInput, fault.KindOf(err))

	_, err = svc.Register(context.Background(), RegisterInput{Username: "a", Email: "a@b.c", Password: "123456", Role: "root"})
	assert.Equal(t, fault.InvalidInput, fault.KindOf(err))

	a, err := svc.Register(context.Background(), RegisterInput{Username: "b", Email: "B@B.C", Password: "123456", Role: RoleSuperAdmin})
	require.NoError(t, err)
	assert.Equal(t, "b@b.c", a.Email)
	assert.Equal(t, "hashed:123456", a.PasswordHash)
}
