package admin

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/fault"
)

var (
	// ErrNotFound is returned when no active admin matches a lookup.
	ErrNotFound = fault.New(fault.NotFound, "admin not found")
	// ErrInvalidCredentials is returned by Login for any credential mismatch.
	ErrInvalidCredentials = fault.New(fault.Unauthorized, "invalid credentials")
	// ErrUnauthorized is returned when a token does not identify an active admin.
	ErrUnauthorized = fault.New(fault.Unauthorized, "unauthorized")
)

// Role is the privilege level of an admin account.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Admin is a back-office account.
type Admin struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// Claims are the facts carried by an access token.
type Claims struct {
	AdminID string
	Role    Role
}

// Repository provides lookup and storage of admin accounts.
type Repository interface {
	// FindByLogin returns the active admin whose username or email is login.
	FindByLogin(ctx context.Context, login string) (*Admin, error)
	GetByID(ctx context.Context, id string) (*Admin, error)
	// Upsert creates a, or replaces the account with the same username.
	Upsert(ctx context.Context, a *Admin) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// TokenIssuer signs and verifies access tokens.
type TokenIssuer interface {
	Issue(a *Admin) (token string, expiresAt time.Time, err error)
	Verify(token string) (*Claims, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Admin     *Admin
}

// Service authenticates admins.
type Service struct {
	repo   Repository
	tokens TokenIssuer
	hasher PasswordHasher
	now    func() time.Time
}

// NewService creates an admin Service.
func NewService(repo Repository, tokens TokenIssuer, hasher PasswordHasher) *Service {
	return &Service{repo: repo, tokens: tokens, hasher: hasher, now: time.Now}
}

// Login checks credentials and issues an access token. Unknown accounts and
// wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	a, err := s.repo.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find admin")
	}
	if !s.hasher.Check(password, a.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(a)
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}
	now := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, a.ID, now); err != nil {
		return nil, errors.Wrap(err, "record login")
	}
	a.LastLogin = &now

	return &Session{Token: token, ExpiresAt: exp, Admin: a}, nil
}

// Authorize resolves token to an active admin.
func (s *Service) Authorize(ctx context.Context, token string) (*Admin, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	a, err := s.repo.GetByID(ctx, claims.AdminID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "get admin")
	}
	if !a.Active {
		return nil, ErrUnauthorized
	}
	return a, nil
}

// RegisterInput holds the fields of a new admin account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     Role
}

// Register creates or replaces an admin account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Admin, error) {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, fault.New(fault.InvalidInput, "username and email are required")
	}
	if len(in.Password) < 6 {
		return nil, fault.New(fault.InvalidInput, "password must be at least 6 characters")
	}
	role := in.Role
	if role == "" {
		role = RoleAdmin
	}
	if role != RoleAdmin && role != RoleSuperAdmin {
		return nil, fault.Errorf(fault.InvalidInput, "unknown role %q", in.Role)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	a := &Admin{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, a); err != nil {
		return nil, errors.Wrap(err, "upsert admin")
	}
	return a, nil
}
