package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/admin"
)

var _ admin.PasswordHasher = BcryptHasher{}

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	// Cost defaults to 12 when zero.
	Cost int
}

// Hash returns a salted bcrypt hash of password.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = 12
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(b), err
}

// Check reports whether password matches hash.
func (h BcryptHasher) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
