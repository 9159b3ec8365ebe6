package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used for new password hashes.
const DefaultBcryptCost = 8

// Hasher hashes and verifies passwords with bcrypt. The digest embeds its
// salt and cost, so Verify needs nothing but the digest.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given cost; out-of-range values fall
// back to DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted digest of plaintext. Passwords over bcrypt's 72 byte
// limit are rejected with common.ErrorValidation.
func (h *Hasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password longer than 72 bytes", common.ErrorValidation)
		}
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches digest. A malformed digest simply
// does not verify.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
