package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordBytes = 8

// ErrTooShort is returned by Hash for passwords under the minimum length.
var ErrTooShort = errors.New("password must be at least 8 bytes")

// Hasher hashes and verifies passwords with bcrypt. The zero cost falls
// back to bcrypt.DefaultCost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Hasher{cost: cost}, nil
}

// Hash derives a bcrypt hash from the cleartext password. This is the
// explicit pre-persistence transformation step: the directory stores only
// what Hash returns, never the cleartext.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPasswordBytes {
		return "", ErrTooShort
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether candidate matches the stored hash. It never
// distinguishes "wrong password" from "malformed hash"; both are false.
func (h *Hasher) Verify(storedHash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate)) == nil
}
