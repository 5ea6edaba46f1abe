// Package password wraps bcrypt hashing behind a small Hasher so services
// never touch digests directly.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest secret bcrypt will hash without truncating.
const MaxLength = 72

var (
	ErrMismatch      = errors.New("password mismatch")
	ErrEmptyPassword = errors.New("password must not be empty")
	ErrTooLong       = errors.New("password exceeds 72 bytes")
	// ErrCorruptDigest marks a stored digest bcrypt cannot parse. Callers
	// treat it as a failed verification and log the incident.
	ErrCorruptDigest = errors.New("corrupt password digest")
)

type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher builds a Hasher with the given bcrypt cost. Costs outside
// bcrypt's valid range fall back to the default. The dummy digest is
// compared against when a user is absent so both login failures take a
// full bcrypt verification.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), cost)
	if err != nil {
		// only reachable with an invalid cost, which is clamped above
		panic(err)
	}
	return &Hasher{cost: cost, dummy: dummy}
}

// Hash derives a bcrypt digest from the plaintext secret.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if len(plain) > MaxLength {
		return "", ErrTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify compares a plaintext secret against a stored digest. The
// comparison is constant-time for equal-cost digests.
func (h *Hasher) Verify(plain, digest string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return ErrCorruptDigest
}

// DummyCompare burns a bcrypt comparison so the absent-user login path
// costs the same as a wrong-password one.
func (h *Hasher) DummyCompare(plain string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}
