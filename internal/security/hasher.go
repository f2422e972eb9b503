// Package security holds the small set of cryptographic primitives
// shared across login, refresh-token rotation, and invite registration:
// password/secret hashing and constant-time comparison.
package security

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and compares secrets (user passwords, refresh-token
// secrets) with bcrypt. One interface, one implementation -- kept as an
// interface so tests can substitute a near-instant stub instead of
// paying bcrypt's cost on every unit test.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) error
}

// DefaultBcryptCost is what NewBcryptHasher uses, and what
// NewBcryptHasherWithCost falls back to for an out-of-range value. Web
// and mobile password hashes and refresh-token secret hashes (C7/C8) all
// go through the same cost; there is no per-actor-type tuning.
const DefaultBcryptCost = 12

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher at DefaultBcryptCost. Used by tests
// and anywhere the deployment-specific cost from config.Config isn't
// available.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: DefaultBcryptCost}
}

// NewBcryptHasherWithCost returns a hasher at the given cost, clamping
// to DefaultBcryptCost if cost falls outside bcrypt's accepted range --
// this is what the API and seed commands wire to config.Config.BcryptCost,
// so the work factor can be raised as hardware gets faster without a
// code change.
func NewBcryptHasherWithCost(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

// ConstantTimeEqual compares two strings without leaking timing
// information about where they first differ.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
