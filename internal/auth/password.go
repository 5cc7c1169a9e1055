package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Hasher turns passwords into stored hashes and checks guesses against them.
type Hasher interface {
	Hash(password []byte) ([]byte, error)
	Verify(hash, password []byte) bool
}

// ScryptHasher hashes with scrypt (RFC 7914) under a deployment-wide salt.
type ScryptHasher struct {
	salt []byte
}

// NewScryptHasher builds a hasher using salt.
func NewScryptHasher(salt string) *ScryptHasher {
	return &ScryptHasher{salt: []byte(salt)}
}

// Hash derives a 64 byte key with N=16384, r=1, p=1.
func (h *ScryptHasher) Hash(password []byte) ([]byte, error) {
	key, err := scrypt.Key(password, h.salt, 16384, 1, 1, 64)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return key, nil
}

// Verify compares in constant time.
func (h *ScryptHasher) Verify(hash, password []byte) bool {
	guess, err := h.Hash(password)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(hash, guess) == 1
}
