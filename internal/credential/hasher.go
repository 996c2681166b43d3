// Package credential turns plaintext passwords into stored digests and checks
// candidates against them.
package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher names accepted by New.
const (
	SHA256 = "sha256"
	Bcrypt = "bcrypt"
)

// Hasher maps a plaintext password to an opaque digest and verifies candidates.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
	Name() string
}

// New returns the hasher registered under name. Unknown names fall back to SHA-256.
func New(name string, bcryptCost int) Hasher {
	switch strings.ToLower(name) {
	case Bcrypt:
		return NewBcryptHasher(bcryptCost)
	default:
		return SHA256Hasher{}
	}
}

// SHA256Hasher produces the unsalted hex SHA-256 digests used by existing
// stores. Identical passwords yield identical digests.
type SHA256Hasher struct{}

func (SHA256Hasher) Name() string { return SHA256 }

func (SHA256Hasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

func (h SHA256Hasher) Verify(hash, password string) bool {
	candidate, _ := h.Hash(password)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) == 1
}

// BcryptHasher stores salted bcrypt digests. It still accepts SHA-256 digests
// written before the switch so existing accounts keep working.
type BcryptHasher struct {
	cost   int
	legacy SHA256Hasher
}

// NewBcryptHasher creates a BcryptHasher. Out-of-range costs use bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Name() string { return Bcrypt }

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(hash, password string) bool {
	if !isBcrypt(hash) {
		return h.legacy.Verify(hash, password)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}
