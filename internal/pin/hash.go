package pin

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/frahmantamala/hse-inspection/internal"
	"golang.org/x/crypto/bcrypt"
)

const digestPrefix = "digest:"

// Hasher turns a PIN into its stored form and checks candidates against it.
type Hasher interface {
	Hash(pin string) (string, error)
	Verify(hash, pin string) bool
}

// NewHasher returns the hasher for the configured scheme.
func NewHasher(scheme string, bcryptCost int) (Hasher, error) {
	switch scheme {
	case "", internal.PINHashBcrypt:
		return NewBcryptHasher(bcryptCost), nil
	case internal.PINHashDigest:
		return DigestHasher{}, nil
	default:
		return nil, fmt.Errorf("pin: unsupported hash scheme %q", scheme)
	}
}

// BcryptHasher is the default salted scheme.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", fmt.Errorf("pin: bcrypt hash: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(hash, pin string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// DigestHasher stores the unsalted rolling digest. It is only suitable for demos.
type DigestHasher struct{}

func (DigestHasher) Hash(pin string) (string, error) {
	if pin == "" {
		return "", errors.New("pin: empty pin")
	}
	return digestPrefix + Digest(pin), nil
}

func (DigestHasher) Verify(hash, pin string) bool {
	stored, ok := strings.CutPrefix(hash, digestPrefix)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(Digest(pin))) == 1
}

// Digest is a base-31 polynomial rolling hash over the PIN bytes, rendered as
// 16 hex characters. Digits differ by less than the base, so it is injective
// over equal-length numeric input.
func Digest(pin string) string {
	var h uint64
	for i := 0; i < len(pin); i++ {
		h = h*31 + uint64(pin[i])
	}
	s := strconv.FormatUint(h, 16)
	if len(s) < 16 {
		s = strings.Repeat("0", 16-len(s)) + s
	}
	return s
}
