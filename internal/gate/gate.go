package gate

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrNoSecret = errors.New("gate: no shared secret configured")
	ErrDenied   = errors.New("password incorrect")
)

// Gate checks a password against the shared secret that guards every
// extraction capability.
type Gate struct {
	digest [sha256.Size]byte
}

func New(secret string) (Gate, error) {
	if strings.TrimSpace(secret) == "" {
		return Gate{}, ErrNoSecret
	}
	return Gate{digest: sha256.Sum256([]byte(secret))}, nil
}

// Verify compares digests so the comparison time does not depend on the
// length of either input.
func (g Gate) Verify(password string) error {
	given := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(given[:], g.digest[:]) != 1 {
		return ErrDenied
	}
	return nil
}
