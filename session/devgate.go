package session

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDevToolsDisabled  = errors.New("session: dev tools disabled")
	ErrInvalidPassphrase = errors.New("session: invalid passphrase")
)

// DevGate guards the dev tools behind a bcrypt-hashed passphrase. A gate with
// no hash is closed.
type DevGate struct {
	hash []byte
}

// NewDevGate wraps an existing bcrypt hash, typically read from config.
func NewDevGate(hash string) *DevGate {
	return &DevGate{hash: []byte(hash)}
}

// HashPassphrase produces the hash NewDevGate expects.
func HashPassphrase(passphrase string, cost int) (string, error) {
	if len(passphrase) < 8 {
		return "", fmt.Errorf("session: passphrase must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), cost)
	if err != nil {
		return "", fmt.Errorf("session: hash passphrase: %w", err)
	}
	return string(hash), nil
}

func (g *DevGate) Enabled() bool {
	return g != nil && len(g.hash) > 0
}

func (g *DevGate) Check(passphrase string) error {
	if !g.Enabled() {
		return ErrDevToolsDisabled
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(passphrase)); err != nil {
		return ErrInvalidPassphrase
	}
	return nil
}
