package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
)

var ErrMissingPublicKey = errors.New("public key is not configured (set discord.public_key or PUBLIC_KEY)")

// ParsePublicKey decodes a hex Ed25519 public key and checks that it is a
// point on the curve.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrMissingPublicKey
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("public key is not valid hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return nil, fmt.Errorf("public key is not a valid Ed25519 point: %w", err)
	}

	return ed25519.PublicKey(raw), nil
}
