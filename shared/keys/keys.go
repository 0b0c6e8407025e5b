// Package keys generates API key secrets and derives their stored
// fingerprints. The plaintext secret is never persisted; validation
// recomputes the hash and looks it up.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SecretPrefix marks issued secrets so they are recognizable in logs and
// support tickets without revealing anything.
const SecretPrefix = "sk_live_"

// DisplayPrefixLen is how much of the secret is kept for display in list
// views.
const DisplayPrefixLen = 12

// Generate returns a new high-entropy secret: the fixed prefix followed by
// 32 cryptographically random bytes rendered as hex.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	return SecretPrefix + hex.EncodeToString(buf), nil
}

// Hash returns the one-way fingerprint of a secret. Deterministic, so the
// hash doubles as the lookup key.
func Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Prefix returns the display-safe leading characters of a secret.
func Prefix(secret string) string {
	if len(secret) <= DisplayPrefixLen {
		return secret
	}
	return secret[:DisplayPrefixLen]
}
