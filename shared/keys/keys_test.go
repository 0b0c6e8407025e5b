package keys

import (
	"strings"
	"testing"
)

func TestGenerateFormat(t *testing.T) {
	secret, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(secret, SecretPrefix) {
		t.Errorf("expected prefix %q, got %q", SecretPrefix, secret)
	}
	// 32 random bytes as hex after the fixed prefix
	if len(secret) != len(SecretPrefix)+64 {
		t.Errorf("expected length %d, got %d", len(SecretPrefix)+64, len(secret))
	}
}

func TestHashDeterministic(t *testing.T) {
	secret, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h1 := Hash(secret)
	h2 := Hash(secret)
	if h1 != h2 {
		t.Errorf("hash not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 == secret {
		t.Error("hash must not equal the secret")
	}
}

func TestNoCollisions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping collision property in short mode")
	}
	const n = 100000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		secret, err := Generate()
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
		h := Hash(secret)
		if _, ok := seen[h]; ok {
			t.Fatalf("fingerprint collision after %d generations", i)
		}
		seen[h] = struct{}{}
	}
}

func TestPrefix(t *testing.T) {
	secret, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := Prefix(secret)
	if len(p) != DisplayPrefixLen {
		t.Errorf("expected %d chars, got %d", DisplayPrefixLen, len(p))
	}
	if !strings.HasPrefix(secret, p) {
		t.Errorf("prefix %q is not a prefix of the secret", p)
	}
	if got := Prefix("short"); got != "short" {
		t.Errorf("short input should round-trip, got %q", got)
	}
}
