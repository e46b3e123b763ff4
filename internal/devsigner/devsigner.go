// Package devsigner is a minimal ports.Signer stand-in for cmd/producer
// and cmd/consumer: key management and signing are an external
// collaborator with a narrow interface, so the engine itself never
// implements one. This is a shared-secret HMAC signer, adequate to
// exercise the manifest-covers-segments discipline end to end without a
// real KeyChain.
package devsigner

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// Signer signs and verifies with a single shared key, keyed by identity
// name only for logging; every identity shares the same secret.
type Signer struct {
	key []byte
}

// New creates a Signer using secret as the HMAC key. An empty secret is
// rejected: callers must supply one, there is no hidden default.
func New(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("devsigner: secret must not be empty")
	}
	return &Signer{key: secret}, nil
}

// Sign returns an HMAC-SHA256 MAC over data. identity is accepted for
// interface compatibility but does not affect the key in this stand-in.
func (s *Signer) Sign(ctx context.Context, identity string, data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

// VerifyData recomputes the MAC over data and compares it to signature in
// constant time.
func (s *Signer) VerifyData(ctx context.Context, data []byte, signature []byte, identity string) (bool, string, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	expected := mac.Sum(nil)
	if len(signature) == 0 {
		return false, "no signature present", nil
	}
	if !hmac.Equal(expected, signature) {
		return false, "signature mismatch", nil
	}
	return true, "", nil
}
