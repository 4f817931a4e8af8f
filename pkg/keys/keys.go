// Copyright 2025 Certen Protocol
//
// Key Manager materializes the bundler's RSA public key and the validator's
// own signing key, once, at startup.

package keys

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	josejwk "github.com/go-jose/go-jose/v4"
)

// rawRSAPublicJWK is the minimal JWK shape for an RSA public-only key.
type rawRSAPublicJWK struct {
	Kty string `json:"kty"`
	E   string `json:"e"`
	N   string `json:"n"`
}

// PublicKeyFromModulus builds an RSA public key (e = AQAB) from a
// base64url-nopad encoded modulus, and returns the JWK it was built from so
// callers can verify the round-trip law: JWK.n == n.
func PublicKeyFromModulus(n string) (*rsa.PublicKey, josejwk.JSONWebKey, error) {
	var jwk josejwk.JSONWebKey

	raw, err := json.Marshal(rawRSAPublicJWK{Kty: "RSA", E: "AQAB", N: n})
	if err != nil {
		return nil, jwk, fmt.Errorf("keys: encode jwk: %w", err)
	}
	if err := jwk.UnmarshalJSON(raw); err != nil {
		return nil, jwk, fmt.Errorf("keys: parse jwk: %w", err)
	}

	pub, ok := jwk.Key.(*rsa.PublicKey)
	if !ok {
		return nil, jwk, fmt.Errorf("keys: jwk is not an RSA public key")
	}
	return pub, jwk, nil
}

// PublicKeyFromJWKFile reads an RSA public key from a JWK file on disk.
func PublicKeyFromJWKFile(path string) (*rsa.PublicKey, josejwk.JSONWebKey, error) {
	var jwk josejwk.JSONWebKey

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, jwk, fmt.Errorf("keys: read %s: %w", path, err)
	}
	if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, jwk, fmt.Errorf("keys: parse %s: %w", path, err)
	}

	pub, ok := jwk.Key.(*rsa.PublicKey)
	if !ok {
		return nil, jwk, fmt.Errorf("keys: %s is not an RSA public key", path)
	}
	return pub, jwk, nil
}

// Address derives the chain owner address for an RSA public key: the
// base64url-nopad SHA-256 digest of the key's modulus, the same derivation
// the gateway chain itself uses to compute an `owner.address`.
func Address(pub *rsa.PublicKey) string {
	sum := sha256.Sum256(pub.N.Bytes())
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidatorKey reads the validator's own signing key from a JWK file. Its
// concrete key type is not constrained by this core; callers needing a
// specific algorithm should type-assert jwk.Key.
func ValidatorKey(path string) (josejwk.JSONWebKey, error) {
	var jwk josejwk.JSONWebKey

	data, err := os.ReadFile(path)
	if err != nil {
		return jwk, fmt.Errorf("keys: read %s: %w", path, err)
	}
	if err := jwk.UnmarshalJSON(data); err != nil {
		return jwk, fmt.Errorf("keys: parse %s: %w", path, err)
	}
	return jwk, nil
}
