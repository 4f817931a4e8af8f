// Copyright 2025 Certen Protocol
//
// Receipt Verifier reconstructs the canonical receipt-signing message and
// verifies RSA-PSS/SHA-256 against the bundler's public key.

package receipt

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
)

// Receipt is the bundler's signed promise that txID will be included at or
// before block.
type Receipt struct {
	Block     int64
	TxID      string
	Signature string // base64url-nopad
}

// signingMessage builds the deep-hash of ["Bundlr", "1", tx_id, decimal(block)].
func signingMessage(r Receipt) []byte {
	chunks := [][]byte{
		[]byte("Bundlr"),
		[]byte("1"),
		[]byte(r.TxID),
		[]byte(strconv.FormatInt(r.Block, 10)),
	}
	return deepHashList(chunks)
}

// Verify reports whether r's signature is a valid RSA-PSS/SHA-256 signature
// over its canonical deep-hash message under pub. It returns false (not an
// error) on a cryptographic mismatch; an error is returned only if the
// signature cannot even be decoded.
func Verify(r Receipt, pub *rsa.PublicKey) (bool, error) {
	sig, err := base64.RawURLEncoding.DecodeString(r.Signature)
	if err != nil {
		return false, fmt.Errorf("receipt: decode signature: %w", err)
	}

	message := signingMessage(r)
	digest := sha256.Sum256(message)

	err = rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	return err == nil, nil
}

// Sign produces an RSA-PSS/SHA-256 signature over r's canonical message,
// returned base64url-nopad encoded. Used by tests to construct fixtures.
func Sign(r Receipt, priv *rsa.PrivateKey) (string, error) {
	message := signingMessage(r)
	digest := sha256.Sum256(message)

	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("receipt: sign: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}
