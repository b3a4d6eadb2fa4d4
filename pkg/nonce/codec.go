// Package nonce derives and verifies the short-lived nonces embedded in
// displayed claim payloads.
//
// A nonce is a keyed one-way hash over (expiry, badge address, session salt).
// Verification is recomputation, not lookup: the codec keeps no table of
// outstanding nonces, so memory stays bounded and two tabs of the same
// session agree as long as they share the salt. A nonce minted under a
// different salt (e.g. a restarted session) simply fails to verify.
package nonce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// SaltSize is the length of the per-session salt in bytes (256 bits).
const SaltSize = 32

// Codec mints and verifies nonces for one admin session.
// The zero value is unusable; construct with NewCodec.
type Codec struct {
	salt []byte
}

// NewCodec creates a codec with a fresh random session salt.
// The salt never leaves the codec and is never transmitted.
func NewCodec() (*Codec, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate session salt: %w", err)
	}
	return &Codec{salt: salt}, nil
}

// Mint derives the nonce for a (badge address, expiry) pair.
// Deterministic for the lifetime of the codec: the same inputs always
// reproduce the same nonce. Returns fixed-width hex (64 characters).
func (c *Codec) Mint(addressRef string, expiresAt int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s:", expiresAt, addressRef)
	h.Write(c.salt)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the nonce for the given inputs and compares.
// Returns false on any mismatch, including malformed input; never errors.
func (c *Codec) Verify(nonce, addressRef string, expiresAt int64) bool {
	if nonce == "" {
		return false
	}
	expected := c.Mint(addressRef, expiresAt)
	return subtle.ConstantTimeCompare([]byte(nonce), []byte(expected)) == 1
}
