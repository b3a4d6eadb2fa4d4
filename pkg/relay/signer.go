package relay

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// KeySigner signs events with a locally held secret key. It is the
// default Signer for sessions that manage their own key; remote signer
// capabilities plug in behind the same interface.
type KeySigner struct {
	secretKey string
	publicKey string
}

// NewKeySigner creates a signer from a secret key in hex or nsec form.
func NewKeySigner(secret string) (*KeySigner, error) {
	sk := strings.TrimSpace(secret)
	if strings.HasPrefix(sk, "nsec") {
		prefix, data, err := nip19.Decode(sk)
		if err != nil {
			return nil, fmt.Errorf("failed to decode nsec: %w", err)
		}
		if prefix != "nsec" {
			return nil, fmt.Errorf("expected nsec, got %q", prefix)
		}
		sk = data.(string)
	}
	if raw, err := hex.DecodeString(sk); err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("secret key must be 32 bytes of hex or an nsec string")
	}

	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &KeySigner{secretKey: sk, publicKey: pk}, nil
}

// GenerateKeySigner creates a signer with a fresh random key, for
// ephemeral claimant sessions.
func GenerateKeySigner() (*KeySigner, error) {
	return NewKeySigner(nostr.GeneratePrivateKey())
}

// PublicKey returns the hex pubkey of the signing identity.
func (s *KeySigner) PublicKey(ctx context.Context) (string, error) {
	return s.publicKey, nil
}

// SignEvent signs evt in place.
func (s *KeySigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	return evt.Sign(s.secretKey)
}

// SecretKey returns the hex secret key. Used by the CLI to persist a
// generated key; everything else should stay behind the Signer interface.
func (s *KeySigner) SecretKey() string {
	return s.secretKey
}
