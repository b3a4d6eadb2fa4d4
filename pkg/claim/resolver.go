package claim

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip05"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Resolver maps a human-entered claimant address to a hex pubkey.
type Resolver interface {
	Resolve(ctx context.Context, address string) (string, error)
}

// DirectoryResolver resolves npub and nprofile encodings locally and
// name@domain identifiers through the external NIP-05 directory.
type DirectoryResolver struct{}

// Resolve dispatches on the address form.
func (DirectoryResolver) Resolve(ctx context.Context, address string) (string, error) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return "", fmt.Errorf("empty claimant address")
	}

	switch {
	case strings.HasPrefix(addr, "npub") || strings.HasPrefix(addr, "nprofile"):
		return resolveBech32(addr)
	case strings.Contains(addr, "@"):
		return resolveNIP05(ctx, addr)
	default:
		// Bare hex pubkey.
		if raw, err := hex.DecodeString(addr); err == nil && len(raw) == 32 {
			return strings.ToLower(addr), nil
		}
		return "", fmt.Errorf("unrecognized claimant address %q", addr)
	}
}

func resolveBech32(addr string) (string, error) {
	prefix, data, err := nip19.Decode(addr)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", addr, err)
	}
	switch prefix {
	case "npub":
		return data.(string), nil
	case "nprofile":
		return data.(nostr.ProfilePointer).PublicKey, nil
	default:
		return "", fmt.Errorf("address %s is not a pubkey encoding", addr)
	}
}

func resolveNIP05(ctx context.Context, addr string) (string, error) {
	ptr, err := nip05.QueryIdentifier(ctx, strings.ToLower(addr))
	if err != nil {
		return "", fmt.Errorf("nip-05 lookup for %s failed: %w", addr, err)
	}
	if ptr == nil || ptr.PublicKey == "" {
		return "", fmt.Errorf("nip-05 identifier %s not found", addr)
	}
	return ptr.PublicKey, nil
}
