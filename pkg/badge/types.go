// Package badge models badge definitions and awards and their address
// encodings. Definitions are authored by an external badge system and are
// read-only here; awards are the artifacts the admin session issues.
package badge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/povmint/povmint-core/pkg/protocol"
)

// Definition is the immutable descriptor of a badge.
type Definition struct {
	// Identifier is the badge's stable identifier within the issuer's
	// namespace (the d tag of the definition event).
	Identifier string `json:"id"`

	// Name is the display name.
	Name string `json:"name,omitempty"`

	// Description is the display description.
	Description string `json:"description,omitempty"`

	// Image is a reference to the badge image.
	Image string `json:"image,omitempty"`

	// IssuerPubkey is the hex pubkey of the badge issuer.
	IssuerPubkey string `json:"pubkey"`
}

// AddressRef returns the stable composite reference
// "<kind>:<issuerPubkey>:<identifier>" resolving to this definition.
func (d Definition) AddressRef(definitionKind int) string {
	return fmt.Sprintf("%d:%s:%s", definitionKind, d.IssuerPubkey, d.Identifier)
}

// Naddr returns the nip-19 entity encoding of the definition address,
// optionally carrying relay hints.
func (d Definition) Naddr(definitionKind int, relays []string) (string, error) {
	return nip19.EncodeEntity(d.IssuerPubkey, definitionKind, d.Identifier, relays)
}

// Award is the issued artifact binding a requester to a badge.
type Award struct {
	// ID is the id of the signed issuance event.
	ID string `json:"id"`

	// Recipient is the pubkey the badge was awarded to.
	Recipient string `json:"pubkey"`

	// AddressRef is the badge the award binds to.
	AddressRef string `json:"address"`

	// Claim is the claimant profile carried by the accepted request.
	Claim protocol.ClaimContent `json:"claim,omitempty"`

	// Event is the signed issuance event.
	Event *nostr.Event `json:"event,omitempty"`

	// AwardedAt is the issuance time in unix seconds.
	AwardedAt int64 `json:"awarded_at"`
}

// ParseAddressRef splits a composite address reference into its parts.
func ParseAddressRef(ref string) (kind int, issuerPubkey, identifier string, err error) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return 0, "", "", fmt.Errorf("invalid address reference %q", ref)
	}
	kind, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", "", fmt.Errorf("invalid kind in address reference %q: %w", ref, err)
	}
	return kind, parts[1], parts[2], nil
}

// EntityRef is a decoded naddr: the pointer to a badge definition.
type EntityRef struct {
	Kind         int
	IssuerPubkey string
	Identifier   string
	Relays       []string
}

// AddressRef returns the composite reference form of the pointer.
func (e EntityRef) AddressRef() string {
	return fmt.Sprintf("%d:%s:%s", e.Kind, e.IssuerPubkey, e.Identifier)
}

// DecodeNaddr decodes a nip-19 naddr string into an EntityRef.
func DecodeNaddr(naddr string) (*EntityRef, error) {
	prefix, data, err := nip19.Decode(naddr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode naddr: %w", err)
	}
	if prefix != "naddr" {
		return nil, fmt.Errorf("expected naddr, got %q", prefix)
	}
	ptr, ok := data.(nostr.EntityPointer)
	if !ok {
		return nil, fmt.Errorf("unexpected naddr payload type %T", data)
	}
	return &EntityRef{
		Kind:         ptr.Kind,
		IssuerPubkey: ptr.PublicKey,
		Identifier:   ptr.Identifier,
		Relays:       ptr.Relays,
	}, nil
}
