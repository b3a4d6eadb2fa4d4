package badge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/povmint/povmint-core/pkg/relay"
)

// Profile is the display subset of a kind-0 metadata event.
type Profile struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	NIP05       string `json:"nip05,omitempty"`
}

// FetchDefinition resolves a naddr to its badge definition by reading the
// definition event off the transport. Callers bound the wait through ctx.
func FetchDefinition(ctx context.Context, sub relay.Subscriber, definitionKind int, naddr string) (*Definition, error) {
	ref, err := DecodeNaddr(naddr)
	if err != nil {
		return nil, err
	}
	if ref.Kind != definitionKind {
		return nil, fmt.Errorf("naddr kind %d is not a badge definition", ref.Kind)
	}

	evt, err := fetchOne(ctx, sub, nostr.Filter{
		Kinds:   []int{definitionKind},
		Authors: []string{ref.IssuerPubkey},
		Tags:    nostr.TagMap{"d": []string{ref.Identifier}},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("badge definition %s: %w", naddr, err)
	}

	def := &Definition{
		Identifier:   ref.Identifier,
		Name:         ref.Identifier,
		IssuerPubkey: ref.IssuerPubkey,
	}
	if tag := evt.Tags.GetFirst([]string{"name"}); tag != nil {
		def.Name = tag.Value()
	}
	if tag := evt.Tags.GetFirst([]string{"description"}); tag != nil {
		def.Description = tag.Value()
	}
	if tag := evt.Tags.GetFirst([]string{"image"}); tag != nil {
		def.Image = tag.Value()
	}
	return def, nil
}

// FetchProfile reads a pubkey's kind-0 metadata off the transport.
// Display enrichment only; a missing or malformed profile is an error the
// caller is free to ignore.
func FetchProfile(ctx context.Context, sub relay.Subscriber, pubkey string) (*Profile, error) {
	evt, err := fetchOne(ctx, sub, nostr.Filter{
		Kinds:   []int{0},
		Authors: []string{pubkey},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", pubkey, err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(evt.Content), &p); err != nil {
		return nil, fmt.Errorf("profile %s has malformed metadata: %w", pubkey, err)
	}
	return &p, nil
}

// fetchOne returns the first event matching the filter, or the ctx error.
func fetchOne(ctx context.Context, sub relay.Subscriber, filter nostr.Filter) (*nostr.Event, error) {
	s, err := sub.Subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case evt, ok := <-s.Events():
		if !ok {
			return nil, fmt.Errorf("subscription closed before a match arrived")
		}
		return evt, nil
	}
}
