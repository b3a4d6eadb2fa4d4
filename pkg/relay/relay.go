// Package relay holds the transport collaborators of the claim protocol:
// the publish/subscribe seam over Nostr relays and the signer seam over
// key material. Coordinators depend only on the interfaces here; the
// concrete relay pool and local key signer are default implementations.
package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Publisher sends signed events to the transport. Implementations must
// return an error when no relay accepted the event, so callers can feed
// the failure back into their state machine instead of dropping it.
type Publisher interface {
	Publish(ctx context.Context, evt *nostr.Event) error
}

// Subscription is a live filtered event stream. Events are delivered
// at-least-once, in arbitrary order; callers must tolerate duplicates.
type Subscription interface {
	// Events yields matching events for the lifetime of the subscription.
	// The channel closes when the subscription ends.
	Events() <-chan *nostr.Event

	// Close aborts the subscription promptly; no further delivery after
	// the events channel is drained.
	Close()
}

// Subscriber opens filtered subscriptions on the transport.
type Subscriber interface {
	Subscribe(ctx context.Context, filter nostr.Filter) (Subscription, error)
}

// Signer produces event signatures for one identity. Key custody stays
// behind this interface; coordinators never see secret material.
type Signer interface {
	// PublicKey returns the hex pubkey of the signing identity.
	PublicKey(ctx context.Context) (string, error)

	// SignEvent signs evt in place, filling ID, PubKey and Sig.
	SignEvent(ctx context.Context, evt *nostr.Event) error
}
