package relay

import "github.com/nbd-wtf/go-nostr"

// poolSubscription is the merged stream handed out by Pool.Subscribe.
type poolSubscription struct {
	events chan *nostr.Event
	cancel func()
}

func (s *poolSubscription) Events() <-chan *nostr.Event {
	return s.events
}

func (s *poolSubscription) Close() {
	s.cancel()
}
