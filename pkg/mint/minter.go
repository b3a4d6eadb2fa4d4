// Package mint runs the admin session's side of the claim protocol:
// rotating the displayed nonce and turning inbound claim requests into
// badge awards or rejections.
package mint

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/povmint/povmint-core/pkg/badge"
	"github.com/povmint/povmint-core/pkg/nonce"
	"github.com/povmint/povmint-core/pkg/protocol"
	"github.com/povmint/povmint-core/pkg/registry"
	"github.com/povmint/povmint-core/pkg/relay"
)

// Config holds the collaborators and tunables of a Minter.
type Config struct {
	// Badge is the definition this session awards. IssuerPubkey must be
	// the signer's identity.
	Badge badge.Definition

	// Kinds is the wire kind assignment. Zero means DefaultKinds.
	Kinds protocol.Kinds

	// TTL is the nonce validity window (default 120s).
	TTL time.Duration

	// RefreshInterval is how often the displayed nonce rotates
	// (default 2s). Independent of TTL so the display always shows a
	// nonce well inside its validity window.
	RefreshInterval time.Duration

	// BaseURL is the claimant-facing page the claim URL points at.
	BaseURL string

	// RelayHints are embedded in the naddr of the claim URL.
	RelayHints []string

	// Registry records issued awards and backs duplicate detection.
	Registry registry.Registry

	Signer     relay.Signer
	Publisher  relay.Publisher
	Subscriber relay.Subscriber

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Minter is the admin-session coordinator. Create with New, drive with
// Run; IssueNonce and ClaimURL may be called from any goroutine.
type Minter struct {
	cfg        Config
	codec      *nonce.Codec
	addressRef string
}

// New creates a Minter, applying defaults and minting the session salt.
func New(cfg Config) (*Minter, error) {
	if cfg.Badge.IssuerPubkey == "" || cfg.Badge.Identifier == "" {
		return nil, fmt.Errorf("badge definition needs an issuer pubkey and an identifier")
	}
	if cfg.Registry == nil || cfg.Signer == nil || cfg.Publisher == nil || cfg.Subscriber == nil {
		return nil, fmt.Errorf("registry, signer, publisher and subscriber are all required")
	}
	if cfg.Kinds.IsZero() {
		cfg.Kinds = protocol.DefaultKinds()
	}
	if cfg.TTL == 0 {
		cfg.TTL = 120 * time.Second
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	codec, err := nonce.NewCodec()
	if err != nil {
		return nil, err
	}

	return &Minter{
		cfg:        cfg,
		codec:      codec,
		addressRef: cfg.Badge.AddressRef(cfg.Kinds.BadgeDefinition),
	}, nil
}

// AddressRef returns the address reference of the session's badge.
func (m *Minter) AddressRef() string {
	return m.addressRef
}

// IssueNonce mints a fresh display challenge valid for the configured TTL.
func (m *Minter) IssueNonce() Challenge {
	expiresAt := m.cfg.Now().Add(m.cfg.TTL).Unix()
	return Challenge{
		Nonce:      m.codec.Mint(m.addressRef, expiresAt),
		AddressRef: m.addressRef,
		ExpiresAt:  expiresAt,
	}
}

// ClaimURL renders the claim entry point URL for a challenge.
func (m *Minter) ClaimURL(c Challenge) (string, error) {
	naddr, err := m.cfg.Badge.Naddr(m.cfg.Kinds.BadgeDefinition, m.cfg.RelayHints)
	if err != nil {
		return "", fmt.Errorf("failed to encode badge naddr: %w", err)
	}
	return protocol.EncodeClaimURL(m.cfg.BaseURL, c.Nonce, naddr, c.ExpiresAt)
}

// Awards returns the awards recorded so far for the session's badge.
func (m *Minter) Awards() []badge.Award {
	return m.cfg.Registry.List(m.addressRef)
}

// Run drives the session until ctx is cancelled: it subscribes to claim
// requests for the badge, rotates the displayed challenge on every
// refresh tick, and handles requests strictly one at a time. The single
// select loop is the serialization point that keeps two simultaneous
// requests from the same claimant from both passing the duplicate check.
//
// The events channel is closed when Run returns.
func (m *Minter) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	issuer, err := m.cfg.Signer.PublicKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve signer identity: %w", err)
	}
	if issuer != m.cfg.Badge.IssuerPubkey {
		return fmt.Errorf("signer %s is not authorized to award badge issued by %s", issuer, m.cfg.Badge.IssuerPubkey)
	}

	since := nostr.Timestamp(m.cfg.Now().Unix())
	sub, err := m.cfg.Subscriber.Subscribe(ctx, nostr.Filter{
		Kinds: []int{m.cfg.Kinds.ClaimRequest},
		Tags: nostr.TagMap{
			protocol.TagRecipient: []string{m.cfg.Badge.IssuerPubkey},
			protocol.TagAddress:   []string{m.addressRef},
		},
		Since: &since,
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to claim requests: %w", err)
	}
	defer sub.Close()

	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()

	events <- Event{Type: EventStarted, Timestamp: m.cfg.Now()}
	first := m.IssueNonce()
	events <- Event{Type: EventNonceRotated, Challenge: &first, Timestamp: m.cfg.Now()}

	for {
		select {
		case <-ctx.Done():
			events <- Event{Type: EventStopped, Timestamp: m.cfg.Now()}
			return nil
		case <-ticker.C:
			c := m.IssueNonce()
			events <- Event{Type: EventNonceRotated, Challenge: &c, Timestamp: m.cfg.Now()}
		case evt, ok := <-sub.Events():
			if !ok {
				return fmt.Errorf("claim request subscription ended")
			}
			m.handle(ctx, evt, events)
		}
	}
}

// handle validates one claim request and publishes the verdict.
// A bad request rejects that one request and never fails the session.
func (m *Minter) handle(ctx context.Context, evt *nostr.Event, events chan<- Event) {
	req, verr := m.validate(evt)

	if verr == nil {
		award, err := m.issueAward(ctx, req)
		if err != nil {
			verr = protocol.WrapError(protocol.CodePublishFailed, "failed to publish badge award", err)
		} else {
			events <- Event{Type: EventAwardIssued, Award: award, Requester: evt.PubKey, Timestamp: m.cfg.Now()}
		}
	}

	code := ""
	if verr != nil {
		code = verr.Code
		events <- Event{Type: EventRequestRejected, Requester: evt.PubKey, Code: code, Err: verr.Error(), Timestamp: m.cfg.Now()}
	}

	if err := m.respond(ctx, evt, code); err != nil {
		events <- Event{Type: EventError, Requester: evt.PubKey, Code: protocol.CodePublishFailed, Err: err.Error(), Timestamp: m.cfg.Now()}
	}
}

// validate runs the rejection pipeline, short-circuiting on the first
// failure. Order matters: shape, expiry, nonce, duplicate.
func (m *Minter) validate(evt *nostr.Event) (*protocol.ClaimRequest, *protocol.Error) {
	req, err := protocol.ParseClaimRequest(evt)
	if err != nil {
		if perr, ok := protocol.AsError(err); ok {
			return nil, perr
		}
		return nil, protocol.WrapError(protocol.CodeMalformed, "failed to parse claim request", err)
	}

	if req.ExpiresAt < m.cfg.Now().Unix() {
		return nil, protocol.ErrExpired
	}

	// Verify against the session badge's address, not the request's:
	// a nonce minted for another badge must not verify here.
	if !m.codec.Verify(req.Nonce, m.addressRef, req.ExpiresAt) {
		return nil, protocol.ErrInvalidNonce
	}

	if m.cfg.Registry.Contains(m.addressRef, req.Requester) {
		return nil, protocol.ErrAlreadyClaimed
	}

	return req, nil
}

// issueAward signs and publishes the badge award event and records it.
// The registry append happens only after the award is accepted by the
// transport, so a failed publish leaves the claimant free to retry.
func (m *Minter) issueAward(ctx context.Context, req *protocol.ClaimRequest) (*badge.Award, error) {
	evt := &nostr.Event{
		CreatedAt: nostr.Timestamp(m.cfg.Now().Unix()),
		Kind:      m.cfg.Kinds.BadgeAward,
		Tags: nostr.Tags{
			{protocol.TagAddress, m.addressRef},
			{protocol.TagRecipient, req.Requester},
		},
	}
	if err := m.cfg.Signer.SignEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("failed to sign award: %w", err)
	}
	if err := m.cfg.Publisher.Publish(ctx, evt); err != nil {
		return nil, err
	}

	award := badge.Award{
		ID:         evt.ID,
		Recipient:  req.Requester,
		AddressRef: m.addressRef,
		Claim:      req.Content,
		Event:      evt,
		AwardedAt:  m.cfg.Now().Unix(),
	}
	if err := m.cfg.Registry.Append(award); err != nil {
		return nil, fmt.Errorf("failed to record award: %w", err)
	}
	return &award, nil
}

// respond publishes the claim response for a request event. An empty
// code means success.
func (m *Minter) respond(ctx context.Context, reqEvt *nostr.Event, code string) error {
	evt, err := protocol.NewClaimResponseEvent(m.cfg.Kinds, reqEvt.PubKey, m.addressRef, reqEvt.ID, code)
	if err != nil {
		return err
	}
	if err := m.cfg.Signer.SignEvent(ctx, evt); err != nil {
		return fmt.Errorf("failed to sign claim response: %w", err)
	}
	if err := m.cfg.Publisher.Publish(ctx, evt); err != nil {
		return fmt.Errorf("failed to publish claim response: %w", err)
	}
	return nil
}
