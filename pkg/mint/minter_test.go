package mint_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/povmint/povmint-core/pkg/badge"
	"github.com/povmint/povmint-core/pkg/mint"
	"github.com/povmint/povmint-core/pkg/protocol"
	"github.com/povmint/povmint-core/pkg/registry"
	"github.com/povmint/povmint-core/pkg/relay"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakePublisher struct {
	mu       sync.Mutex
	events   []*nostr.Event
	failKind int
}

func (p *fakePublisher) Publish(_ context.Context, evt *nostr.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failKind != 0 && evt.Kind == p.failKind {
		return errors.New("all relays refused the event")
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) byKind(kind int) []*nostr.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*nostr.Event
	for _, evt := range p.events {
		if evt.Kind == kind {
			out = append(out, evt)
		}
	}
	return out
}

type fakeSubscription struct{ ch chan *nostr.Event }

func (s *fakeSubscription) Events() <-chan *nostr.Event { return s.ch }
func (s *fakeSubscription) Close()                      {}

type fakeSubscriber struct {
	mu      sync.Mutex
	filters []nostr.Filter
	sub     *fakeSubscription
}

func (s *fakeSubscriber) Subscribe(_ context.Context, f nostr.Filter) (relay.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
	return s.sub, nil
}

// harness runs a Minter against fake transport collaborators.
type harness struct {
	t          *testing.T
	minter     *mint.Minter
	clock      *fakeClock
	pub        *fakePublisher
	subscriber *fakeSubscriber
	reg        *registry.Memory
	requests   chan *nostr.Event
	events     chan mint.Event
	claimant   *relay.KeySigner
	issuerPK   string
	claimantPK string
}

func newHarness(t *testing.T, failKind int) *harness {
	t.Helper()

	issuer, err := relay.GenerateKeySigner()
	require.NoError(t, err)
	claimant, err := relay.GenerateKeySigner()
	require.NoError(t, err)
	issuerPK, err := issuer.PublicKey(context.Background())
	require.NoError(t, err)
	claimantPK, err := claimant.PublicKey(context.Background())
	require.NoError(t, err)

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	pub := &fakePublisher{failKind: failKind}
	reg := registry.NewMemory()
	requests := make(chan *nostr.Event, 8)
	subscriber := &fakeSubscriber{sub: &fakeSubscription{ch: requests}}

	minter, err := mint.New(mint.Config{
		Badge: badge.Definition{
			Identifier:   "pizza-party-2025",
			Name:         "Pizza Party 2025",
			IssuerPubkey: issuerPK,
		},
		TTL:             2 * time.Minute,
		RefreshInterval: time.Hour, // keep rotation out of the way
		BaseURL:         "https://badges.example.org/claim",
		RelayHints:      []string{"wss://relay.damus.io"},
		Registry:        reg,
		Signer:          issuer,
		Publisher:       pub,
		Subscriber:      subscriber,
		Now:             clock.Now,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan mint.Event, 64)
	done := make(chan error, 1)
	go func() { done <- minter.Run(ctx, events) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	h := &harness{
		t: t, minter: minter, clock: clock, pub: pub, subscriber: subscriber,
		reg: reg, requests: requests, events: events, claimant: claimant,
		issuerPK: issuerPK, claimantPK: claimantPK,
	}
	h.expect(mint.EventStarted)
	h.expect(mint.EventNonceRotated)
	return h
}

// expect reads the next event and requires its type.
func (h *harness) expect(want mint.EventType) mint.Event {
	h.t.Helper()
	select {
	case evt, ok := <-h.events:
		require.True(h.t, ok, "event channel closed early")
		require.Equal(h.t, want, evt.Type)
		return evt
	case <-time.After(5 * time.Second):
		h.t.Fatalf("no %s event within 5s", want)
		return mint.Event{}
	}
}

// outcome reads events until a per-request verdict arrives.
func (h *harness) outcome() mint.Event {
	h.t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-h.events:
			require.True(h.t, ok, "event channel closed early")
			switch evt.Type {
			case mint.EventAwardIssued, mint.EventRequestRejected, mint.EventError:
				return evt
			}
		case <-deadline:
			h.t.Fatal("no claim outcome within 5s")
			return mint.Event{}
		}
	}
}

// send builds, signs and enqueues a claim request for the challenge.
func (h *harness) send(c mint.Challenge, mutate func(*nostr.Event)) *nostr.Event {
	h.t.Helper()
	evt, err := protocol.NewClaimRequestEvent(
		protocol.DefaultKinds(), h.issuerPK, c.AddressRef, c.Nonce, c.ExpiresAt,
		protocol.ClaimContent{Pubkey: h.claimantPK, DisplayName: "Alice"},
	)
	require.NoError(h.t, err)
	if mutate != nil {
		mutate(evt)
	}
	require.NoError(h.t, h.claimant.SignEvent(context.Background(), evt))
	h.requests <- evt
	return evt
}

// lastResponse parses the most recently published claim response.
func (h *harness) lastResponse() *protocol.ClaimResponse {
	h.t.Helper()
	responses := h.pub.byKind(protocol.DefaultKinds().ClaimResponse)
	require.NotEmpty(h.t, responses, "no claim response published")
	resp, err := protocol.ParseClaimResponse(responses[len(responses)-1])
	require.NoError(h.t, err)
	return resp
}

func TestMintHappyPath(t *testing.T) {
	h := newHarness(t, 0)

	reqEvt := h.send(h.minter.IssueNonce(), nil)
	evt := h.outcome()

	require.Equal(t, mint.EventAwardIssued, evt.Type)
	require.NotNil(t, evt.Award)
	assert.Equal(t, h.claimantPK, evt.Award.Recipient)
	assert.Equal(t, h.minter.AddressRef(), evt.Award.AddressRef)
	assert.Equal(t, "Alice", evt.Award.Claim.DisplayName)

	assert.True(t, h.reg.Contains(h.minter.AddressRef(), h.claimantPK))
	require.Len(t, h.minter.Awards(), 1)

	// The award event is signed by the issuer and addresses the requester.
	awards := h.pub.byKind(protocol.DefaultKinds().BadgeAward)
	require.Len(t, awards, 1)
	assert.Equal(t, h.issuerPK, awards[0].PubKey)
	assert.Equal(t, h.claimantPK, awards[0].Tags.GetFirst([]string{"p"}).Value())
	assert.Equal(t, h.minter.AddressRef(), awards[0].Tags.GetFirst([]string{"a"}).Value())

	resp := h.lastResponse()
	assert.True(t, resp.Content.Success)
	assert.Equal(t, reqEvt.ID, resp.RequestRef)
	assert.Equal(t, h.claimantPK, resp.Recipient)
}

func TestMintSubscribesToOwnBadgeOnly(t *testing.T) {
	h := newHarness(t, 0)

	h.subscriber.mu.Lock()
	defer h.subscriber.mu.Unlock()
	require.Len(t, h.subscriber.filters, 1)
	f := h.subscriber.filters[0]
	assert.Equal(t, []int{protocol.DefaultKinds().ClaimRequest}, f.Kinds)
	assert.Equal(t, []string{h.issuerPK}, f.Tags["p"])
	assert.Equal(t, []string{h.minter.AddressRef()}, f.Tags["a"])
	require.NotNil(t, f.Since)
}

func TestMintRejectsTamperedNonce(t *testing.T) {
	h := newHarness(t, 0)

	c := h.minter.IssueNonce()
	c.Nonce = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	h.send(c, nil)

	evt := h.outcome()
	require.Equal(t, mint.EventRequestRejected, evt.Type)
	assert.Equal(t, protocol.CodeInvalidNonce, evt.Code)
	assert.False(t, h.lastResponse().Content.Success)
	assert.Equal(t, protocol.CodeInvalidNonce, h.lastResponse().Content.Error)
	assert.Empty(t, h.minter.Awards())
}

func TestMintRejectsNonceFromAnotherSession(t *testing.T) {
	h := newHarness(t, 0)

	// Same badge, different session salt: a restart invalidates old QR codes.
	other := newHarness(t, 0)
	c := other.minter.IssueNonce()
	c.AddressRef = h.minter.AddressRef()

	h.send(c, nil)
	evt := h.outcome()
	require.Equal(t, mint.EventRequestRejected, evt.Type)
	assert.Equal(t, protocol.CodeInvalidNonce, evt.Code)
}

func TestMintRejectsStaleNonce(t *testing.T) {
	h := newHarness(t, 0)

	c := h.minter.IssueNonce()
	h.clock.Advance(3 * time.Minute)

	h.send(c, nil)
	evt := h.outcome()
	require.Equal(t, mint.EventRequestRejected, evt.Type)
	assert.Equal(t, protocol.CodeExpired, evt.Code)
	assert.Equal(t, protocol.CodeExpired, h.lastResponse().Content.Error)
}

func TestMintRejectsForgedExpiry(t *testing.T) {
	h := newHarness(t, 0)

	// Moving the expiry forward without re-minting breaks the nonce binding.
	c := h.minter.IssueNonce()
	c.ExpiresAt += 3600

	h.send(c, nil)
	evt := h.outcome()
	require.Equal(t, mint.EventRequestRejected, evt.Type)
	assert.Equal(t, protocol.CodeInvalidNonce, evt.Code)
}

func TestMintRejectsMissingNonce(t *testing.T) {
	h := newHarness(t, 0)

	h.send(h.minter.IssueNonce(), func(evt *nostr.Event) {
		var kept nostr.Tags
		for _, tag := range evt.Tags {
			if tag[0] != "nonce" {
				kept = append(kept, tag)
			}
		}
		evt.Tags = kept
	})

	evt := h.outcome()
	require.Equal(t, mint.EventRequestRejected, evt.Type)
	assert.Equal(t, protocol.CodeMissingNonce, evt.Code)
}

func TestMintRejectsDoubleClaim(t *testing.T) {
	h := newHarness(t, 0)

	h.send(h.minter.IssueNonce(), nil)
	require.Equal(t, mint.EventAwardIssued, h.outcome().Type)

	// Fresh, perfectly valid nonce; same claimant.
	h.send(h.minter.IssueNonce(), nil)
	evt := h.outcome()
	require.Equal(t, mint.EventRequestRejected, evt.Type)
	assert.Equal(t, protocol.CodeAlreadyClaimed, evt.Code)
	require.Len(t, h.minter.Awards(), 1)
}

func TestMintSerializesSimultaneousDuplicates(t *testing.T) {
	h := newHarness(t, 0)

	// Both requests are enqueued before either is handled; the session
	// loop must still award exactly once.
	c := h.minter.IssueNonce()
	h.send(c, nil)
	h.send(c, nil)

	first := h.outcome()
	second := h.outcome()
	require.Equal(t, mint.EventAwardIssued, first.Type)
	require.Equal(t, mint.EventRequestRejected, second.Type)
	assert.Equal(t, protocol.CodeAlreadyClaimed, second.Code)
	require.Len(t, h.minter.Awards(), 1)
}

func TestMintPublishFailureLeavesClaimOpen(t *testing.T) {
	h := newHarness(t, protocol.DefaultKinds().BadgeAward)

	h.send(h.minter.IssueNonce(), nil)
	evt := h.outcome()
	require.Equal(t, mint.EventRequestRejected, evt.Type)
	assert.Equal(t, protocol.CodePublishFailed, evt.Code)

	// Nothing recorded, so the claimant is free to retry.
	assert.Empty(t, h.minter.Awards())
	assert.Equal(t, protocol.CodePublishFailed, h.lastResponse().Content.Error)
}

func TestMintChallengeAndClaimURL(t *testing.T) {
	h := newHarness(t, 0)

	c := h.minter.IssueNonce()
	assert.Equal(t, h.minter.AddressRef(), c.AddressRef)
	assert.Equal(t, 2*time.Minute, c.Remaining(h.clock.Now()))
	assert.Equal(t, time.Duration(0), c.Remaining(h.clock.Now().Add(time.Hour)))

	raw, err := h.minter.ClaimURL(c)
	require.NoError(t, err)

	decoded, err := protocol.ParseClaimURL(raw)
	require.NoError(t, err)
	assert.Equal(t, c.Nonce, decoded.Nonce)
	assert.Equal(t, c.ExpiresAt, decoded.ExpiresAt)

	ref, err := badge.DecodeNaddr(decoded.Naddr)
	require.NoError(t, err)
	assert.Equal(t, h.minter.AddressRef(), ref.AddressRef())
	assert.Equal(t, []string{"wss://relay.damus.io"}, ref.Relays)
}

func TestRunRefusesForeignBadge(t *testing.T) {
	signer, err := relay.GenerateKeySigner()
	require.NoError(t, err)

	minter, err := mint.New(mint.Config{
		Badge: badge.Definition{
			Identifier:   "pizza-party-2025",
			IssuerPubkey: "82341f882b6eabcd2ba7f1ef90aad961cf074af15b9ef44a09f9d2a8fbfbe6a2",
		},
		Registry:   registry.NewMemory(),
		Signer:     signer,
		Publisher:  &fakePublisher{},
		Subscriber: &fakeSubscriber{sub: &fakeSubscription{ch: make(chan *nostr.Event)}},
	})
	require.NoError(t, err)

	events := make(chan mint.Event, 8)
	err = minter.Run(context.Background(), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := mint.New(mint.Config{})
	assert.Error(t, err)

	_, err = mint.New(mint.Config{
		Badge: badge.Definition{Identifier: "x", IssuerPubkey: "pk"},
	})
	assert.Error(t, err)
}
