// Package claim runs the claimant session's side of the protocol:
// decoding a scanned claim URL, resolving the claimant identity, publishing
// the signed claim request, and awaiting the issuer's correlated verdict.
package claim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/povmint/povmint-core/pkg/badge"
	"github.com/povmint/povmint-core/pkg/protocol"
	"github.com/povmint/povmint-core/pkg/relay"
)

// State is a phase of the claimant session.
type State string

const (
	StateResolving State = "resolving"
	StateClaiming  State = "claiming"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
)

// Config holds the collaborators and tunables of a Claimer.
type Config struct {
	// Kinds is the wire kind assignment. Zero means DefaultKinds.
	Kinds protocol.Kinds

	// Timeout bounds the wait for a claim response after publishing.
	// Should exceed the nonce TTL plus network slack (default 150s).
	Timeout time.Duration

	Signer     relay.Signer
	Publisher  relay.Publisher
	Subscriber relay.Subscriber

	// Resolver maps claimant addresses to pubkeys (default
	// DirectoryResolver).
	Resolver Resolver

	// OnState, if set, observes state transitions.
	OnState func(State)

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Result is the terminal outcome of one claim attempt.
type Result struct {
	// State is StateComplete or StateFailed.
	State State

	// Code names the failure when State is StateFailed; it is either a
	// local code (RESOLUTION_ERROR, PUBLISH_FAILED, TIMEOUT) or the
	// issuer-supplied rejection code.
	Code string

	// Response is the parsed verdict, when one arrived.
	Response *protocol.ClaimResponse

	// Requester is the pubkey that signed the claim request.
	Requester string

	// Claimant is the resolved claimant identity carried in the request.
	Claimant string

	// RequestID is the id of the published claim request event.
	RequestID string
}

// Failed reports whether the attempt ended in failure.
func (r *Result) Failed() bool {
	return r.State == StateFailed
}

// Claimer is the claimant-session coordinator.
type Claimer struct {
	cfg Config
}

// New creates a Claimer, applying defaults.
func New(cfg Config) (*Claimer, error) {
	if cfg.Signer == nil || cfg.Publisher == nil || cfg.Subscriber == nil {
		return nil, fmt.Errorf("signer, publisher and subscriber are all required")
	}
	if cfg.Kinds.IsZero() {
		cfg.Kinds = protocol.DefaultKinds()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 150 * time.Second
	}
	if cfg.Resolver == nil {
		cfg.Resolver = DirectoryResolver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Claimer{cfg: cfg}, nil
}

// Claim runs one attempt end to end: resolve the claimant address (empty
// means the session's own key), publish the request carrying the scanned
// nonce, and wait for the correlated response or the timeout.
//
// Protocol-level failures end up in the Result with a code; an error is
// returned only for malformed input or a broken transport.
func (c *Claimer) Claim(ctx context.Context, rawURL, address string) (*Result, error) {
	link, err := protocol.ParseClaimURL(rawURL)
	if err != nil {
		return nil, err
	}
	ref, err := badge.DecodeNaddr(link.Naddr)
	if err != nil {
		return nil, err
	}
	if ref.Kind != c.cfg.Kinds.BadgeDefinition {
		return nil, fmt.Errorf("claim URL does not point at a badge definition (kind %d)", ref.Kind)
	}
	addressRef := ref.AddressRef()

	requester, err := c.cfg.Signer.PublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signer identity: %w", err)
	}

	// Resolve claimant identity.
	c.setState(StateResolving)
	claimant := requester
	if address != "" {
		claimant, err = c.cfg.Resolver.Resolve(ctx, address)
		if err != nil {
			c.setState(StateFailed)
			return &Result{
				State:     StateFailed,
				Code:      protocol.CodeResolutionError,
				Requester: requester,
			}, nil
		}
	}
	content := c.buildContent(ctx, claimant, address)

	// Subscribe before publishing so the verdict cannot slip past.
	c.setState(StateClaiming)
	since := nostr.Timestamp(c.cfg.Now().Unix())
	sub, err := c.cfg.Subscriber.Subscribe(ctx, nostr.Filter{
		Kinds:   []int{c.cfg.Kinds.ClaimResponse},
		Authors: []string{ref.IssuerPubkey},
		Tags: nostr.TagMap{
			protocol.TagRecipient: []string{requester},
			protocol.TagAddress:   []string{addressRef},
		},
		Since: &since,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to claim responses: %w", err)
	}
	defer sub.Close()

	evt, err := protocol.NewClaimRequestEvent(c.cfg.Kinds, ref.IssuerPubkey, addressRef, link.Nonce, link.ExpiresAt, content)
	if err != nil {
		return nil, err
	}
	if err := c.cfg.Signer.SignEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("failed to sign claim request: %w", err)
	}
	if err := c.cfg.Publisher.Publish(ctx, evt); err != nil {
		c.setState(StateFailed)
		return &Result{
			State:     StateFailed,
			Code:      protocol.CodePublishFailed,
			Requester: requester,
			Claimant:  claimant,
			RequestID: evt.ID,
		}, nil
	}

	result := &Result{Requester: requester, Claimant: claimant, RequestID: evt.ID}
	return c.await(ctx, sub, result)
}

// await watches the response stream for the verdict correlated to the
// published request, bounded by the configured timeout.
func (c *Claimer) await(ctx context.Context, sub relay.Subscription, result *Result) (*Result, error) {
	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			c.setState(StateFailed)
			result.State = StateFailed
			result.Code = protocol.CodeTimeout
			return result, nil
		case evt, ok := <-sub.Events():
			if !ok {
				return nil, fmt.Errorf("claim response subscription ended")
			}
			resp, err := protocol.ParseClaimResponse(evt)
			if err != nil {
				// Not a usable verdict; keep waiting.
				continue
			}
			if resp.RequestRef != result.RequestID {
				continue
			}
			result.Response = resp
			if resp.Content.Success {
				c.setState(StateComplete)
				result.State = StateComplete
				return result, nil
			}
			c.setState(StateFailed)
			result.State = StateFailed
			result.Code = resp.Content.Error
			return result, nil
		}
	}
}

// buildContent assembles the claimant profile payload, enriched from the
// public kind-0 metadata when it can be fetched quickly.
func (c *Claimer) buildContent(ctx context.Context, claimant, address string) protocol.ClaimContent {
	content := protocol.ClaimContent{Pubkey: claimant}
	if address != "" && !isBech32(address) {
		content.NIP05 = address
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if profile, err := badge.FetchProfile(fetchCtx, c.cfg.Subscriber, claimant); err == nil {
		content.DisplayName = profile.DisplayName
		if content.DisplayName == "" {
			content.DisplayName = profile.Name
		}
		content.Image = profile.Picture
		if profile.NIP05 != "" {
			content.NIP05 = profile.NIP05
		}
	}
	return content
}

func (c *Claimer) setState(s State) {
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

func isBech32(address string) bool {
	return strings.HasPrefix(address, "npub") || strings.HasPrefix(address, "nprofile")
}
