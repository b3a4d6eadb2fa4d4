// Package protocol defines the wire model of the claim protocol: the tag
// schema of claim request and response events, fail-closed parsing into
// typed structs, the claim URL codec, and the rejection-code taxonomy.
package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Tag names used on claim events.
const (
	// TagRecipient addresses the counterparty: the badge issuer on a
	// request, the requester on a response.
	TagRecipient = "p"

	// TagAddress carries the badge address reference (kind:pubkey:identifier).
	TagAddress = "a"

	// TagNonce carries the minted nonce (hex).
	TagNonce = "nonce"

	// TagExpiry carries the nonce expiry (unix seconds, decimal).
	TagExpiry = "t"

	// TagRequestRef on a response references the request's event id.
	TagRequestRef = "e"
)

// ClaimContent is the claimant profile payload carried in a claim request.
// Pubkey is the claimant's resolved identity; the remaining fields are
// display-only enrichment.
type ClaimContent struct {
	Pubkey      string `json:"pubkey"`
	NIP05       string `json:"nip05,omitempty"`
	Image       string `json:"image,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// ResponseContent is the verdict payload carried in a claim response.
type ResponseContent struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ClaimRequest is the parsed, validated-for-shape form of an inbound
// claim request event. Field presence is guaranteed by ParseClaimRequest;
// semantic validity (expiry, nonce recomputation, duplicates) is the
// coordinator's job.
type ClaimRequest struct {
	// EventID is the request event id, referenced by the response.
	EventID string

	// Requester is the pubkey that signed the request.
	Requester string

	// IssuerPubkey is the badge issuer the request addresses.
	IssuerPubkey string

	// AddressRef is the badge address the request targets.
	AddressRef string

	// Nonce is the minted nonce echoed back by the claimant.
	Nonce string

	// ExpiresAt is the nonce expiry in unix seconds.
	ExpiresAt int64

	// Content is the claimant profile payload.
	Content ClaimContent

	// CreatedAt is the event timestamp in unix seconds.
	CreatedAt int64
}

// ClaimResponse is the parsed form of a claim response event.
type ClaimResponse struct {
	// EventID is the response event id.
	EventID string

	// Issuer is the pubkey that signed the response.
	Issuer string

	// Recipient is the requester the verdict addresses.
	Recipient string

	// AddressRef is the badge address the verdict concerns.
	AddressRef string

	// RequestRef is the event id of the claim request being answered.
	RequestRef string

	// Content is the verdict payload.
	Content ResponseContent
}

// NewClaimRequestEvent builds an unsigned claim request event.
func NewClaimRequestEvent(kinds Kinds, issuerPubkey, addressRef, nonce string, expiresAt int64, content ClaimContent) (*nostr.Event, error) {
	body, err := json.Marshal(content)
	if err != nil {
		return nil, WrapError(CodeMalformed, "failed to encode claim content", err)
	}
	return &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      kinds.ClaimRequest,
		Tags: nostr.Tags{
			{TagRecipient, issuerPubkey},
			{TagAddress, addressRef},
			{TagNonce, nonce},
			{TagExpiry, strconv.FormatInt(expiresAt, 10)},
		},
		Content: string(body),
	}, nil
}

// NewClaimResponseEvent builds an unsigned claim response event answering
// the request with the given event id. An empty errCode means success.
func NewClaimResponseEvent(kinds Kinds, recipientPubkey, addressRef, requestID, errCode string) (*nostr.Event, error) {
	body, err := json.Marshal(ResponseContent{
		Success: errCode == "",
		Error:   errCode,
	})
	if err != nil {
		return nil, WrapError(CodeMalformed, "failed to encode response content", err)
	}
	return &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      kinds.ClaimResponse,
		Tags: nostr.Tags{
			{TagRecipient, recipientPubkey},
			{TagAddress, addressRef},
			{TagRequestRef, requestID},
		},
		Content: string(body),
	}, nil
}

// ParseClaimRequest parses an event into a ClaimRequest, failing closed:
// a missing required tag or unparseable content rejects the whole event
// with the matching protocol code, never a partial value.
func ParseClaimRequest(evt *nostr.Event) (*ClaimRequest, error) {
	issuer := tagValue(evt, TagRecipient)
	if issuer == "" {
		return nil, WrapError(CodeMalformed, "request has no issuer p tag", nil)
	}
	addressRef := tagValue(evt, TagAddress)
	if addressRef == "" {
		return nil, WrapError(CodeMalformed, "request has no badge a tag", nil)
	}
	nonce := tagValue(evt, TagNonce)
	if nonce == "" {
		return nil, ErrMissingNonce
	}
	rawExpiry := tagValue(evt, TagExpiry)
	if rawExpiry == "" {
		return nil, ErrMissingTimestamp
	}
	expiresAt, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return nil, WrapError(CodeMissingTimestamp, "expiry tag is not an integer", err)
	}

	var content ClaimContent
	if evt.Content != "" {
		if err := json.Unmarshal([]byte(evt.Content), &content); err != nil {
			return nil, WrapError(CodeMalformed, "claim content is not valid JSON", err)
		}
	}

	return &ClaimRequest{
		EventID:      evt.ID,
		Requester:    evt.PubKey,
		IssuerPubkey: issuer,
		AddressRef:   addressRef,
		Nonce:        nonce,
		ExpiresAt:    expiresAt,
		Content:      content,
		CreatedAt:    int64(evt.CreatedAt),
	}, nil
}

// ParseClaimResponse parses an event into a ClaimResponse, failing closed.
func ParseClaimResponse(evt *nostr.Event) (*ClaimResponse, error) {
	recipient := tagValue(evt, TagRecipient)
	if recipient == "" {
		return nil, WrapError(CodeMalformed, "response has no recipient p tag", nil)
	}
	addressRef := tagValue(evt, TagAddress)
	if addressRef == "" {
		return nil, WrapError(CodeMalformed, "response has no badge a tag", nil)
	}
	requestRef := tagValue(evt, TagRequestRef)
	if requestRef == "" {
		return nil, WrapError(CodeMalformed, "response has no request e tag", nil)
	}

	var content ResponseContent
	if err := json.Unmarshal([]byte(evt.Content), &content); err != nil {
		return nil, WrapError(CodeMalformed, "response content is not valid JSON", err)
	}

	return &ClaimResponse{
		EventID:    evt.ID,
		Issuer:     evt.PubKey,
		Recipient:  recipient,
		AddressRef: addressRef,
		RequestRef: requestRef,
		Content:    content,
	}, nil
}

// tagValue returns the value of the first tag with the given name, or "".
func tagValue(evt *nostr.Event, name string) string {
	tag := evt.Tags.GetFirst([]string{name})
	if tag == nil {
		return ""
	}
	return tag.Value()
}
