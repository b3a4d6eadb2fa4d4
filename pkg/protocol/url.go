package protocol

import (
	"net/url"
	"strconv"
)

// Claim URL query parameters. The admin encodes a fresh nonce into this
// URL on every rotation; the claimant session decodes it after a scan.
const (
	ParamNonce  = "nonce"
	ParamNaddr  = "naddr"
	ParamExpiry = "t"
)

// ClaimURL is the decoded claim entry point payload.
type ClaimURL struct {
	// Nonce is the minted nonce (hex).
	Nonce string

	// Naddr is the badge address reference in nip-19 entity encoding.
	Naddr string

	// ExpiresAt is the nonce expiry in unix seconds.
	ExpiresAt int64
}

// EncodeClaimURL renders the claim entry point URL for a display payload.
// base is the claimant-facing page, e.g. "https://example.org/claim".
func EncodeClaimURL(base, nonce, naddr string, expiresAt int64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", WrapError(CodeMalformed, "invalid claim base URL", err)
	}
	q := u.Query()
	q.Set(ParamNonce, nonce)
	q.Set(ParamNaddr, naddr)
	q.Set(ParamExpiry, strconv.FormatInt(expiresAt, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseClaimURL decodes a scanned claim URL, failing closed on any
// missing or malformed parameter.
func ParseClaimURL(raw string) (*ClaimURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, WrapError(CodeMalformed, "invalid claim URL", err)
	}
	q := u.Query()

	nonce := q.Get(ParamNonce)
	if nonce == "" {
		return nil, ErrMissingNonce
	}
	naddr := q.Get(ParamNaddr)
	if naddr == "" {
		return nil, WrapError(CodeMalformed, "claim URL has no naddr", nil)
	}
	rawExpiry := q.Get(ParamExpiry)
	if rawExpiry == "" {
		return nil, ErrMissingTimestamp
	}
	expiresAt, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return nil, WrapError(CodeMissingTimestamp, "expiry parameter is not an integer", err)
	}

	return &ClaimURL{Nonce: nonce, Naddr: naddr, ExpiresAt: expiresAt}, nil
}
