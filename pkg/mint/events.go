package mint

import (
	"time"

	"github.com/povmint/povmint-core/pkg/badge"
)

// Challenge is one minted display payload: the nonce and what it binds.
type Challenge struct {
	Nonce      string
	AddressRef string
	ExpiresAt  int64
}

// Remaining returns how long the challenge stays valid from now.
func (c Challenge) Remaining(now time.Time) time.Duration {
	d := time.Unix(c.ExpiresAt, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// EventType tags the events a running Minter emits.
type EventType string

const (
	// EventStarted is emitted once when the session loop begins.
	EventStarted EventType = "started"
	// EventNonceRotated carries a freshly minted display challenge.
	EventNonceRotated EventType = "nonce_rotated"
	// EventAwardIssued reports a successful claim.
	EventAwardIssued EventType = "award_issued"
	// EventRequestRejected reports a rejected claim request.
	EventRequestRejected EventType = "request_rejected"
	// EventError reports a failure that did not stop the session.
	EventError EventType = "error"
	// EventStopped is emitted when the session loop ends.
	EventStopped EventType = "stopped"
)

// Event is one observable step of a running admin session.
type Event struct {
	Type      EventType
	Challenge *Challenge
	Award     *badge.Award
	Requester string
	Code      string
	Err       string
	Timestamp time.Time
}
