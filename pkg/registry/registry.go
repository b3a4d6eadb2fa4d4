// Package registry keeps the admin session's append-only list of badge
// awards, keyed by badge address. It backs duplicate-claimant detection
// and display; the authoritative record is the public relay event log.
package registry

import (
	"sync"

	"github.com/povmint/povmint-core/pkg/badge"
)

// Registry records issued awards. Implementations must be safe for
// concurrent use; the mint coordinator nevertheless serializes its
// check-then-append sequence, which is what actually prevents double
// issuance.
type Registry interface {
	// Contains reports whether pubkey already holds an award for the badge.
	Contains(addressRef, pubkey string) bool

	// Append records a new award.
	Append(award badge.Award) error

	// List returns the awards recorded for the badge, in append order.
	List(addressRef string) []badge.Award
}

// Memory is an in-memory Registry scoped to one session object.
type Memory struct {
	mu     sync.RWMutex
	awards map[string][]badge.Award
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{awards: make(map[string][]badge.Award)}
}

// Contains reports whether pubkey already holds an award for the badge.
func (m *Memory) Contains(addressRef, pubkey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.awards[addressRef] {
		if a.Recipient == pubkey {
			return true
		}
	}
	return false
}

// Append records a new award.
func (m *Memory) Append(award badge.Award) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awards[award.AddressRef] = append(m.awards[award.AddressRef], award)
	return nil
}

// List returns the awards recorded for the badge, in append order.
func (m *Memory) List(addressRef string) []badge.Award {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]badge.Award, len(m.awards[addressRef]))
	copy(out, m.awards[addressRef])
	return out
}

// snapshot returns a copy of the full award map for persistence.
func (m *Memory) snapshot() map[string][]badge.Award {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]badge.Award, len(m.awards))
	for ref, list := range m.awards {
		cp := make([]badge.Award, len(list))
		copy(cp, list)
		out[ref] = cp
	}
	return out
}

// restore replaces the award map, used when loading from disk.
func (m *Memory) restore(awards map[string][]badge.Award) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if awards == nil {
		awards = make(map[string][]badge.Award)
	}
	m.awards = awards
}
