package protocol

// Event kinds used on the shared transport. The badge definition and award
// kinds come from the surrounding badge protocol (NIP-58); the claim
// request/response kinds are this protocol's own. All four are opaque
// integer tags as far as the coordinators are concerned and can be
// overridden through configuration.
const (
	// DefaultClaimRequestKind sits in the ephemeral range: relays fan the
	// event out to live subscribers without storing it, which matches the
	// lifetime of a nonce.
	DefaultClaimRequestKind = 28008

	// DefaultClaimResponseKind is the ephemeral counterpart for verdicts.
	DefaultClaimResponseKind = 28009

	// DefaultBadgeDefinitionKind is the NIP-58 badge definition kind.
	DefaultBadgeDefinitionKind = 30009

	// DefaultBadgeAwardKind is the NIP-58 badge award kind.
	DefaultBadgeAwardKind = 8
)

// Kinds bundles the wire-level message type tags for one deployment.
type Kinds struct {
	ClaimRequest    int
	ClaimResponse   int
	BadgeDefinition int
	BadgeAward      int
}

// DefaultKinds returns the standard kind assignment.
func DefaultKinds() Kinds {
	return Kinds{
		ClaimRequest:    DefaultClaimRequestKind,
		ClaimResponse:   DefaultClaimResponseKind,
		BadgeDefinition: DefaultBadgeDefinitionKind,
		BadgeAward:      DefaultBadgeAwardKind,
	}
}

// IsZero reports whether no kinds have been set.
func (k Kinds) IsZero() bool {
	return k == Kinds{}
}
