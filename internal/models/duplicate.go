package models

// DuplicateGroup is a read-side cluster of unadjudicated transactions sharing
// a match key. It is a view over the ledger, not a persisted row set: once
// staff choose a canonical, the other members become duplicates and the group
// disappears from the pending list.
type DuplicateGroup struct {
	// MatchKey is the shared signature string.
	MatchKey string

	// InstitutionID scopes the group. Signatures are never compared across
	// institutions, so a shared reference in two institutions forms two
	// groups, each independently adjudicable.
	InstitutionID string

	// MatchType is MatchExact or MatchFuzzy.
	MatchType string

	// Transactions are the group members, oldest first.
	Transactions []*Transaction

	// Count is len(Transactions).
	Count int

	// FirstOccurredAt is the occurred-at of the oldest member, used for
	// deterministic ordering of the pending list.
	FirstOccurredAt int64
}

// SuggestedMatch is an advisory member suggestion for an unallocated
// transaction, derived from a phone-hash lookup. It is never persisted and
// never blocks allocation.
type SuggestedMatch struct {
	// MemberID identifies the suggested member.
	MemberID string

	// MemberName and MemberPhone describe the member for display.
	MemberName  string
	MemberPhone string

	// GroupID and GroupName are the member's savings group, if any.
	GroupID   string
	GroupName string

	// BalanceMinor is the member's current balance in minor units.
	BalanceMinor int64

	// NameSimilarity is a [0,1] similarity between the SMS payer name and the
	// member name; 0 when the SMS carried no payer name.
	NameSimilarity float64
}
