package models

// AllocationStatus is the ledger state of a transaction.
type AllocationStatus string

const (
	// StatusUnallocated means the payment has not been assigned to a member yet.
	StatusUnallocated AllocationStatus = "unallocated"

	// StatusAllocated means the payment is assigned to exactly one member.
	StatusAllocated AllocationStatus = "allocated"

	// StatusFlagged is an advisory triage state. A flagged transaction is still
	// unallocated money: it can be allocated or marked duplicate like any other.
	StatusFlagged AllocationStatus = "flagged"

	// StatusDuplicate means the transaction was adjudicated as a duplicate
	// submission of another (canonical) transaction.
	StatusDuplicate AllocationStatus = "duplicate"

	// StatusReversed is terminal: the allocation was undone and the transaction
	// is retired from circulation. The audit trail records where it had gone.
	StatusReversed AllocationStatus = "reversed"
)

// Allocatable reports whether a transaction in this status may be allocated
// or marked as a duplicate.
func (s AllocationStatus) Allocatable() bool {
	return s == StatusUnallocated || s == StatusFlagged
}

// Match types describing which signal produced a duplicate match key.
const (
	// MatchExact groups transactions sharing the same normalized MoMo reference.
	MatchExact = "exact_reference"

	// MatchFuzzy groups transactions sharing amount, normalized payer phone
	// and time bucket when no reference is present.
	MatchFuzzy = "fuzzy_amount_phone_window"
)

// Transaction is one mobile-money payment candidate.
// Created on parse success, mutated only by the allocation engine
// (allocate/reverse) and the duplicate detector (mark/unmark).
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// InstitutionID scopes the transaction to one savings-group institution.
	InstitutionID string

	// OccurredAt is the Unix timestamp the payment happened (from the SMS).
	OccurredAt int64

	// AmountMinor is the payment amount in minor units of Currency.
	AmountMinor int64

	// Currency is the ISO 4217 code, e.g. "RWF".
	Currency string

	// PayerPhone is the normalized sender phone; empty when the parser
	// could not extract one.
	PayerPhone string

	// PayerName is the payer display name from the SMS, if any.
	PayerName string

	// MomoRef is the provider transaction reference, if any.
	MomoRef string

	// Confidence is the parser's extraction confidence in [0,1];
	// nil when the parser did not report one.
	Confidence *float64

	// MatchKey is the derived duplicate-detection signature, computed once
	// at creation so grouping is a plain query.
	MatchKey string

	// MatchType records which signal produced MatchKey (MatchExact/MatchFuzzy).
	MatchType string

	// Status is the allocation lifecycle state.
	Status AllocationStatus

	// MemberID and GroupID are set iff Status == StatusAllocated.
	MemberID string
	GroupID  string

	// AllocationNote is the optional staff note recorded on allocation.
	AllocationNote string

	// AllocatedBy is the staff user who allocated; empty when unallocated.
	AllocatedBy string

	// AllocatedAt is the Unix timestamp of allocation; zero when unallocated.
	AllocatedAt int64

	// DuplicateOf references the canonical transaction when Status ==
	// StatusDuplicate. Duplicate pointers are flat: a canonical is never
	// itself a duplicate.
	DuplicateOf string

	// DuplicateReason is the optional staff note recorded when marked duplicate.
	DuplicateReason string

	// CreatedAt is the Unix timestamp the ledger row was created.
	CreatedAt int64
}
