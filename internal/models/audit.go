package models

// Audit actions recorded against a transaction.
const (
	AuditAllocate = "allocate"
	AuditReverse  = "reverse"
)

// AllocationAuditEntry is an append-only record of one allocation or reversal.
// Entries are written in the same database transaction as the status change
// and are never mutated or deleted.
type AllocationAuditEntry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	// TransactionID is the ledger transaction this entry concerns.
	TransactionID string

	// Action is AuditAllocate or AuditReverse.
	Action string

	// MemberID and GroupID record the member the money was assigned to
	// (for reversals, the member it is being taken back from).
	MemberID string
	GroupID  string

	// ActorID is the staff user who performed the action.
	ActorID string

	// Note is the staff note, or the reversal reason.
	Note string

	// CreatedAt is the Unix timestamp the entry was written.
	CreatedAt int64
}
