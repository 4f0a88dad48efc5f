// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/ikimina/momoledger/internal/models"
)

var (
	// ErrNotFound means the record does not exist or is outside the caller's
	// institution scope. The two cases are deliberately indistinguishable so
	// cross-institution existence never leaks.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a status precondition failed: the row exists but is
	// not in the state the operation requires. The conditional update that
	// detected it reports it; it is never silently absorbed.
	ErrConflict = errors.New("state conflict")
)

// TransactionFilter narrows ledger list queries.
type TransactionFilter struct {
	// From and To bound occurred-at (Unix seconds); zero means unbounded.
	From int64
	To   int64

	// Query free-text matches payer phone, payer name or MoMo reference.
	Query string

	// Limit caps the page size; implementations apply a default when zero.
	Limit int

	// Cursor resumes a previous page. Opaque to callers.
	Cursor string
}

// ParseFailureFilter narrows parse-failure list queries.
type ParseFailureFilter struct {
	// PendingOnly restricts to failures still awaiting retry or resolution.
	PendingOnly bool

	// Limit caps the page size; implementations apply a default when zero.
	Limit int

	// Cursor resumes a previous page. Opaque to callers.
	Cursor string
}

// Store is the persistence boundary of the reconciliation engine. Every read
// and write that concerns institution data takes an explicit models.Scope and
// enforces it here, not in the handlers: out-of-scope rows behave as missing.
//
// The mutating transaction operations (Allocate, Reverse, MarkDuplicate,
// UnmarkDuplicate, SetFlagged) are atomic conditional updates: the status
// precondition is part of the write itself, so two racing staff actions on
// the same transaction can never both succeed.
type Store interface {
	// CreateTransaction persists a new ledger transaction. The ID and
	// CreatedAt fields are populated when unset.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// GetTransaction retrieves a transaction visible to the scope.
	GetTransaction(ctx context.Context, scope models.Scope, id string) (*models.Transaction, error)

	// ListUnallocated returns unallocated (and flagged) transactions visible
	// to the scope, oldest first, with an opaque next-page cursor ("" when
	// the page is the last).
	ListUnallocated(ctx context.Context, scope models.Scope, filter TransactionFilter) ([]*models.Transaction, string, error)

	// AllocateTransaction atomically transitions unallocated→allocated and
	// appends the audit entry in the same database transaction. Returns
	// ErrConflict when the transaction is no longer allocatable and
	// ErrNotFound when it is missing or out of scope.
	AllocateTransaction(ctx context.Context, scope models.Scope, txID, memberID, groupID, actorID, note string) (*models.Transaction, error)

	// ReverseTransaction atomically transitions allocated→reversed, clears
	// the member assignment and appends the reversal audit entry.
	ReverseTransaction(ctx context.Context, scope models.Scope, txID, actorID, reason string) (*models.Transaction, error)

	// SetFlagged toggles the advisory flagged status. Only unallocated
	// transactions can be flagged and only flagged ones unflagged.
	SetFlagged(ctx context.Context, scope models.Scope, txID string, flagged bool) (*models.Transaction, error)

	// MarkDuplicate atomically marks txID as a duplicate of canonicalID.
	// Re-marking with the same canonical is a no-op; a different canonical is
	// ErrConflict. The canonical must be in scope, share the transaction's
	// institution and must not itself be a duplicate (no chains).
	MarkDuplicate(ctx context.Context, scope models.Scope, txID, canonicalID, reason string) (*models.Transaction, error)

	// UnmarkDuplicate returns a duplicate transaction to unallocated.
	UnmarkDuplicate(ctx context.Context, scope models.Scope, txID string) (*models.Transaction, error)

	// ListDuplicateGroups returns clusters of two or more still-allocatable
	// transactions sharing a match key, ordered by the oldest member's
	// occurred-at, then by match key for determinism.
	ListDuplicateGroups(ctx context.Context, scope models.Scope) ([]*models.DuplicateGroup, error)

	// ListAuditEntries returns the audit trail for one transaction,
	// oldest first.
	ListAuditEntries(ctx context.Context, scope models.Scope, txID string) ([]*models.AllocationAuditEntry, error)

	// CreateParseFailure persists a new parse failure. ID populated when unset.
	CreateParseFailure(ctx context.Context, pf *models.ParseFailure) error

	// GetParseFailure retrieves a parse failure visible to the scope.
	GetParseFailure(ctx context.Context, scope models.Scope, id string) (*models.ParseFailure, error)

	// ListParseFailures returns parse failures visible to the scope, oldest
	// first, with an opaque next-page cursor.
	ListParseFailures(ctx context.Context, scope models.Scope, filter ParseFailureFilter) ([]*models.ParseFailure, string, error)

	// AttachParsedTransaction creates the ledger transaction produced by a
	// successful retry and transitions the parse failure pending→parsed in
	// one atomic unit. ErrConflict when the failure is no longer pending, in
	// which case no transaction row is created.
	AttachParsedTransaction(ctx context.Context, parseFailureID string, tx *models.Transaction) error

	// RecordParseAttempt bumps the attempt counter and stores the latest
	// parse error; the failure stays pending.
	RecordParseAttempt(ctx context.Context, id, parseError string) error

	// ResolveParseFailure atomically transitions pending→failed with the
	// given resolution. ErrConflict when already parsed or resolved.
	ResolveParseFailure(ctx context.Context, scope models.Scope, id, resolution, note string) (*models.ParseFailure, error)

	// CreateMember registers a member; used for directory seeding and tests.
	CreateMember(ctx context.Context, m *models.Member) error

	// GetMember retrieves a member visible to the scope.
	GetMember(ctx context.Context, scope models.Scope, id string) (*models.Member, error)

	// FindMemberByPhoneHash looks up at most one member of the institution by
	// phone hash. Returns ErrNotFound when no member matches.
	FindMemberByPhoneHash(ctx context.Context, institutionID, phoneHash string) (*models.Member, error)

	// CreateGroup registers a savings group.
	CreateGroup(ctx context.Context, g *models.Group) error

	// GetGroup retrieves a group visible to the scope.
	GetGroup(ctx context.Context, scope models.Scope, id string) (*models.Group, error)

	// CreateStaffUser persists a staff account.
	CreateStaffUser(ctx context.Context, u *models.StaffUser) error

	// GetStaffUserByEmail retrieves a staff account by email.
	// Returns (nil, nil) when no account matches.
	GetStaffUserByEmail(ctx context.Context, email string) (*models.StaffUser, error)

	// GetStaffUserByID retrieves a staff account by id.
	// Returns (nil, nil) when no account matches.
	GetStaffUserByID(ctx context.Context, id string) (*models.StaffUser, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
