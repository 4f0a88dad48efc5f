package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ikimina/momoledger/internal/metrics"
	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

// AllocationService is the state-transition authority for the ledger: it
// assigns unallocated transactions to members, reverses wrong allocations and
// toggles the advisory triage flag. Every transition is an atomic conditional
// update in the store, so concurrent staff actions on one transaction resolve
// to exactly one winner.
type AllocationService struct {
	store storage.Store
}

// NewAllocationService creates an AllocationService with the given storage backend.
func NewAllocationService(store storage.Store) *AllocationService {
	return &AllocationService{store: store}
}

// Allocate assigns an unallocated transaction to exactly one member. The
// member must belong to the transaction's institution and to a savings group;
// the group is attached automatically. Exactly one of two racing allocations
// succeeds, the other gets a conflict.
func (s *AllocationService) Allocate(ctx context.Context, scope models.Scope, txID, memberID, note string) (*models.Transaction, error) {
	slog.Info("Allocate request received",
		"transaction_id", txID, "member_id", memberID, "actor_id", scope.ActorID)

	if txID == "" {
		return nil, validationErr("transaction_id", "required")
	}
	if memberID == "" {
		return nil, validationErr("member_id", "required")
	}

	tx, err := s.store.GetTransaction(ctx, scope, txID)
	if err != nil {
		metrics.AllocationsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	member, err := s.store.GetMember(ctx, scope, memberID)
	if err != nil {
		metrics.AllocationsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if member.InstitutionID != tx.InstitutionID {
		// A member of another institution is invisible here, same as missing.
		metrics.AllocationsTotal.WithLabelValues("not_found").Inc()
		return nil, storage.ErrNotFound
	}
	if member.GroupID == "" {
		metrics.AllocationsTotal.WithLabelValues("rejected").Inc()
		return nil, validationErr("member_id", "member has no savings group")
	}

	updated, err := s.store.AllocateTransaction(ctx, scope, txID, member.ID, member.GroupID, scope.ActorID, note)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			metrics.AllocationsTotal.WithLabelValues("conflict").Inc()
			slog.Warn("Allocation lost the race", "transaction_id", txID, "actor_id", scope.ActorID)
		case errors.Is(err, storage.ErrNotFound):
			metrics.AllocationsTotal.WithLabelValues("not_found").Inc()
		default:
			metrics.AllocationsTotal.WithLabelValues("error").Inc()
			slog.Error("Allocation failed", "transaction_id", txID, "error", err)
		}
		return nil, err
	}

	metrics.AllocationsTotal.WithLabelValues("allocated").Inc()
	slog.Info("Transaction allocated",
		"transaction_id", txID, "member_id", member.ID, "group_id", member.GroupID)
	return updated, nil
}

// BatchOutcome reports the result of one id within a batch allocation.
type BatchOutcome struct {
	TransactionID string
	Transaction   *models.Transaction
	Err           error
}

// AllocateBatch allocates each transaction to the member independently and
// atomically. One failed id never rolls back the others; the caller decides
// whether to re-drive the failures.
func (s *AllocationService) AllocateBatch(ctx context.Context, scope models.Scope, txIDs []string, memberID, note string) ([]BatchOutcome, error) {
	if len(txIDs) == 0 {
		return nil, validationErr("transaction_ids", "required")
	}

	outcomes := make([]BatchOutcome, 0, len(txIDs))
	for _, id := range txIDs {
		tx, err := s.Allocate(ctx, scope, id, memberID, note)
		outcomes = append(outcomes, BatchOutcome{TransactionID: id, Transaction: tx, Err: err})
	}
	return outcomes, nil
}

// Reverse retires an allocated transaction to the terminal reversed status.
// A non-empty reason is required and lands in the audit trail.
func (s *AllocationService) Reverse(ctx context.Context, scope models.Scope, txID, reason string) (*models.Transaction, error) {
	slog.Info("Reverse request received", "transaction_id", txID, "actor_id", scope.ActorID)

	if txID == "" {
		return nil, validationErr("transaction_id", "required")
	}
	if reason == "" {
		return nil, validationErr("reason", "required")
	}

	updated, err := s.store.ReverseTransaction(ctx, scope, txID, scope.ActorID, reason)
	if err != nil {
		slog.Error("Reversal failed", "transaction_id", txID, "error", err)
		return nil, err
	}

	metrics.ReversalsTotal.Inc()
	slog.Info("Allocation reversed", "transaction_id", txID, "reason", reason)
	return updated, nil
}

// Flag marks an unallocated transaction for triage. Advisory only: a flagged
// transaction can still be allocated or marked duplicate.
func (s *AllocationService) Flag(ctx context.Context, scope models.Scope, txID string) (*models.Transaction, error) {
	if txID == "" {
		return nil, validationErr("transaction_id", "required")
	}
	return s.store.SetFlagged(ctx, scope, txID, true)
}

// Unflag clears the triage flag.
func (s *AllocationService) Unflag(ctx context.Context, scope models.Scope, txID string) (*models.Transaction, error) {
	if txID == "" {
		return nil, validationErr("transaction_id", "required")
	}
	return s.store.SetFlagged(ctx, scope, txID, false)
}

// Get retrieves one transaction visible to the scope.
func (s *AllocationService) Get(ctx context.Context, scope models.Scope, txID string) (*models.Transaction, error) {
	return s.store.GetTransaction(ctx, scope, txID)
}

// ListUnallocated returns the unallocated queue, oldest first.
func (s *AllocationService) ListUnallocated(ctx context.Context, scope models.Scope, filter storage.TransactionFilter) ([]*models.Transaction, string, error) {
	return s.store.ListUnallocated(ctx, scope, filter)
}

// AuditTrail returns the allocation history of one transaction, oldest first.
func (s *AllocationService) AuditTrail(ctx context.Context, scope models.Scope, txID string) ([]*models.AllocationAuditEntry, error) {
	return s.store.ListAuditEntries(ctx, scope, txID)
}
