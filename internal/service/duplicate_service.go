package service

import (
	"context"
	"log/slog"

	"github.com/ikimina/momoledger/internal/metrics"
	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

// DuplicateService surfaces clusters of transactions that look like repeated
// submissions of the same payment and records staff adjudications.
type DuplicateService struct {
	store storage.Store
}

// NewDuplicateService creates a DuplicateService with the given storage backend.
func NewDuplicateService(store storage.Store) *DuplicateService {
	return &DuplicateService{store: store}
}

// ListPendingGroups returns unadjudicated duplicate clusters, ordered by the
// oldest member transaction.
func (s *DuplicateService) ListPendingGroups(ctx context.Context, scope models.Scope) ([]*models.DuplicateGroup, error) {
	groups, err := s.store.ListDuplicateGroups(ctx, scope)
	if err != nil {
		slog.Error("ListPendingGroups failed", "error", err)
		return nil, err
	}
	return groups, nil
}

// MarkDuplicate records that txID is a duplicate submission of canonicalID.
// The canonical keeps its own status and stays eligible for allocation.
// Re-marking with the same canonical is a no-op; a different canonical is a
// conflict until the transaction is unmarked first.
func (s *DuplicateService) MarkDuplicate(ctx context.Context, scope models.Scope, txID, canonicalID, reason string) (*models.Transaction, error) {
	slog.Info("MarkDuplicate request received",
		"transaction_id", txID, "canonical_id", canonicalID, "actor_id", scope.ActorID)

	if txID == "" {
		return nil, validationErr("transaction_id", "required")
	}
	if canonicalID == "" {
		return nil, validationErr("canonical_id", "required")
	}
	if txID == canonicalID {
		return nil, validationErr("canonical_id", "transaction cannot be a duplicate of itself")
	}

	updated, err := s.store.MarkDuplicate(ctx, scope, txID, canonicalID, reason)
	if err != nil {
		slog.Error("MarkDuplicate failed", "transaction_id", txID, "error", err)
		return nil, err
	}

	metrics.DuplicateMarksTotal.WithLabelValues("mark").Inc()
	slog.Info("Transaction marked duplicate", "transaction_id", txID, "canonical_id", canonicalID)
	return updated, nil
}

// UnmarkDuplicate returns a duplicate transaction to the unallocated queue.
func (s *DuplicateService) UnmarkDuplicate(ctx context.Context, scope models.Scope, txID string) (*models.Transaction, error) {
	slog.Info("UnmarkDuplicate request received", "transaction_id", txID, "actor_id", scope.ActorID)

	if txID == "" {
		return nil, validationErr("transaction_id", "required")
	}

	updated, err := s.store.UnmarkDuplicate(ctx, scope, txID)
	if err != nil {
		slog.Error("UnmarkDuplicate failed", "transaction_id", txID, "error", err)
		return nil, err
	}

	metrics.DuplicateMarksTotal.WithLabelValues("unmark").Inc()
	slog.Info("Duplicate mark removed", "transaction_id", txID)
	return updated, nil
}
