package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

func TestAllocationService(t *testing.T) {
	ctx := context.Background()
	scope := testScope("inst-1")

	t.Run("Allocate attaches member and group", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewAllocationService(store)
		memberID, groupID := seedMember(t, store, "inst-1", "Uwase Diane", "0788000001")
		tx := seedUnallocated(t, store, "inst-1", 1000, "ref:ALLOC1")

		got, err := svc.Allocate(ctx, scope, tx.ID, memberID, "weekly savings")
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if got.Status != models.StatusAllocated {
			t.Errorf("Status mismatch: got %s", got.Status)
		}
		if got.MemberID != memberID || got.GroupID != groupID {
			t.Errorf("Assignment mismatch: member=%s group=%s", got.MemberID, got.GroupID)
		}
		if got.AllocatedBy != scope.ActorID {
			t.Errorf("AllocatedBy mismatch: got %s", got.AllocatedBy)
		}
	})

	t.Run("Member without a group is rejected", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewAllocationService(store)
		tx := seedUnallocated(t, store, "inst-1", 1001, "ref:ALLOC2")

		member := &models.Member{InstitutionID: "inst-1", Name: "Groupless"}
		if err := store.CreateMember(ctx, member); err != nil {
			t.Fatalf("CreateMember failed: %v", err)
		}

		_, err := svc.Allocate(ctx, scope, tx.ID, member.ID, "")
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("Expected ValidationError, got %v", err)
		}

		// Transaction must be untouched.
		got, err := svc.Get(ctx, scope, tx.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.StatusUnallocated {
			t.Errorf("Transaction mutated: status %s", got.Status)
		}
	})

	t.Run("Member of another institution behaves as missing", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewAllocationService(store)
		tx := seedUnallocated(t, store, "inst-1", 1002, "ref:ALLOC3")

		platform := models.Scope{ActorID: "admin-1", Platform: true}
		foreignMember, _ := seedMember(t, store, "inst-2", "Foreign", "0788000002")

		_, err := svc.Allocate(ctx, platform, tx.ID, foreignMember, "")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Second allocate of the same transaction conflicts", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewAllocationService(store)
		memberID, _ := seedMember(t, store, "inst-1", "Uwase Diane", "0788000001")
		otherID, _ := seedMember(t, store, "inst-1", "Mugisha Eric", "0788000003")
		tx := seedUnallocated(t, store, "inst-1", 1003, "ref:ALLOC4")

		if _, err := svc.Allocate(ctx, scope, tx.ID, memberID, ""); err != nil {
			t.Fatalf("First allocate failed: %v", err)
		}
		_, err := svc.Allocate(ctx, scope, tx.ID, otherID, "")
		if !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("Expected ErrConflict, got %v", err)
		}
	})

	t.Run("Batch allocation is per-transaction independent", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewAllocationService(store)
		memberID, _ := seedMember(t, store, "inst-1", "Uwase Diane", "0788000001")

		good := seedUnallocated(t, store, "inst-1", 1004, "ref:BATCH1")
		conflicted := seedUnallocated(t, store, "inst-1", 1005, "ref:BATCH2")
		if _, err := svc.Allocate(ctx, scope, conflicted.ID, memberID, ""); err != nil {
			t.Fatalf("Setup allocate failed: %v", err)
		}

		outcomes, err := svc.AllocateBatch(ctx, scope, []string{good.ID, conflicted.ID, "missing-id"}, memberID, "batch")
		if err != nil {
			t.Fatalf("AllocateBatch failed: %v", err)
		}
		if len(outcomes) != 3 {
			t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
		}
		if outcomes[0].Err != nil {
			t.Errorf("First outcome should succeed: %v", outcomes[0].Err)
		}
		if !errors.Is(outcomes[1].Err, storage.ErrConflict) {
			t.Errorf("Second outcome should conflict: %v", outcomes[1].Err)
		}
		if !errors.Is(outcomes[2].Err, storage.ErrNotFound) {
			t.Errorf("Third outcome should be not found: %v", outcomes[2].Err)
		}

		// The successful allocation sticks despite the sibling failures.
		got, err := svc.Get(ctx, scope, good.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.StatusAllocated {
			t.Errorf("Batch success not persisted: status %s", got.Status)
		}
	})

	t.Run("Reverse requires a reason", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewAllocationService(store)
		memberID, _ := seedMember(t, store, "inst-1", "Uwase Diane", "0788000001")
		tx := seedUnallocated(t, store, "inst-1", 1006, "ref:REV1")

		if _, err := svc.Allocate(ctx, scope, tx.ID, memberID, ""); err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}

		_, err := svc.Reverse(ctx, scope, tx.ID, "")
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("Expected ValidationError for empty reason, got %v", err)
		}

		got, err := svc.Reverse(ctx, scope, tx.ID, "allocated to wrong member")
		if err != nil {
			t.Fatalf("Reverse failed: %v", err)
		}
		if got.Status != models.StatusReversed {
			t.Errorf("Status mismatch: got %s", got.Status)
		}
		if got.MemberID != "" {
			t.Errorf("Member not cleared: got %s", got.MemberID)
		}

		entries, err := svc.AuditTrail(ctx, scope, tx.ID)
		if err != nil {
			t.Fatalf("AuditTrail failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("Expected 2 audit entries, got %d", len(entries))
		}
		if entries[1].Note != "allocated to wrong member" {
			t.Errorf("Reversal reason missing from audit: got %q", entries[1].Note)
		}
	})

	t.Run("Flagged transaction can still be allocated", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewAllocationService(store)
		memberID, _ := seedMember(t, store, "inst-1", "Uwase Diane", "0788000001")
		tx := seedUnallocated(t, store, "inst-1", 1007, "ref:FLAG1")

		if _, err := svc.Flag(ctx, scope, tx.ID); err != nil {
			t.Fatalf("Flag failed: %v", err)
		}
		got, err := svc.Allocate(ctx, scope, tx.ID, memberID, "")
		if err != nil {
			t.Fatalf("Allocate of flagged transaction failed: %v", err)
		}
		if got.Status != models.StatusAllocated {
			t.Errorf("Status mismatch: got %s", got.Status)
		}
	})
}
