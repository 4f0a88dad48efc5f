package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ikimina/momoledger/internal/gate"
	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

func TestIngestService(t *testing.T) {
	ctx := context.Background()

	t.Run("Parsed SMS becomes an unallocated transaction", func(t *testing.T) {
		store := newTestStore(t)
		confidence := 0.97
		g := gateReturning(&gate.Candidate{
			AmountMinor: 500000,
			Currency:    "RWF",
			PayerPhone:  "0788123456",
			PayerName:   "MUKAMANA Claudine",
			Reference:   "ABC123",
			Confidence:  &confidence,
			OccurredAt:  time.Unix(1700000000, 0),
		})
		svc := NewIngestService(store, g, 0)

		result, err := svc.Ingest(ctx, "inst-1", "M-Money",
			"You have received 5000 RWF from MUKAMANA Claudine (*250788123456). TxId: ABC123.", time.Time{})
		if err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
		if result.Transaction == nil {
			t.Fatal("Expected a transaction, got none")
		}
		if result.ParseFailure != nil {
			t.Error("Expected no parse failure")
		}

		tx := result.Transaction
		if tx.Status != models.StatusUnallocated {
			t.Errorf("Status mismatch: got %s", tx.Status)
		}
		if tx.PayerPhone != "250788123456" {
			t.Errorf("Phone not normalized: got %s", tx.PayerPhone)
		}
		if tx.MatchKey != "ref:ABC123" {
			t.Errorf("MatchKey mismatch: got %s", tx.MatchKey)
		}
		if tx.MatchType != models.MatchExact {
			t.Errorf("MatchType mismatch: got %s", tx.MatchType)
		}
		if tx.OccurredAt != 1700000000 {
			t.Errorf("OccurredAt mismatch: got %d", tx.OccurredAt)
		}

		// The row must be queryable from the ledger.
		stored, err := store.GetTransaction(ctx, testScope("inst-1"), tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if stored.AmountMinor != 500000 {
			t.Errorf("AmountMinor mismatch: got %d", stored.AmountMinor)
		}
	})

	t.Run("SMS without a reference gets a fuzzy signature", func(t *testing.T) {
		store := newTestStore(t)
		g := gateReturning(&gate.Candidate{
			AmountMinor: 250000,
			Currency:    "RWF",
			PayerPhone:  "0788123456",
			OccurredAt:  time.Unix(1700000000, 0),
		})
		svc := NewIngestService(store, g, 0)

		result, err := svc.Ingest(ctx, "inst-1", "M-Money", "received 2500 RWF", time.Time{})
		if err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
		if result.Transaction.MatchType != models.MatchFuzzy {
			t.Errorf("MatchType mismatch: got %s", result.Transaction.MatchType)
		}
	})

	t.Run("Unparseable SMS becomes a pending parse failure", func(t *testing.T) {
		store := newTestStore(t)
		g := gateFailing(&gate.ParseError{Message: "no amount found"})
		svc := NewIngestService(store, g, 0)

		result, err := svc.Ingest(ctx, "inst-1", "M-Money", "Yello! Promo du jour", time.Unix(1700000100, 0))
		if err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
		if result.ParseFailure == nil {
			t.Fatal("Expected a parse failure, got none")
		}
		if result.Transaction != nil {
			t.Error("Expected no transaction")
		}

		pf := result.ParseFailure
		if pf.Status != models.ParsePending {
			t.Errorf("Status mismatch: got %s", pf.Status)
		}
		if pf.RawText != "Yello! Promo du jour" {
			t.Errorf("RawText mismatch: got %s", pf.RawText)
		}
		if pf.ParseError != "no amount found" {
			t.Errorf("ParseError mismatch: got %s", pf.ParseError)
		}
	})

	t.Run("Gate outage creates nothing and propagates", func(t *testing.T) {
		store := newTestStore(t)
		g := gateFailing(gate.ErrUnavailable)
		svc := NewIngestService(store, g, 0)

		_, err := svc.Ingest(ctx, "inst-1", "M-Money", "received 2500 RWF", time.Time{})
		if !errors.Is(err, gate.ErrUnavailable) {
			t.Fatalf("Expected ErrUnavailable, got %v", err)
		}

		failures, _, err := store.ListParseFailures(ctx, testScope("inst-1"), storage.ParseFailureFilter{})
		if err != nil {
			t.Fatalf("ListParseFailures failed: %v", err)
		}
		if len(failures) != 0 {
			t.Errorf("Gate outage must not queue a parse failure, got %d", len(failures))
		}
	})

	t.Run("Missing institution is rejected", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewIngestService(store, gateReturning(&gate.Candidate{}), 0)

		_, err := svc.Ingest(ctx, "", "M-Money", "text", time.Time{})
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("Expected ValidationError, got %v", err)
		}
	})

	t.Run("Non-positive amount from the gate is rejected", func(t *testing.T) {
		store := newTestStore(t)
		g := gateReturning(&gate.Candidate{AmountMinor: 0, Currency: "RWF"})
		svc := NewIngestService(store, g, 0)

		_, err := svc.Ingest(ctx, "inst-1", "M-Money", "zero amount", time.Time{})
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("Expected ValidationError, got %v", err)
		}
	})
}
