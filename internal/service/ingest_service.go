package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ikimina/momoledger/internal/gate"
	"github.com/ikimina/momoledger/internal/match"
	"github.com/ikimina/momoledger/internal/metrics"
	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

// IngestService turns raw payment SMS into ledger transactions, queueing a
// parse failure when the parser gate cannot extract a payment.
type IngestService struct {
	store  storage.Store
	gate   gate.Gate
	window time.Duration
}

// NewIngestService creates an IngestService. window is the time bucket width
// for fuzzy duplicate signatures; zero selects the default.
func NewIngestService(store storage.Store, g gate.Gate, window time.Duration) *IngestService {
	if window <= 0 {
		window = match.DefaultWindow
	}
	return &IngestService{store: store, gate: g, window: window}
}

// IngestResult carries exactly one of Transaction or ParseFailure.
type IngestResult struct {
	Transaction  *models.Transaction
	ParseFailure *models.ParseFailure
}

// Ingest processes one raw SMS. Parse success creates an unallocated
// transaction; a structured parse failure creates a pending ParseFailure row.
// A gate outage creates nothing and is surfaced as retryable.
func (s *IngestService) Ingest(ctx context.Context, institutionID, senderPhone, rawText string, receivedAt time.Time) (*IngestResult, error) {
	slog.Info("Ingest request received", "institution_id", institutionID, "sender", senderPhone)

	if institutionID == "" {
		metrics.IngestTotal.WithLabelValues("rejected").Inc()
		return nil, validationErr("institution_id", "required")
	}
	if rawText == "" {
		metrics.IngestTotal.WithLabelValues("rejected").Inc()
		return nil, validationErr("text", "required")
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	candidate, err := s.gate.Parse(ctx, rawText, senderPhone, institutionID)
	if err != nil {
		var parseErr *gate.ParseError
		if errors.As(err, &parseErr) {
			pf := &models.ParseFailure{
				InstitutionID: institutionID,
				ReceivedAt:    receivedAt.Unix(),
				SenderPhone:   senderPhone,
				RawText:       rawText,
				ParseError:    parseErr.Message,
				Status:        models.ParsePending,
			}
			if err := s.store.CreateParseFailure(ctx, pf); err != nil {
				return nil, fmt.Errorf("failed to record parse failure: %w", err)
			}
			metrics.IngestTotal.WithLabelValues("parse_failure").Inc()
			slog.Info("SMS queued as parse failure", "parse_failure_id", pf.ID, "error", parseErr.Message)
			return &IngestResult{ParseFailure: pf}, nil
		}
		metrics.IngestTotal.WithLabelValues("gate_error").Inc()
		slog.Error("Parser gate failed", "error", err)
		return nil, err
	}

	tx, err := s.buildTransaction(institutionID, candidate, receivedAt)
	if err != nil {
		metrics.IngestTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	metrics.IngestTotal.WithLabelValues("transaction").Inc()
	slog.Info("Transaction created from SMS",
		"transaction_id", tx.ID,
		"amount_minor", tx.AmountMinor,
		"currency", tx.Currency,
		"match_type", tx.MatchType,
	)
	return &IngestResult{Transaction: tx}, nil
}

// buildTransaction validates a parsed candidate and materializes the ledger
// row, including the precomputed duplicate match signature.
func (s *IngestService) buildTransaction(institutionID string, c *gate.Candidate, receivedAt time.Time) (*models.Transaction, error) {
	if c.AmountMinor <= 0 {
		return nil, validationErr("amount", "must be a positive amount in minor units")
	}
	if c.Currency == "" {
		return nil, validationErr("currency", "required")
	}
	if c.Confidence != nil && (*c.Confidence < 0 || *c.Confidence > 1) {
		return nil, validationErr("confidence", "must be within [0,1]")
	}

	occurredAt := c.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = receivedAt
	}

	phone := match.NormalizePhone(c.PayerPhone)
	key, matchType := match.Signature(c.Reference, c.AmountMinor, phone, occurredAt, s.window)

	return &models.Transaction{
		InstitutionID: institutionID,
		OccurredAt:    occurredAt.Unix(),
		AmountMinor:   c.AmountMinor,
		Currency:      c.Currency,
		PayerPhone:    phone,
		PayerName:     c.PayerName,
		MomoRef:       match.NormalizeRef(c.Reference),
		Confidence:    c.Confidence,
		MatchKey:      key,
		MatchType:     matchType,
		Status:        models.StatusUnallocated,
	}, nil
}
