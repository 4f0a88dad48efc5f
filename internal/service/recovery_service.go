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

// RecoveryService re-drives SMS that previously failed extraction, either by
// retrying the parser gate or by letting staff resolve the failure as
// not-a-payment. Retries are explicit caller actions, never automatic, so the
// attempt history stays honest.
type RecoveryService struct {
	store  storage.Store
	gate   gate.Gate
	window time.Duration
}

// NewRecoveryService creates a RecoveryService. window is the time bucket
// width for fuzzy duplicate signatures; zero selects the default.
func NewRecoveryService(store storage.Store, g gate.Gate, window time.Duration) *RecoveryService {
	if window <= 0 {
		window = match.DefaultWindow
	}
	return &RecoveryService{store: store, gate: g, window: window}
}

// RetryResult carries the retried failure and, when extraction succeeded
// (now or on an earlier retry), the ledger transaction it produced.
type RetryResult struct {
	ParseFailure *models.ParseFailure
	Transaction  *models.Transaction
}

// Retry re-runs the parser gate for a pending failure. Idempotent on
// already-parsed records: the previously created transaction is returned and
// no second one is created. Retrying a resolved failure is ErrInvalidState.
func (s *RecoveryService) Retry(ctx context.Context, scope models.Scope, parseFailureID string) (*RetryResult, error) {
	slog.Info("Retry request received", "parse_failure_id", parseFailureID, "actor_id", scope.ActorID)

	if parseFailureID == "" {
		return nil, validationErr("parse_failure_id", "required")
	}

	pf, err := s.store.GetParseFailure(ctx, scope, parseFailureID)
	if err != nil {
		return nil, err
	}

	switch pf.Status {
	case models.ParseParsed:
		return s.alreadyParsed(ctx, scope, pf)
	case models.ParseFailed:
		return nil, fmt.Errorf("%w: parse failure %s was resolved as %s",
			ErrInvalidState, pf.ID, pf.ResolutionStatus)
	}

	candidate, err := s.gate.Parse(ctx, pf.RawText, pf.SenderPhone, pf.InstitutionID)
	if err != nil {
		var parseErr *gate.ParseError
		if errors.As(err, &parseErr) {
			if recErr := s.store.RecordParseAttempt(ctx, pf.ID, parseErr.Message); recErr != nil {
				return nil, recErr
			}
			metrics.ParseRetriesTotal.WithLabelValues("still_failed").Inc()
			slog.Info("Retry still failing", "parse_failure_id", pf.ID, "error", parseErr.Message)
			updated, getErr := s.store.GetParseFailure(ctx, scope, pf.ID)
			if getErr != nil {
				return nil, getErr
			}
			return &RetryResult{ParseFailure: updated}, nil
		}

		// Gate outage: record the attempt, surface as retryable.
		if recErr := s.store.RecordParseAttempt(ctx, pf.ID, err.Error()); recErr != nil {
			slog.Error("Failed to record gate outage on parse failure", "parse_failure_id", pf.ID, "error", recErr)
		}
		metrics.ParseRetriesTotal.WithLabelValues("gate_error").Inc()
		slog.Error("Parser gate failed during retry", "parse_failure_id", pf.ID, "error", err)
		return nil, err
	}

	tx, err := s.buildTransaction(pf, candidate)
	if err != nil {
		return nil, err
	}
	if err := s.store.AttachParsedTransaction(ctx, pf.ID, tx); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// A concurrent retry or resolution won; report what it did.
			current, getErr := s.store.GetParseFailure(ctx, scope, pf.ID)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == models.ParseParsed {
				return s.alreadyParsed(ctx, scope, current)
			}
			return nil, fmt.Errorf("%w: parse failure %s was resolved as %s",
				ErrInvalidState, current.ID, current.ResolutionStatus)
		}
		return nil, err
	}

	metrics.ParseRetriesTotal.WithLabelValues("parsed").Inc()
	slog.Info("Retry produced transaction", "parse_failure_id", pf.ID, "transaction_id", tx.ID)

	updated, err := s.store.GetParseFailure(ctx, scope, pf.ID)
	if err != nil {
		return nil, err
	}
	return &RetryResult{ParseFailure: updated, Transaction: tx}, nil
}

func (s *RecoveryService) alreadyParsed(ctx context.Context, scope models.Scope, pf *models.ParseFailure) (*RetryResult, error) {
	tx, err := s.store.GetTransaction(ctx, scope, pf.TransactionID)
	if err != nil {
		return nil, err
	}
	return &RetryResult{ParseFailure: pf, Transaction: tx}, nil
}

// Resolve terminally closes a pending failure as ignored or not_payment.
// No transaction is created and the failure can never be retried again.
func (s *RecoveryService) Resolve(ctx context.Context, scope models.Scope, parseFailureID, resolution, note string) (*models.ParseFailure, error) {
	slog.Info("Resolve request received",
		"parse_failure_id", parseFailureID, "resolution", resolution, "actor_id", scope.ActorID)

	if parseFailureID == "" {
		return nil, validationErr("parse_failure_id", "required")
	}
	if resolution != models.ResolutionIgnored && resolution != models.ResolutionNotPayment {
		return nil, validationErr("resolution", "must be ignored or not_payment")
	}

	resolved, err := s.store.ResolveParseFailure(ctx, scope, parseFailureID, resolution, note)
	if err != nil {
		slog.Error("Resolve failed", "parse_failure_id", parseFailureID, "error", err)
		return nil, err
	}

	slog.Info("Parse failure resolved", "parse_failure_id", parseFailureID, "resolution", resolution)
	return resolved, nil
}

// Get retrieves one parse failure visible to the scope.
func (s *RecoveryService) Get(ctx context.Context, scope models.Scope, id string) (*models.ParseFailure, error) {
	return s.store.GetParseFailure(ctx, scope, id)
}

// List returns parse failures visible to the scope, oldest first.
func (s *RecoveryService) List(ctx context.Context, scope models.Scope, filter storage.ParseFailureFilter) ([]*models.ParseFailure, string, error) {
	return s.store.ListParseFailures(ctx, scope, filter)
}

func (s *RecoveryService) buildTransaction(pf *models.ParseFailure, c *gate.Candidate) (*models.Transaction, error) {
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
		occurredAt = time.Unix(pf.ReceivedAt, 0)
	}

	phone := match.NormalizePhone(c.PayerPhone)
	key, matchType := match.Signature(c.Reference, c.AmountMinor, phone, occurredAt, s.window)

	return &models.Transaction{
		InstitutionID: pf.InstitutionID,
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
