package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

const parseFailureColumns = `id, institution_id, received_at, sender_phone, raw_text,
	parse_error, parse_status, resolution_status, resolution_note, transaction_id, attempts`

func scanParseFailure(row rowScanner) (*models.ParseFailure, error) {
	pf := &models.ParseFailure{}
	var sender, parseErr, resolution, note, txID sql.NullString

	err := row.Scan(&pf.ID, &pf.InstitutionID, &pf.ReceivedAt, &sender, &pf.RawText,
		&parseErr, &pf.Status, &resolution, &note, &txID, &pf.Attempts)
	if err != nil {
		return nil, err
	}

	pf.SenderPhone = sender.String
	pf.ParseError = parseErr.String
	pf.ResolutionStatus = resolution.String
	pf.ResolutionNote = note.String
	pf.TransactionID = txID.String
	return pf, nil
}

// CreateParseFailure persists a new parse failure.
func (s *SQLiteStore) CreateParseFailure(ctx context.Context, pf *models.ParseFailure) error {
	if pf.ID == "" {
		pf.ID = uuid.New().String()
	}
	if pf.Status == "" {
		pf.Status = models.ParsePending
	}
	if pf.Attempts == 0 {
		pf.Attempts = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parse_failures (id, institution_id, received_at, sender_phone, raw_text, parse_error, parse_status, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pf.ID, pf.InstitutionID, pf.ReceivedAt, nullable(pf.SenderPhone),
		pf.RawText, nullable(pf.ParseError), pf.Status, pf.Attempts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert parse failure: %w", err)
	}
	return nil
}

// GetParseFailure retrieves a parse failure visible to the scope.
func (s *SQLiteStore) GetParseFailure(ctx context.Context, scope models.Scope, id string) (*models.ParseFailure, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+parseFailureColumns+" FROM parse_failures WHERE id = ?", id)
	pf, err := scanParseFailure(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parse failure: %w", err)
	}
	if !scope.Allows(pf.InstitutionID) {
		return nil, storage.ErrNotFound
	}
	return pf, nil
}

// ListParseFailures returns parse failures visible to the scope, oldest first.
func (s *SQLiteStore) ListParseFailures(ctx context.Context, scope models.Scope, filter storage.ParseFailureFilter) ([]*models.ParseFailure, string, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	var (
		conds = []string{"1=1"}
		args  []any
	)
	if filter.PendingOnly {
		conds[0] = "parse_status = 'pending'"
	}
	if !scope.Platform {
		conds = append(conds, "institution_id = ?")
		args = append(args, scope.InstitutionID)
	}
	if filter.Cursor != "" {
		afterAt, afterID, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, "", err
		}
		conds = append(conds, "(received_at > ? OR (received_at = ? AND id > ?))")
		args = append(args, afterAt, afterAt, afterID)
	}

	query := "SELECT " + parseFailureColumns + " FROM parse_failures WHERE " +
		strings.Join(conds, " AND ") + " ORDER BY received_at, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list parse failures: %w", err)
	}
	defer rows.Close()

	var failures []*models.ParseFailure
	for rows.Next() {
		pf, err := scanParseFailure(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan parse failure: %w", err)
		}
		failures = append(failures, pf)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate parse failures: %w", err)
	}

	var next string
	if len(failures) == limit {
		last := failures[len(failures)-1]
		next = encodeCursor(last.ReceivedAt, last.ID)
	}
	return failures, next, nil
}

// AttachParsedTransaction records a successful retry: the new ledger
// transaction and the pending→parsed transition commit together. The status
// precondition makes concurrent retries safe: only one creates a transaction,
// the rest observe the stored transaction id.
func (s *SQLiteStore) AttachParsedTransaction(ctx context.Context, parseFailureID string, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().Unix()
	}
	if tx.Status == "" {
		tx.Status = models.StatusUnallocated
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// The transaction row must exist before parse_failures.transaction_id can
	// point at it. If the status precondition below fails, the rollback
	// discards this insert.
	var confidence any
	if tx.Confidence != nil {
		confidence = *tx.Confidence
	}
	_, err = dbTx.ExecContext(ctx,
		`INSERT INTO transactions (id, institution_id, occurred_at, amount_minor, currency,
			payer_phone, payer_name, momo_ref, confidence, match_key, match_type, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.InstitutionID, tx.OccurredAt, tx.AmountMinor, tx.Currency,
		nullable(tx.PayerPhone), nullable(tx.PayerName), nullable(tx.MomoRef),
		confidence, tx.MatchKey, tx.MatchType, tx.Status, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert parsed transaction: %w", err)
	}

	res, err := dbTx.ExecContext(ctx,
		`UPDATE parse_failures
		 SET parse_status = 'parsed', transaction_id = ?, parse_error = NULL, attempts = attempts + 1
		 WHERE id = ? AND parse_status = 'pending'`,
		tx.ID, parseFailureID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark parse failure parsed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: parse failure %s is not pending", storage.ErrConflict, parseFailureID)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parsed transaction: %w", err)
	}
	return nil
}

// RecordParseAttempt stores the latest parse error; the failure stays pending.
func (s *SQLiteStore) RecordParseAttempt(ctx context.Context, id, parseError string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE parse_failures SET parse_error = ?, attempts = attempts + 1
		 WHERE id = ? AND parse_status = 'pending'`,
		parseError, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record parse attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: parse failure %s is not pending", storage.ErrConflict, id)
	}
	return nil
}

// ResolveParseFailure terminally resolves a pending failure. Resolved
// failures can never be retried.
func (s *SQLiteStore) ResolveParseFailure(ctx context.Context, scope models.Scope, id, resolution, note string) (*models.ParseFailure, error) {
	// Scope check before the conditional update so cross-institution callers
	// see NotFound, not Conflict.
	if _, err := s.GetParseFailure(ctx, scope, id); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE parse_failures
		 SET parse_status = 'failed', resolution_status = ?, resolution_note = ?
		 WHERE id = ? AND parse_status = 'pending'`,
		resolution, nullable(note), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parse failure: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		current, err := s.GetParseFailure(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: parse failure %s is %s", storage.ErrConflict, id, current.Status)
	}

	return s.GetParseFailure(ctx, scope, id)
}
