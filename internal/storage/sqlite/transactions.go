package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

const defaultPageSize = 50

const transactionColumns = `id, institution_id, occurred_at, amount_minor, currency,
	payer_phone, payer_name, momo_ref, confidence, match_key, match_type, status,
	member_id, group_id, allocation_note, allocated_by, allocated_at,
	duplicate_of, duplicate_reason, created_at`

// rowScanner abstracts *sql.Row and *sql.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var (
		payerPhone, payerName, momoRef       sql.NullString
		memberID, groupID, note, allocatedBy sql.NullString
		duplicateOf, duplicateReason         sql.NullString
		confidence                           sql.NullFloat64
		allocatedAt                          sql.NullInt64
	)

	err := row.Scan(
		&tx.ID, &tx.InstitutionID, &tx.OccurredAt, &tx.AmountMinor, &tx.Currency,
		&payerPhone, &payerName, &momoRef, &confidence, &tx.MatchKey, &tx.MatchType, &tx.Status,
		&memberID, &groupID, &note, &allocatedBy, &allocatedAt,
		&duplicateOf, &duplicateReason, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.PayerPhone = payerPhone.String
	tx.PayerName = payerName.String
	tx.MomoRef = momoRef.String
	tx.MemberID = memberID.String
	tx.GroupID = groupID.String
	tx.AllocationNote = note.String
	tx.AllocatedBy = allocatedBy.String
	tx.AllocatedAt = allocatedAt.Int64
	tx.DuplicateOf = duplicateOf.String
	tx.DuplicateReason = duplicateReason.String
	if confidence.Valid {
		c := confidence.Float64
		tx.Confidence = &c
	}
	return tx, nil
}

// CreateTransaction persists a new ledger transaction.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().Unix()
	}
	if tx.Status == "" {
		tx.Status = models.StatusUnallocated
	}

	var confidence any
	if tx.Confidence != nil {
		confidence = *tx.Confidence
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, institution_id, occurred_at, amount_minor, currency,
			payer_phone, payer_name, momo_ref, confidence, match_key, match_type, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.InstitutionID, tx.OccurredAt, tx.AmountMinor, tx.Currency,
		nullable(tx.PayerPhone), nullable(tx.PayerName), nullable(tx.MomoRef),
		confidence, tx.MatchKey, tx.MatchType, tx.Status, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction visible to the scope.
func (s *SQLiteStore) GetTransaction(ctx context.Context, scope models.Scope, id string) (*models.Transaction, error) {
	return s.getTransaction(ctx, s.db, scope, id)
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getTransaction(ctx context.Context, q querier, scope models.Scope, id string) (*models.Transaction, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if !scope.Allows(tx.InstitutionID) {
		return nil, storage.ErrNotFound
	}
	return tx, nil
}

// ListUnallocated returns unallocated and flagged transactions, oldest first.
func (s *SQLiteStore) ListUnallocated(ctx context.Context, scope models.Scope, filter storage.TransactionFilter) ([]*models.Transaction, string, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	var (
		conds = []string{"status IN ('unallocated', 'flagged')"}
		args  []any
	)
	if !scope.Platform {
		conds = append(conds, "institution_id = ?")
		args = append(args, scope.InstitutionID)
	}
	if filter.From > 0 {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, filter.From)
	}
	if filter.To > 0 {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, filter.To)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		conds = append(conds, "(payer_phone LIKE ? OR payer_name LIKE ? OR momo_ref LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Cursor != "" {
		afterAt, afterID, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, "", err
		}
		conds = append(conds, "(occurred_at > ? OR (occurred_at = ? AND id > ?))")
		args = append(args, afterAt, afterAt, afterID)
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " +
		strings.Join(conds, " AND ") + " ORDER BY occurred_at, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list unallocated transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate transactions: %w", err)
	}

	var next string
	if len(txs) == limit {
		last := txs[len(txs)-1]
		next = encodeCursor(last.OccurredAt, last.ID)
	}
	return txs, next, nil
}

func encodeCursor(occurredAt int64, id string) string {
	return strconv.FormatInt(occurredAt, 10) + ":" + id
}

func decodeCursor(cursor string) (int64, string, error) {
	at, id, ok := strings.Cut(cursor, ":")
	if !ok {
		return 0, "", fmt.Errorf("malformed cursor %q", cursor)
	}
	n, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed cursor %q", cursor)
	}
	return n, id, nil
}

// AllocateTransaction performs the central exactly-once transition. The
// status precondition lives in the UPDATE itself: of two racing allocations
// exactly one flips the row, the other sees zero rows affected and gets
// ErrConflict. The audit entry commits in the same database transaction.
func (s *SQLiteStore) AllocateTransaction(ctx context.Context, scope models.Scope, txID, memberID, groupID, actorID, note string) (*models.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	now := time.Now().Unix()
	res, err := dbTx.ExecContext(ctx,
		`UPDATE transactions
		 SET status = 'allocated', member_id = ?, group_id = ?, allocation_note = ?,
		     allocated_by = ?, allocated_at = ?
		 WHERE id = ? AND status IN ('unallocated', 'flagged')`,
		memberID, nullable(groupID), nullable(note), actorID, now, txID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate transaction: %w", err)
	}
	if err := s.requireUpdated(ctx, dbTx, scope, txID, res); err != nil {
		return nil, err
	}

	if err := insertAuditEntry(ctx, dbTx, &models.AllocationAuditEntry{
		TransactionID: txID,
		Action:        models.AuditAllocate,
		MemberID:      memberID,
		GroupID:       groupID,
		ActorID:       actorID,
		Note:          note,
		CreatedAt:     now,
	}); err != nil {
		return nil, err
	}

	updated, err := s.getTransaction(ctx, dbTx, scope, txID)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}
	return updated, nil
}

// ReverseTransaction retires an allocated transaction to the terminal
// reversed status and records where the money had gone in the audit trail.
func (s *SQLiteStore) ReverseTransaction(ctx context.Context, scope models.Scope, txID, actorID, reason string) (*models.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Read first: the audit entry needs the member being reversed away from.
	// Atomic regardless, because the read and the conditional update share
	// one database transaction.
	prev, err := s.getTransaction(ctx, dbTx, scope, txID)
	if err != nil {
		return nil, err
	}

	res, err := dbTx.ExecContext(ctx,
		`UPDATE transactions
		 SET status = 'reversed', member_id = NULL, group_id = NULL,
		     allocation_note = NULL, allocated_by = NULL, allocated_at = NULL
		 WHERE id = ? AND status = 'allocated'`,
		txID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reverse transaction: %w", err)
	}
	if err := s.requireUpdated(ctx, dbTx, scope, txID, res); err != nil {
		return nil, err
	}

	if err := insertAuditEntry(ctx, dbTx, &models.AllocationAuditEntry{
		TransactionID: txID,
		Action:        models.AuditReverse,
		MemberID:      prev.MemberID,
		GroupID:       prev.GroupID,
		ActorID:       actorID,
		Note:          reason,
		CreatedAt:     time.Now().Unix(),
	}); err != nil {
		return nil, err
	}

	updated, err := s.getTransaction(ctx, dbTx, scope, txID)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reversal: %w", err)
	}
	return updated, nil
}

// SetFlagged toggles the advisory triage flag.
func (s *SQLiteStore) SetFlagged(ctx context.Context, scope models.Scope, txID string, flagged bool) (*models.Transaction, error) {
	from, to := models.StatusUnallocated, models.StatusFlagged
	if !flagged {
		from, to = models.StatusFlagged, models.StatusUnallocated
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx,
		"UPDATE transactions SET status = ? WHERE id = ? AND status = ?",
		to, txID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update flag: %w", err)
	}
	if err := s.requireUpdated(ctx, dbTx, scope, txID, res); err != nil {
		return nil, err
	}

	updated, err := s.getTransaction(ctx, dbTx, scope, txID)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit flag update: %w", err)
	}
	return updated, nil
}

// MarkDuplicate marks txID as a duplicate of canonicalID. Duplicate pointers
// stay flat: the canonical must not itself be a duplicate, and an existing
// pointer is never silently reassigned.
func (s *SQLiteStore) MarkDuplicate(ctx context.Context, scope models.Scope, txID, canonicalID, reason string) (*models.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	target, err := s.getTransaction(ctx, dbTx, scope, txID)
	if err != nil {
		return nil, err
	}

	// Idempotent re-mark with the same canonical; conflict with a different one.
	if target.Status == models.StatusDuplicate {
		if target.DuplicateOf == canonicalID {
			// Read-only path, nothing to commit.
			dbTx.Rollback()
			return target, nil
		}
		return nil, fmt.Errorf("%w: already marked duplicate of %s", storage.ErrConflict, target.DuplicateOf)
	}

	canonical, err := s.getTransaction(ctx, dbTx, scope, canonicalID)
	if err != nil {
		return nil, err
	}
	if canonical.InstitutionID != target.InstitutionID {
		// Cross-institution canonicals are invisible, same as missing.
		return nil, storage.ErrNotFound
	}
	if canonical.Status == models.StatusDuplicate {
		return nil, fmt.Errorf("%w: canonical %s is itself a duplicate", storage.ErrConflict, canonicalID)
	}

	res, err := dbTx.ExecContext(ctx,
		`UPDATE transactions SET status = 'duplicate', duplicate_of = ?, duplicate_reason = ?
		 WHERE id = ? AND status IN ('unallocated', 'flagged')`,
		canonicalID, nullable(reason), txID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark duplicate: %w", err)
	}
	if err := s.requireUpdated(ctx, dbTx, scope, txID, res); err != nil {
		return nil, err
	}

	updated, err := s.getTransaction(ctx, dbTx, scope, txID)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit duplicate mark: %w", err)
	}
	return updated, nil
}

// UnmarkDuplicate returns a duplicate transaction to the unallocated pool.
func (s *SQLiteStore) UnmarkDuplicate(ctx context.Context, scope models.Scope, txID string) (*models.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx,
		`UPDATE transactions SET status = 'unallocated', duplicate_of = NULL, duplicate_reason = NULL
		 WHERE id = ? AND status = 'duplicate'`,
		txID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to unmark duplicate: %w", err)
	}
	if err := s.requireUpdated(ctx, dbTx, scope, txID, res); err != nil {
		return nil, err
	}

	updated, err := s.getTransaction(ctx, dbTx, scope, txID)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit duplicate unmark: %w", err)
	}
	return updated, nil
}

// requireUpdated disambiguates a zero-row conditional update: missing or
// out-of-scope rows are ErrNotFound, rows in the wrong state are ErrConflict.
func (s *SQLiteStore) requireUpdated(ctx context.Context, dbTx *sql.Tx, scope models.Scope, txID string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	current, err := s.getTransaction(ctx, dbTx, scope, txID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: transaction %s is %s", storage.ErrConflict, txID, current.Status)
}

// ListDuplicateGroups returns pending duplicate clusters: two or more
// not-yet-adjudicated transactions sharing a match key, at least one of which
// is still allocatable. Ordered by the oldest member's occurred-at, then by
// match key, so the listing is deterministic.
func (s *SQLiteStore) ListDuplicateGroups(ctx context.Context, scope models.Scope) ([]*models.DuplicateGroup, error) {
	var (
		conds = []string{"status NOT IN ('duplicate', 'reversed')"}
		args  []any
	)
	if !scope.Platform {
		conds = append(conds, "institution_id = ?")
		args = append(args, scope.InstitutionID)
	}
	where := strings.Join(conds, " AND ")

	// Grouped per institution even under platform scope: a shared reference
	// across institutions is two independent groups, since a canonical can
	// only be chosen within one institution.
	keyQuery := `
		SELECT match_key, match_type, institution_id, MIN(occurred_at) AS first_at
		FROM transactions
		WHERE ` + where + `
		GROUP BY match_key, match_type, institution_id
		HAVING COUNT(*) >= 2
		   AND SUM(CASE WHEN status IN ('unallocated', 'flagged') THEN 1 ELSE 0 END) >= 1
		ORDER BY first_at, match_key, institution_id`

	rows, err := s.db.QueryContext(ctx, keyQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate keys: %w", err)
	}
	defer rows.Close()

	var groups []*models.DuplicateGroup
	for rows.Next() {
		g := &models.DuplicateGroup{}
		if err := rows.Scan(&g.MatchKey, &g.MatchType, &g.InstitutionID, &g.FirstOccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate key: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicate keys: %w", err)
	}

	for _, g := range groups {
		memberQuery := "SELECT " + transactionColumns + ` FROM transactions
			WHERE match_key = ? AND institution_id = ? AND ` + where + ` ORDER BY occurred_at, id`
		memberArgs := append([]any{g.MatchKey, g.InstitutionID}, args...)

		txRows, err := s.db.QueryContext(ctx, memberQuery, memberArgs...)
		if err != nil {
			return nil, fmt.Errorf("failed to list duplicate group members: %w", err)
		}
		for txRows.Next() {
			tx, err := scanTransaction(txRows)
			if err != nil {
				txRows.Close()
				return nil, fmt.Errorf("failed to scan duplicate group member: %w", err)
			}
			g.Transactions = append(g.Transactions, tx)
		}
		if err := txRows.Err(); err != nil {
			txRows.Close()
			return nil, fmt.Errorf("failed to iterate duplicate group members: %w", err)
		}
		txRows.Close()
		g.Count = len(g.Transactions)
	}

	return groups, nil
}
