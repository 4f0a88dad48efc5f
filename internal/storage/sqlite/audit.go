package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ikimina/momoledger/internal/models"
)

// insertAuditEntry appends one audit row inside the caller's database
// transaction, so the status change and its record commit together.
func insertAuditEntry(ctx context.Context, dbTx *sql.Tx, entry *models.AllocationAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := dbTx.ExecContext(ctx,
		`INSERT INTO allocation_audit (id, transaction_id, action, member_id, group_id, actor_id, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TransactionID, entry.Action, entry.MemberID,
		nullable(entry.GroupID), entry.ActorID, nullable(entry.Note), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the audit trail for one transaction, oldest first.
// The transaction must be visible to the scope.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, scope models.Scope, txID string) ([]*models.AllocationAuditEntry, error) {
	if _, err := s.GetTransaction(ctx, scope, txID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transaction_id, action, member_id, group_id, actor_id, note, created_at
		 FROM allocation_audit WHERE transaction_id = ? ORDER BY seq`,
		txID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AllocationAuditEntry
	for rows.Next() {
		entry := &models.AllocationAuditEntry{}
		var groupID, note sql.NullString
		if err := rows.Scan(&entry.ID, &entry.TransactionID, &entry.Action,
			&entry.MemberID, &groupID, &entry.ActorID, &note, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.GroupID = groupID.String
		entry.Note = note.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
