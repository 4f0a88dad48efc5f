package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ikimina/momoledger/internal/models"
)

const staffColumns = "id, email, display_name, password_hash, institution_id, role, created_at, updated_at"

func scanStaffUser(row rowScanner) (*models.StaffUser, error) {
	u := &models.StaffUser{}
	var institutionID sql.NullString

	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&institutionID, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.InstitutionID = institutionID.String
	return u, nil
}

// CreateStaffUser inserts a new staff account.
func (s *SQLiteStore) CreateStaffUser(ctx context.Context, u *models.StaffUser) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staff_users (id, email, display_name, password_hash, institution_id, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash,
		nullable(u.InstitutionID), u.Role, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create staff user: %w", err)
	}
	return nil
}

// GetStaffUserByEmail retrieves a staff account by email address.
func (s *SQLiteStore) GetStaffUserByEmail(ctx context.Context, email string) (*models.StaffUser, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff_users WHERE email = ?", email)
	u, err := scanStaffUser(row)
	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff user by email: %w", err)
	}
	return u, nil
}

// GetStaffUserByID retrieves a staff account by ID.
func (s *SQLiteStore) GetStaffUserByID(ctx context.Context, id string) (*models.StaffUser, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff_users WHERE id = ?", id)
	u, err := scanStaffUser(row)
	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff user by ID: %w", err)
	}
	return u, nil
}
