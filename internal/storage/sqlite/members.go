package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

const memberColumns = "id, institution_id, name, phone, phone_hash, group_id, balance_minor, created_at"

func scanMember(row rowScanner) (*models.Member, error) {
	m := &models.Member{}
	var phone, phoneHash, groupID sql.NullString

	err := row.Scan(&m.ID, &m.InstitutionID, &m.Name, &phone, &phoneHash,
		&groupID, &m.BalanceMinor, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.Phone = phone.String
	m.PhoneHash = phoneHash.String
	m.GroupID = groupID.String
	return m, nil
}

// CreateMember registers a member in the directory.
func (s *SQLiteStore) CreateMember(ctx context.Context, m *models.Member) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, institution_id, name, phone, phone_hash, group_id, balance_minor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.InstitutionID, m.Name, nullable(m.Phone), nullable(m.PhoneHash),
		nullable(m.GroupID), m.BalanceMinor, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// GetMember retrieves a member visible to the scope.
func (s *SQLiteStore) GetMember(ctx context.Context, scope models.Scope, id string) (*models.Member, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE id = ?", id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if !scope.Allows(m.InstitutionID) {
		return nil, storage.ErrNotFound
	}
	return m, nil
}

// FindMemberByPhoneHash looks up at most one member of the institution by
// phone hash. Deterministic tie-break on earliest registration.
func (s *SQLiteStore) FindMemberByPhoneHash(ctx context.Context, institutionID, phoneHash string) (*models.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members
		 WHERE institution_id = ? AND phone_hash = ?
		 ORDER BY created_at, id LIMIT 1`,
		institutionID, phoneHash,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member by phone hash: %w", err)
	}
	return m, nil
}

// CreateGroup registers a savings group.
func (s *SQLiteStore) CreateGroup(ctx context.Context, g *models.Group) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt == 0 {
		g.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO groups (id, institution_id, name, created_at) VALUES (?, ?, ?, ?)",
		g.ID, g.InstitutionID, g.Name, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group visible to the scope.
func (s *SQLiteStore) GetGroup(ctx context.Context, scope models.Scope, id string) (*models.Group, error) {
	g := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, institution_id, name, created_at FROM groups WHERE id = ?", id,
	).Scan(&g.ID, &g.InstitutionID, &g.Name, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if !scope.Allows(g.InstitutionID) {
		return nil, storage.ErrNotFound
	}
	return g, nil
}
