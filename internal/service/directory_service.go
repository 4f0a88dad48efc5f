package service

import (
	"context"
	"log/slog"

	"github.com/ikimina/momoledger/internal/match"
	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

// DirectoryService is the minimal member-directory surface the engine needs:
// seeding members and groups, and reading them back. Allocation and
// suggestions only ever read from it.
type DirectoryService struct {
	store storage.Store
}

// NewDirectoryService creates a DirectoryService with the given storage backend.
func NewDirectoryService(store storage.Store) *DirectoryService {
	return &DirectoryService{store: store}
}

// CreateMember registers a member in the caller's institution. The phone is
// normalized and hashed before storage so suggestion lookups are stable.
func (s *DirectoryService) CreateMember(ctx context.Context, scope models.Scope, name, phone, groupID string, balanceMinor int64) (*models.Member, error) {
	if name == "" {
		return nil, validationErr("name", "required")
	}
	if scope.InstitutionID == "" {
		return nil, validationErr("institution_id", "platform accounts must target an institution")
	}

	member := &models.Member{
		InstitutionID: scope.InstitutionID,
		Name:          name,
		Phone:         match.NormalizePhone(phone),
		PhoneHash:     match.PhoneHash(phone),
		GroupID:       groupID,
		BalanceMinor:  balanceMinor,
	}

	if groupID != "" {
		if _, err := s.store.GetGroup(ctx, scope, groupID); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateMember(ctx, member); err != nil {
		slog.Error("member creation failed", "institution_id", scope.InstitutionID, "error", err)
		return nil, err
	}

	slog.Info("member created", "member_id", member.ID, "institution_id", member.InstitutionID)
	return member, nil
}

// GetMember retrieves a member visible to the scope.
func (s *DirectoryService) GetMember(ctx context.Context, scope models.Scope, id string) (*models.Member, error) {
	if id == "" {
		return nil, validationErr("member_id", "required")
	}
	return s.store.GetMember(ctx, scope, id)
}

// CreateGroup registers a savings group in the caller's institution.
func (s *DirectoryService) CreateGroup(ctx context.Context, scope models.Scope, name string) (*models.Group, error) {
	if name == "" {
		return nil, validationErr("name", "required")
	}
	if scope.InstitutionID == "" {
		return nil, validationErr("institution_id", "platform accounts must target an institution")
	}

	group := &models.Group{
		InstitutionID: scope.InstitutionID,
		Name:          name,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("group creation failed", "institution_id", scope.InstitutionID, "error", err)
		return nil, err
	}

	slog.Info("group created", "group_id", group.ID, "institution_id", group.InstitutionID)
	return group, nil
}

// GetGroup retrieves a group visible to the scope.
func (s *DirectoryService) GetGroup(ctx context.Context, scope models.Scope, id string) (*models.Group, error) {
	if id == "" {
		return nil, validationErr("group_id", "required")
	}
	return s.store.GetGroup(ctx, scope, id)
}
