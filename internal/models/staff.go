package models

import (
	"time"

	"github.com/google/uuid"
)

// Staff roles.
const (
	// RoleStaff sees only its own institution.
	RoleStaff = "staff"

	// RolePlatformAdmin sees every institution.
	RolePlatformAdmin = "platform_admin"
)

// StaffUser is a registered staff account.
type StaffUser struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's email address (unique). Used for login.
	Email string

	// DisplayName is the user's display name.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// InstitutionID is the institution the user works for.
	// Empty for platform admins.
	InstitutionID string

	// Role is RoleStaff or RolePlatformAdmin.
	Role string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// NewStaffUser creates a staff user with a fresh ID and timestamps.
func NewStaffUser(email, displayName, passwordHash, institutionID, role string) *StaffUser {
	now := time.Now().Unix()
	return &StaffUser{
		ID:            uuid.New().String(),
		Email:         email,
		DisplayName:   displayName,
		PasswordHash:  passwordHash,
		InstitutionID: institutionID,
		Role:          role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
