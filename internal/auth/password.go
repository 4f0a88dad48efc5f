package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ikimina/momoledger/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidRole        = errors.New("role must be staff or platform_admin")
)

// StaffStorage defines the interface for staff-account persistence.
// This allows the authenticator to be independent of the storage implementation.
type StaffStorage interface {
	CreateStaffUser(ctx context.Context, user *models.StaffUser) error
	GetStaffUserByEmail(ctx context.Context, email string) (*models.StaffUser, error)
	GetStaffUserByID(ctx context.Context, id string) (*models.StaffUser, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage StaffStorage
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage StaffStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		storage: storage,
	}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new staff account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, credential, institutionID, role string) (*models.StaffUser, error) {
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	switch role {
	case models.RoleStaff:
		if institutionID == "" {
			return nil, fmt.Errorf("%w: staff accounts need an institution", ErrInvalidRole)
		}
	case models.RolePlatformAdmin:
	default:
		return nil, ErrInvalidRole
	}

	// Check if email already exists
	existingUser, err := a.storage.GetStaffUserByEmail(ctx, email)
	if err == nil && existingUser != nil {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewStaffUser(email, displayName, string(hashedPassword), institutionID, role)

	if err := a.storage.CreateStaffUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create staff user: %w", err)
	}

	return user, nil
}

// Authenticate verifies the email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.StaffUser, error) {
	user, err := a.storage.GetStaffUserByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
