package auth

import (
	"context"

	"github.com/ikimina/momoledger/internal/models"
)

// Authenticator defines the interface for staff authentication implementations.
// This abstraction allows swapping between different auth methods (password, SSO, etc.)
// without changing the handler code.
type Authenticator interface {
	// Register creates a new staff account scoped to an institution.
	// An empty institutionID with the platform_admin role creates a
	// platform-wide account.
	// Returns the created user or an error if registration fails.
	Register(ctx context.Context, email, displayName, credential, institutionID, role string) (*models.StaffUser, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, email, credential string) (*models.StaffUser, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
