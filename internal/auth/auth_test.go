package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ikimina/momoledger/internal/models"
)

// memoryStaffStorage is an in-memory StaffStorage for tests.
type memoryStaffStorage struct {
	byEmail map[string]*models.StaffUser
}

func newMemoryStaffStorage() *memoryStaffStorage {
	return &memoryStaffStorage{byEmail: make(map[string]*models.StaffUser)}
}

func (m *memoryStaffStorage) CreateStaffUser(ctx context.Context, user *models.StaffUser) error {
	m.byEmail[user.Email] = user
	return nil
}

func (m *memoryStaffStorage) GetStaffUserByEmail(ctx context.Context, email string) (*models.StaffUser, error) {
	return m.byEmail[email], nil
}

func (m *memoryStaffStorage) GetStaffUserByID(ctx context.Context, id string) (*models.StaffUser, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()

	t.Run("Register then authenticate", func(t *testing.T) {
		a := NewPasswordAuthenticator(newMemoryStaffStorage())

		user, err := a.Register(ctx, "agent@ikimina.rw", "Agent", "s3cretpass", "inst-1", models.RoleStaff)
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if user.PasswordHash == "s3cretpass" {
			t.Error("Password stored in plain text")
		}

		got, err := a.Authenticate(ctx, "agent@ikimina.rw", "s3cretpass")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("User mismatch: got %s, want %s", got.ID, user.ID)
		}

		if _, err := a.Authenticate(ctx, "agent@ikimina.rw", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Duplicate email is rejected", func(t *testing.T) {
		a := NewPasswordAuthenticator(newMemoryStaffStorage())

		if _, err := a.Register(ctx, "agent@ikimina.rw", "Agent", "s3cretpass", "inst-1", models.RoleStaff); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		_, err := a.Register(ctx, "agent@ikimina.rw", "Other", "s3cretpass", "inst-1", models.RoleStaff)
		if !errors.Is(err, ErrEmailExists) {
			t.Errorf("Expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("Staff role requires an institution", func(t *testing.T) {
		a := NewPasswordAuthenticator(newMemoryStaffStorage())

		_, err := a.Register(ctx, "agent@ikimina.rw", "Agent", "s3cretpass", "", models.RoleStaff)
		if !errors.Is(err, ErrInvalidRole) {
			t.Errorf("Expected ErrInvalidRole, got %v", err)
		}

		// Platform admins may be institution-free.
		if _, err := a.Register(ctx, "admin@ikimina.rw", "Admin", "s3cretpass", "", models.RolePlatformAdmin); err != nil {
			t.Errorf("Platform admin registration failed: %v", err)
		}
	})

	t.Run("Short password is rejected", func(t *testing.T) {
		a := NewPasswordAuthenticator(newMemoryStaffStorage())

		_, err := a.Register(ctx, "agent@ikimina.rw", "Agent", "short", "inst-1", models.RoleStaff)
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("Expected ErrWeakPassword, got %v", err)
		}
	})
}

func TestJWTManager(t *testing.T) {
	user := models.NewStaffUser("agent@ikimina.rw", "Agent", "hash", "inst-1", models.RoleStaff)

	t.Run("Generate and validate round-trips claims", func(t *testing.T) {
		m := NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour)

		token, err := m.Generate(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		claims, err := m.Validate(token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if claims.UserID != user.ID {
			t.Errorf("UserID mismatch: got %s, want %s", claims.UserID, user.ID)
		}
		if claims.InstitutionID != "inst-1" {
			t.Errorf("InstitutionID mismatch: got %s", claims.InstitutionID)
		}

		scope := claims.Scope()
		if scope.Platform {
			t.Error("Staff claims must not yield a platform scope")
		}
		if !scope.Allows("inst-1") || scope.Allows("inst-2") {
			t.Error("Scope institution check broken")
		}
	})

	t.Run("Platform admin claims yield a platform scope", func(t *testing.T) {
		m := NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour)
		admin := models.NewStaffUser("admin@ikimina.rw", "Admin", "hash", "", models.RolePlatformAdmin)

		token, err := m.Generate(admin)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		claims, err := m.Validate(token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}

		scope := claims.Scope()
		if !scope.Platform {
			t.Error("Expected platform scope")
		}
		if !scope.Allows("inst-1") || !scope.Allows("inst-2") {
			t.Error("Platform scope must allow every institution")
		}
	})

	t.Run("Wrong secret is rejected", func(t *testing.T) {
		m := NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour)
		other := NewJWTManager("another-secret-key-entirely!!!!!", time.Hour)

		token, err := m.Generate(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired token is rejected", func(t *testing.T) {
		m := NewJWTManager("test-secret-key-32-bytes-long!!!", -time.Minute)

		token, err := m.Generate(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}
