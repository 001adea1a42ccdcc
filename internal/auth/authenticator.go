package auth

import (
	"context"

	"github.com/harryandriyan/bilbul/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// The split core only consumes an "is authenticated" signal plus a user ID;
// this abstraction keeps the identity provider swappable (password today,
// OAuth or passkeys later) without touching the session layer.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
