// Package accounts wraps the external account-issuing service.
package accounts

import (
	"context"
	"errors"
)

// Issuer creates login credentials for a verified payer.
type Issuer interface {
	// CreateAccount registers the email with the given initial password.
	// Returns ErrAlreadyExists when the identity is already registered.
	CreateAccount(ctx context.Context, email, password string) error
}

// ErrAlreadyExists signals the identity is already registered with the
// issuing service. Callers treat it as a successful idempotent outcome.
var ErrAlreadyExists = errors.New("account already exists")
