// Package provision implements idempotent account provisioning on top of the
// account-issuing collaborator.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/avtotest/chekbot/internal/accounts"
	"github.com/avtotest/chekbot/internal/models"
)

// Provisioner wraps the issuing service with error classification. Calling
// Provision twice with the same email never creates two accounts: the second
// call resolves to the already-exists outcome, which the workflow treats as
// success so retries always make forward progress.
type Provisioner struct {
	issuer accounts.Issuer
}

// New creates a Provisioner backed by the given issuer.
func New(issuer accounts.Issuer) *Provisioner {
	return &Provisioner{issuer: issuer}
}

// BootstrapSecret derives the initial password from the email's local part.
// This is a password-bootstrap convenience so the user can log in right away,
// not a security mechanism; the user is expected to change it.
func BootstrapSecret(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}

// Provision creates an account for the email and classifies the outcome.
func (p *Provisioner) Provision(ctx context.Context, email string) models.ProvisioningResult {
	secret := BootstrapSecret(email)

	err := p.issuer.CreateAccount(ctx, email, secret)
	switch {
	case err == nil:
		slog.Info("Provisioner account created", "email", email)
		return models.ProvisioningResult{Outcome: models.ProvisionCreated, Login: email, Secret: secret}
	case errors.Is(err, accounts.ErrAlreadyExists):
		slog.Info("Provisioner account already exists", "email", email)
		return models.ProvisioningResult{Outcome: models.ProvisionAlreadyExists, Login: email}
	default:
		slog.Error("Provisioner account creation failed", "error", err, "email", email)
		return models.ProvisioningResult{Outcome: models.ProvisionFailed, Reason: err.Error()}
	}
}
