package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/avtotest/chekbot/internal/accounts"
	"github.com/avtotest/chekbot/internal/models"
)

// fakeIssuer records calls and returns scripted errors in order.
type fakeIssuer struct {
	calls  []string
	errors []error
}

func (f *fakeIssuer) CreateAccount(ctx context.Context, email, password string) error {
	f.calls = append(f.calls, email+"|"+password)
	if len(f.errors) == 0 {
		return nil
	}
	err := f.errors[0]
	f.errors = f.errors[1:]
	return err
}

func TestBootstrapSecret(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"user@example.com", "user"},
		{"a.b+c@mail.uz", "a.b+c"},
		{"noatsign", "noatsign"},
	}
	for _, tc := range cases {
		if got := BootstrapSecret(tc.email); got != tc.want {
			t.Errorf("BootstrapSecret(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}

func TestProvisionCreated(t *testing.T) {
	issuer := &fakeIssuer{}
	p := New(issuer)

	result := p.Provision(context.Background(), "user@example.com")
	if result.Outcome != models.ProvisionCreated {
		t.Fatalf("expected created, got %s", result.Outcome)
	}
	if result.Login != "user@example.com" || result.Secret != "user" {
		t.Errorf("unexpected credentials: login=%q secret=%q", result.Login, result.Secret)
	}
	if len(issuer.calls) != 1 || issuer.calls[0] != "user@example.com|user" {
		t.Errorf("unexpected issuer calls: %v", issuer.calls)
	}
}

func TestProvisionIdempotent(t *testing.T) {
	// First call creates, second hits the duplicate; both resolve the flow.
	issuer := &fakeIssuer{errors: []error{nil, accounts.ErrAlreadyExists}}
	p := New(issuer)

	first := p.Provision(context.Background(), "user@example.com")
	if first.Outcome != models.ProvisionCreated {
		t.Fatalf("first call: expected created, got %s", first.Outcome)
	}

	second := p.Provision(context.Background(), "user@example.com")
	if second.Outcome != models.ProvisionAlreadyExists {
		t.Fatalf("second call: expected already_exists, got %s", second.Outcome)
	}
	if second.Login != "user@example.com" {
		t.Errorf("already_exists should carry the login, got %q", second.Login)
	}
	if second.Secret != "" {
		t.Errorf("already_exists must not expose a secret, got %q", second.Secret)
	}
}

func TestProvisionWrappedAlreadyExists(t *testing.T) {
	wrapped := errors.Join(errors.New("request context"), accounts.ErrAlreadyExists)
	issuer := &fakeIssuer{errors: []error{wrapped}}
	p := New(issuer)

	result := p.Provision(context.Background(), "user@example.com")
	if result.Outcome != models.ProvisionAlreadyExists {
		t.Fatalf("expected wrapped sentinel to classify as already_exists, got %s", result.Outcome)
	}
}

func TestProvisionFailed(t *testing.T) {
	issuer := &fakeIssuer{errors: []error{errors.New("service unavailable")}}
	p := New(issuer)

	result := p.Provision(context.Background(), "user@example.com")
	if result.Outcome != models.ProvisionFailed {
		t.Fatalf("expected failed, got %s", result.Outcome)
	}
	if result.Reason != "service unavailable" {
		t.Errorf("expected reason to carry the error text, got %q", result.Reason)
	}
}
