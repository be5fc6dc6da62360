package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateAccountSuccess(t *testing.T) {
	var gotPath, gotAPIKey, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer server.Close()

	client, err := NewSupabaseClient(WithBaseURL(server.URL), WithServiceKey("service-key"))
	if err != nil {
		t.Fatalf("NewSupabaseClient failed: %v", err)
	}

	if err := client.CreateAccount(context.Background(), "user@example.com", "user"); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	if gotPath != "/auth/v1/admin/users" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAPIKey != "service-key" || gotAuth != "Bearer service-key" {
		t.Errorf("unexpected auth headers: apikey=%q authorization=%q", gotAPIKey, gotAuth)
	}
	if gotBody["email"] != "user@example.com" || gotBody["password"] != "user" {
		t.Errorf("unexpected request body: %v", gotBody)
	}
	if confirm, ok := gotBody["email_confirm"].(bool); !ok || !confirm {
		t.Errorf("expected email_confirm true, got %v", gotBody["email_confirm"])
	}
}

func TestCreateAccountAlreadyExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
	}))
	defer server.Close()

	client, err := NewSupabaseClient(WithBaseURL(server.URL), WithServiceKey("service-key"))
	if err != nil {
		t.Fatalf("NewSupabaseClient failed: %v", err)
	}

	err = client.CreateAccount(context.Background(), "user@example.com", "user")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for error_code email_exists, got %v", err)
	}
}

func TestCreateAccountDuplicateMessageWithoutCode(t *testing.T) {
	// An error message mentioning duplicates without the structured code must
	// not classify as already-exists.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"msg":"user already registered"}`))
	}))
	defer server.Close()

	client, err := NewSupabaseClient(WithBaseURL(server.URL), WithServiceKey("service-key"))
	if err != nil {
		t.Fatalf("NewSupabaseClient failed: %v", err)
	}

	err = client.CreateAccount(context.Background(), "user@example.com", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrAlreadyExists) {
		t.Fatal("message text alone must not classify as ErrAlreadyExists")
	}
}

func TestCreateAccountServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"msg":"database unavailable"}`))
	}))
	defer server.Close()

	client, err := NewSupabaseClient(WithBaseURL(server.URL), WithServiceKey("service-key"))
	if err != nil {
		t.Fatalf("NewSupabaseClient failed: %v", err)
	}

	err = client.CreateAccount(context.Background(), "user@example.com", "user")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, ErrAlreadyExists) {
		t.Error("server error must not classify as ErrAlreadyExists")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "database unavailable") {
		t.Errorf("expected status and message in error, got %v", err)
	}
}

func TestNewSupabaseClientRequiresConfig(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "")

	if _, err := NewSupabaseClient(); err == nil {
		t.Error("expected error without URL and key")
	}
	if _, err := NewSupabaseClient(WithBaseURL("https://proj.supabase.co")); err == nil {
		t.Error("expected error without service key")
	}
}
