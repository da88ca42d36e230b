package actor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type directoryCfg struct {
	baseURL string
}

func (c directoryCfg) GetDirectoryBaseURL() string        { return c.baseURL }
func (c directoryCfg) GetDirectoryAPIKey() string         { return "test-key" }
func (c directoryCfg) GetDirectoryCacheTTL() time.Duration { return time.Minute }

func TestHTTPDirectory_LookupHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("expected GET, got %s", r.Method)
		}
		if got := r.URL.Query().Get("email"); got != "a@b.nl" {
			t.Fatalf("expected email query param, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("expected bearer auth, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"author":"u1","tenantId":"t1"}`))
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(directoryCfg{baseURL: srv.URL})
	identity, err := dir.Lookup(context.Background(), "a@b.nl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity == nil || identity.Author != "u1" || identity.TenantID != "t1" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if identity.Source != SourceCognito {
		t.Fatalf("expected cognito source, got %q", identity.Source)
	}
}

func TestHTTPDirectory_LookupEncodesPlusAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("email"); got != "receipts+shop@example.com" {
			t.Fatalf("directory received corrupted email %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"author":"u1","tenantId":"t1"}`))
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(directoryCfg{baseURL: srv.URL})
	identity, err := dir.Lookup(context.Background(), "receipts+shop@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity == nil || identity.Email != "receipts+shop@example.com" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestHTTPDirectory_NotFoundMeansNoMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(directoryCfg{baseURL: srv.URL})
	identity, err := dir.Lookup(context.Background(), "stranger@b.nl")
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if identity != nil {
		t.Fatalf("expected nil identity, got %+v", identity)
	}
}

func TestHTTPDirectory_ServerErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(directoryCfg{baseURL: srv.URL})
	_, err := dir.Lookup(context.Background(), "a@b.nl")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.HTTPStatusCode() != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", statusErr.HTTPStatusCode())
	}
}

func TestHTTPDirectory_IncompleteIdentityIsUnusable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"author":"u1"}`))
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(directoryCfg{baseURL: srv.URL})
	identity, err := dir.Lookup(context.Background(), "a@b.nl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity != nil {
		t.Fatalf("identity without tenant must be unusable, got %+v", identity)
	}
}

func TestHTTPDirectory_ProvisionPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"author":"u2","tenantId":"t2"}`))
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(directoryCfg{baseURL: srv.URL})
	identity, err := dir.Provision(context.Background(), "new@b.nl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity == nil || identity.Source != SourceProvisioned {
		t.Fatalf("expected provisioned identity, got %+v", identity)
	}
}
