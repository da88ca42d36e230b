// Package actor resolves a sender address to the (author, tenant) identity
// used to attribute downstream writes.
package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"receipt_ingest_backend/platform/config"
)

// Source tags where an identity came from.
const (
	SourceCognito     = "cognito"
	SourceProvisioned = "provisioned"
)

// Identity is a resolved (author, tenant) pair.
type Identity struct {
	Email    string
	Author   string
	TenantID string
	Source   string
}

// Directory is the identity/tenant directory collaborator. Lookup is a
// read-only cache query; Provision may create an identity downstream. Both
// return nil (no error) when no usable identity exists.
type Directory interface {
	Lookup(ctx context.Context, email string) (*Identity, error)
	Provision(ctx context.Context, email string) (*Identity, error)
}

// StatusError is returned for non-2xx directory responses so callers can
// classify retryability by status code.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory %s returned %d: %s", e.Operation, e.StatusCode, e.Body)
}

// HTTPStatusCode implements the status-carrying error contract used by the
// pipeline's transient classifier.
func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// HTTPDirectory talks to the identity directory API.
type HTTPDirectory struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPDirectory creates the directory client.
func NewHTTPDirectory(cfg config.DirectoryConfig) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(cfg.GetDirectoryBaseURL(), "/"),
		apiKey:  cfg.GetDirectoryAPIKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type directoryUser struct {
	Author   string `json:"author"`
	TenantID string `json:"tenantId"`
}

// Lookup queries the directory cache by email. A 404 means no mapping.
func (d *HTTPDirectory) Lookup(ctx context.Context, email string) (*Identity, error) {
	query := url.Values{"email": {email}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/users?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return d.do(req, "lookup", email, SourceCognito)
}

// Provision asks the downstream system to create an identity for the email.
func (d *HTTPDirectory) Provision(ctx context.Context, email string) (*Identity, error) {
	body := strings.NewReader(fmt.Sprintf(`{"email":%q}`, email))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/users", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.do(req, "provision", email, SourceProvisioned)
}

func (d *HTTPDirectory) do(req *http.Request, operation, email, source string) (*Identity, error) {
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory %s failed: %w", operation, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var user directoryUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("directory %s decode: %w", operation, err)
	}

	// An identity is usable only with both halves present.
	if user.Author == "" || user.TenantID == "" {
		return nil, nil
	}

	return &Identity{Email: email, Author: user.Author, TenantID: user.TenantID, Source: source}, nil
}
