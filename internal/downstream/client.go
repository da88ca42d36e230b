// Package downstream creates orders and line items in the external system of
// record on behalf of a resolved actor.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"receipt_ingest_backend/platform/config"
)

// OrderParams describes one order to create.
type OrderParams struct {
	TenantID    string     `json:"tenantId"`
	Author      string     `json:"author"`
	Supplier    string     `json:"supplier"`
	OrderDate   time.Time  `json:"orderDate"`
	TotalAmount *float64   `json:"totalAmount,omitempty"`
	SourceEmail string     `json:"sourceEmail"`
}

// ItemParams describes one line item to attach to an order.
type ItemParams struct {
	TenantID   string   `json:"tenantId"`
	OrderID    string   `json:"orderId"`
	Name       string   `json:"name"`
	Quantity   float64  `json:"quantity"`
	Unit       string   `json:"unit"`
	UnitPrice  *float64 `json:"unitPrice,omitempty"`
	PartNumber string   `json:"partNumber,omitempty"`
}

// StatusError is returned for non-2xx downstream responses so callers can
// classify retryability by status code.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream %s returned %d: %s", e.Operation, e.StatusCode, e.Body)
}

// HTTPStatusCode implements the status-carrying error contract used by the
// pipeline's transient classifier.
func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// Client talks to the downstream order API. Calls are not wrapped in any
// compensating protocol: a retried attempt after partial success may create
// duplicate downstream records (accepted at-least-once risk at this layer).
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates the downstream API client.
func NewClient(cfg config.DownstreamConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetDownstreamBaseURL(), "/"),
		apiKey:  cfg.GetDownstreamAPIKey(),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type createdResponse struct {
	ID string `json:"id"`
}

// CreateOrder creates one order record and returns its downstream id.
func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (string, error) {
	return c.post(ctx, "/orders", "createOrder", params)
}

// CreateItem creates one line item and returns its downstream id.
func (c *Client) CreateItem(ctx context.Context, params ItemParams) (string, error) {
	return c.post(ctx, "/order-items", "createItem", params)
}

func (c *Client) post(ctx context.Context, path, operation string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downstream %s failed: %w", operation, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var created createdResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("downstream %s decode: %w", operation, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("downstream %s returned no id", operation)
	}
	return created.ID, nil
}
