package downstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type downstreamCfg struct {
	baseURL string
}

func (c downstreamCfg) GetDownstreamBaseURL() string { return c.baseURL }
func (c downstreamCfg) GetDownstreamAPIKey() string  { return "test-key" }

func TestCreateOrder_ReturnsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var payload OrderParams
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.TenantID != "t1" || payload.Supplier != "Acme" {
			t.Fatalf("unexpected payload %+v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ord-42"}`))
	}))
	defer srv.Close()

	client := NewClient(downstreamCfg{baseURL: srv.URL})
	id, err := client.CreateOrder(context.Background(), OrderParams{
		TenantID:  "t1",
		Author:    "u1",
		Supplier:  "Acme",
		OrderDate: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ord-42" {
		t.Fatalf("expected ord-42, got %q", id)
	}
}

func TestCreateItem_ErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "validation failed", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(downstreamCfg{baseURL: srv.URL})
	_, err := client.CreateItem(context.Background(), ItemParams{TenantID: "t1", OrderID: "ord-1", Name: "bolts", Quantity: 2, Unit: "ea"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.HTTPStatusCode() != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", statusErr.HTTPStatusCode())
	}
}

func TestCreate_MissingIDIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(downstreamCfg{baseURL: srv.URL})
	if _, err := client.CreateOrder(context.Background(), OrderParams{TenantID: "t1"}); err == nil {
		t.Fatal("expected error for response without id")
	}
}
