package actor

import (
	"context"
	"errors"
	"testing"
	"time"

	"receipt_ingest_backend/platform/logger"
)

type fakeDirectory struct {
	lookup    *Identity
	lookupErr error
	provision *Identity
	provErr   error

	lookupCalls    int
	provisionCalls int
}

func (d *fakeDirectory) Lookup(_ context.Context, _ string) (*Identity, error) {
	d.lookupCalls++
	return d.lookup, d.lookupErr
}

func (d *fakeDirectory) Provision(_ context.Context, _ string) (*Identity, error) {
	d.provisionCalls++
	return d.provision, d.provErr
}

func newTestResolver(dir Directory, ttl time.Duration) *Resolver {
	return NewResolver(dir, ttl, logger.New("test"))
}

func TestResolve_LookupHitIsCached(t *testing.T) {
	dir := &fakeDirectory{lookup: &Identity{Email: "a@b.nl", Author: "u1", TenantID: "t1", Source: SourceCognito}}
	r := newTestResolver(dir, 5*time.Minute)

	for i := 0; i < 3; i++ {
		identity, err := r.Resolve(context.Background(), "A@B.NL")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if identity == nil || identity.TenantID != "t1" {
			t.Fatalf("expected identity, got %v", identity)
		}
	}
	if dir.lookupCalls != 1 {
		t.Fatalf("expected a single directory call, got %d", dir.lookupCalls)
	}
	if dir.provisionCalls != 0 {
		t.Fatal("lookup hit must not provision")
	}
}

func TestResolve_CacheExpires(t *testing.T) {
	dir := &fakeDirectory{lookup: &Identity{Email: "a@b.nl", Author: "u1", TenantID: "t1"}}
	r := newTestResolver(dir, time.Minute)

	current := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }

	if _, err := r.Resolve(context.Background(), "a@b.nl"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, err := r.Resolve(context.Background(), "a@b.nl"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.lookupCalls != 2 {
		t.Fatalf("expected refetch after ttl, got %d calls", dir.lookupCalls)
	}
}

func TestResolve_ProvisionFallback(t *testing.T) {
	dir := &fakeDirectory{provision: &Identity{Email: "new@b.nl", Author: "u2", TenantID: "t2", Source: SourceProvisioned}}
	r := newTestResolver(dir, 5*time.Minute)

	identity, err := r.Resolve(context.Background(), "new@b.nl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity == nil || identity.Source != SourceProvisioned {
		t.Fatalf("expected provisioned identity, got %v", identity)
	}
	if dir.provisionCalls != 1 {
		t.Fatalf("expected one provision call, got %d", dir.provisionCalls)
	}

	// The provisioned identity is cached like a lookup hit.
	if _, err := r.Resolve(context.Background(), "new@b.nl"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.lookupCalls != 1 || dir.provisionCalls != 1 {
		t.Fatalf("expected cache hit, got lookup=%d provision=%d", dir.lookupCalls, dir.provisionCalls)
	}
}

func TestResolve_UnmappedSenderIsNotAnError(t *testing.T) {
	dir := &fakeDirectory{}
	r := newTestResolver(dir, 5*time.Minute)

	identity, err := r.Resolve(context.Background(), "stranger@nowhere.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity != nil {
		t.Fatalf("expected nil identity, got %v", identity)
	}
}

func TestResolve_DirectoryErrorPropagates(t *testing.T) {
	dir := &fakeDirectory{lookupErr: errors.New("connection refused")}
	r := newTestResolver(dir, 5*time.Minute)

	if _, err := r.Resolve(context.Background(), "a@b.nl"); err == nil {
		t.Fatal("expected directory failure to propagate")
	}
	if dir.provisionCalls != 0 {
		t.Fatal("a failing lookup must not fall through to provisioning")
	}
}
