package actor

import (
	"context"
	"strings"
	"sync"
	"time"

	"receipt_ingest_backend/platform/logger"
)

// Resolver maps a sender address to an identity, caching directory hits with
// a TTL. It is constructed once at process start and injected; the cache has
// an explicit lifecycle instead of living in package state.
type Resolver struct {
	dir Directory
	ttl time.Duration
	log *logger.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time // test hook
}

type cacheEntry struct {
	identity Identity
	expires  time.Time
}

// NewResolver creates a resolver over the given directory.
func NewResolver(dir Directory, ttl time.Duration, log *logger.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		dir:   dir,
		ttl:   ttl,
		log:   log,
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

// Resolve returns the identity for a sender address, or nil when neither the
// directory nor on-demand provisioning yields one. A nil result is not an
// error: the caller quarantines the receipt instead of retrying forever.
// Directory failures propagate as errors so they can be retried.
func (r *Resolver) Resolve(ctx context.Context, senderEmail string) (*Identity, error) {
	email := strings.ToLower(strings.TrimSpace(senderEmail))

	if cached := r.fromCache(email); cached != nil {
		return cached, nil
	}

	identity, err := r.dir.Lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		r.store(email, *identity)
		return identity, nil
	}

	identity, err = r.dir.Provision(ctx, email)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		r.log.Info("sender could not be mapped to an identity", "sender", email)
		return nil, nil
	}

	r.log.Info("provisioned identity for sender", "sender", email, "tenant", identity.TenantID)
	r.store(email, *identity)
	return identity, nil
}

func (r *Resolver) fromCache(email string) *Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[email]
	if !ok || r.now().After(entry.expires) {
		delete(r.cache, email)
		return nil
	}
	identity := entry.identity
	return &identity
}

func (r *Resolver) store(email string, identity Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[email] = cacheEntry{identity: identity, expires: r.now().Add(r.ttl)}
}
