// Package auth implements the Credential Validator (C5): resolving a
// bearer token to a tenant record via a linear scan over active tenants,
// verifying each stored adaptive hash with bcrypt (§4.5).
//
// The tenant store itself — the relational "api_keys" table — is treated
// as an external collaborator per the gateway's scope (credential
// issuance is explicitly out of band); Store is the seam, and
// MemoryStore is a reference implementation good enough to seed a
// process from config or tests.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Tenant is the persistent principal record (§3).
type Tenant struct {
	ID       uuid.UUID
	Name     string
	Hash     string // bcrypt hash of the bearer secret
	Capacity int    // admission requests-per-minute, default 60
	Active   bool
}

// ErrUnauthenticated is returned when no active tenant's hash verifies
// against the presented bearer token.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Store is the seam onto the tenant record store (§1 "the relational
// store ... treated as a transactional key-addressable record sink").
type Store interface {
	ActiveTenants(ctx context.Context) ([]Tenant, error)
}

// MemoryStore is a reference Store backed by a mutex-protected slice.
// Suitable for tests and for seeding the gateway directly from
// configuration when no external tenant database is wired up.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants []Tenant
}

func NewMemoryStore(tenants ...Tenant) *MemoryStore {
	return &MemoryStore{tenants: tenants}
}

func (s *MemoryStore) ActiveTenants(ctx context.Context) ([]Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

// Deactivate flips a tenant's activation flag (§3 lifecycle: "deactivated
// by flag flip, no physical deletion").
func (s *MemoryStore) Deactivate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tenants {
		if s.tenants[i].ID == id {
			s.tenants[i].Active = false
			return
		}
	}
}

// PrincipalCache is the optional SHOULD-have cache in front of the linear
// scan (§4.5, §9 redesign point 2): keyed by a fast hash of the bearer so
// repeat callers skip bcrypt entirely. Entries expire after the TTL given
// to Set, and Invalidate evicts a tenant's entry; MemoryStore.Deactivate
// does not call Invalidate. Resolve only honours a cache hit whose tenant
// is still in the store's active set, so a deactivated tenant's
// credential stops working immediately even while its entry remains.
type PrincipalCache interface {
	Get(ctx context.Context, bearerHash string) (uuid.UUID, bool)
	Set(ctx context.Context, bearerHash string, tenant uuid.UUID, ttl time.Duration)
	Invalidate(ctx context.Context, tenant uuid.UUID)
}

// Validator resolves bearer tokens to tenants. Cache may be nil, in which
// case every call does the full O(N) bcrypt scan §4.5 describes.
type Validator struct {
	store Store
	cache PrincipalCache
	ttl   time.Duration
}

// NewValidator builds a Validator. ttl controls how long a cache hit is
// trusted before falling back to the scan; it has no effect if cache is
// nil.
func NewValidator(store Store, cache PrincipalCache, ttl time.Duration) *Validator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Validator{store: store, cache: cache, ttl: ttl}
}

// Resolve validates a bearer token and returns the matching tenant.
// The bcrypt verifier itself is constant-time; the scan across tenants is
// not (§4.5) — that asymmetry is deliberate and documented, not a bug.
func (v *Validator) Resolve(ctx context.Context, bearer string) (Tenant, error) {
	bearerHash := hashBearer(bearer)

	if v.cache != nil {
		if id, ok := v.cache.Get(ctx, bearerHash); ok {
			tenants, err := v.store.ActiveTenants(ctx)
			if err == nil {
				for _, t := range tenants {
					if t.ID == id {
						return t, nil
					}
				}
			}
			// Cache pointed at a tenant that's gone or deactivated;
			// fall through to the full scan rather than trusting it.
		}
	}

	tenants, err := v.store.ActiveTenants(ctx)
	if err != nil {
		return Tenant{}, err
	}

	for _, t := range tenants {
		if bcrypt.CompareHashAndPassword([]byte(t.Hash), []byte(bearer)) == nil {
			if v.cache != nil {
				v.cache.Set(ctx, bearerHash, t.ID, v.ttl)
			}
			return t, nil
		}
	}

	return Tenant{}, ErrUnauthenticated
}

// hashBearer derives the cache key from a bearer token. SHA-256 here is a
// fast lookup key, not a security boundary — the security-relevant
// comparison is always the bcrypt verify above.
func hashBearer(bearer string) string {
	sum := sha256.Sum256([]byte(bearer))
	return hex.EncodeToString(sum[:])
}

// HashSecret produces the adaptive hash stored against a tenant, used by
// out-of-band credential issuance (not part of the request path).
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
