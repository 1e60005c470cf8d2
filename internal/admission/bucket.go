// Package admission implements the per-tenant token-bucket admission
// controller (§4.6). It is deliberately in-memory and single-process: the
// gateway's Non-goals explicitly exclude distributed coordination of
// buckets across replicas, so there is no Redis or other shared backing
// store here — each replica is its own admission authority.
package admission

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Decision is the outcome of an Admit call.
type Decision struct {
	Allowed    bool
	RetryAfter int // seconds, only meaningful when !Allowed
}

// bucket is one tenant's continuous-state token bucket (§3 "Admission
// Bucket"). A single mutex owns it; Controller never locks a bucket's
// mutex while holding its own map lock.
type bucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newBucket(capacity int) *bucket {
	return &bucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: float64(capacity) / 60.0,
		lastRefill: time.Now(),
	}
}

// admit refills then consumes one token, returning the decision. Grounded
// on original_source's TokenBucket.consume/get_retry_after.
func (b *bucket) admit(now time.Time) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true}
	}

	retryAfter := 1
	if b.refillRate > 0 {
		needed := (1 - b.tokens) / b.refillRate
		retryAfter = int(math.Ceil(needed))
		if retryAfter < 1 {
			retryAfter = 1
		}
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}

// shardCount controls how many independent map locks the Controller uses.
// Sharding by tenant id hash avoids a single global lock on bucket
// creation (§9 redesign point 5) while keeping the implementation a plain
// map rather than a full concurrent-map dependency.
const shardCount = 32

type shard struct {
	mu      sync.Mutex
	buckets map[uuid.UUID]*bucket
}

// Controller is the sole mutator of every Admission Bucket it owns (§4.6
// concurrency note). Distinct tenants proceed independently; a single
// tenant's admissions are serialised by that tenant's bucket mutex.
type Controller struct {
	shards [shardCount]*shard
}

// NewController builds an empty Controller; buckets are created lazily on
// first use, per tenant, and retained for process lifetime (§3).
func NewController() *Controller {
	c := &Controller{}
	for i := range c.shards {
		c.shards[i] = &shard{buckets: make(map[uuid.UUID]*bucket)}
	}
	return c
}

func (c *Controller) shardFor(tenant uuid.UUID) *shard {
	h := fnv32(tenant[:])
	return c.shards[h%shardCount]
}

func fnv32(data []byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	hash := uint32(offset32)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= prime32
	}
	return hash
}

// Admit consumes one token from tenant's bucket, lazily creating it with
// the given capacity (requests per minute, §3 default 60) on first use.
func (c *Controller) Admit(tenant uuid.UUID, capacity int) Decision {
	s := c.shardFor(tenant)

	s.mu.Lock()
	b, ok := s.buckets[tenant]
	if !ok {
		b = newBucket(capacity)
		s.buckets[tenant] = b
	}
	s.mu.Unlock()

	return b.admit(time.Now())
}
