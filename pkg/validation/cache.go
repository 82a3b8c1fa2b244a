package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// cacheEntry is one cached validation verdict.
type cacheEntry struct {
	result     *message.ValidationResult
	expiresAt  time.Time
	lastAccess time.Time
}

// CachingValidator wraps a validator with an LRU result cache. Only
// passing results are cached: rejections are cheap to recompute and a
// cached rejection could outlive the condition that caused it.
//
// Cache keys combine the content hash with the message's claimed
// constitutional hash, so a constitution change never serves stale
// verdicts.
type CachingValidator struct {
	inner      Validator
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*cacheEntry

	gm *metrics.GovernanceMetrics
}

// NewCachingValidator wraps inner with a cache of maxEntries entries
// and the given TTL. gm may be nil.
func NewCachingValidator(inner Validator, maxEntries int, ttl time.Duration, gm *metrics.GovernanceMetrics) *CachingValidator {
	return &CachingValidator{
		inner:      inner,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*cacheEntry),
		gm:         gm,
	}
}

// Validate serves from cache when possible, delegating to the wrapped
// validator on miss.
func (c *CachingValidator) Validate(ctx context.Context, m *message.Message) (*message.ValidationResult, error) {
	key := cacheKey(m)
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		e.lastAccess = now
		cached := *e.result
		c.mu.Unlock()
		c.gm.RecordValidationCache("hit")
		return &cached, nil
	}
	c.mu.Unlock()
	c.gm.RecordValidationCache("miss")

	result, err := c.inner.Validate(ctx, m)
	if err != nil {
		return nil, err
	}

	if result.Valid {
		c.mu.Lock()
		if len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
		stored := *result
		c.entries[key] = &cacheEntry{
			result:     &stored,
			expiresAt:  now.Add(c.ttl),
			lastAccess: now,
		}
		c.mu.Unlock()
	}
	return result, nil
}

// Name identifies the validator in metrics and logs.
func (c *CachingValidator) Name() string {
	return "caching(" + c.inner.Name() + ")"
}

// Len returns the number of cached entries.
func (c *CachingValidator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest drops the least recently accessed entry. Callers hold
// the lock.
func (c *CachingValidator) evictOldest() {
	var oldestKey string
	var oldestAccess time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.lastAccess.Before(oldestAccess) {
			oldestKey = k
			oldestAccess = e.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// cacheKey builds the cache key: the first 16 hex chars of the content
// hash, segmented by the claimed constitutional hash.
func cacheKey(m *message.Message) string {
	sum := sha256.Sum256([]byte(m.Content))
	return hex.EncodeToString(sum[:8]) + ":" + m.ConstitutionalHash
}
