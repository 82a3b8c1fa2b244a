package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// decisionEntry is one cached verdict in the in-memory tier.
type decisionEntry struct {
	decision   *Decision
	expiresAt  time.Time
	lastAccess time.Time
}

// CachingAdapter wraps a backend with a two-tier decision cache: an
// in-memory LRU first tier and an optional shared redis second tier.
// Concurrent misses on the same key collapse into one backend call.
//
// Keys incorporate the claimed constitutional hash, so a constitution
// change never serves stale verdicts. Degraded decisions are not
// cached: once the preferred backend recovers its verdicts take effect
// immediately.
type CachingAdapter struct {
	inner      Adapter
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*decisionEntry

	l2    *redis.Client
	group singleflight.Group

	gm     *metrics.GovernanceMetrics
	logger *slog.Logger
}

// NewCachingAdapter wraps inner with the configured cache tiers. The
// redis tier is attached only when cfg.DistributedURL is set and
// reachable. gm may be nil.
func NewCachingAdapter(ctx context.Context, inner Adapter, cfg config.CacheConfig, gm *metrics.GovernanceMetrics) (*CachingAdapter, error) {
	c := &CachingAdapter{
		inner:      inner,
		ttl:        cfg.TTL,
		maxEntries: cfg.InMemorySize,
		entries:    make(map[string]*decisionEntry),
		gm:         gm,
		logger:     slog.Default().With("component", "policy.cache"),
	}

	if cfg.DistributedURL != "" {
		opts, err := redis.ParseURL(cfg.DistributedURL)
		if err != nil {
			return nil, fmt.Errorf("invalid policy cache redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("policy cache redis unreachable: %w", err)
		}
		c.l2 = client
	}
	return c, nil
}

// Evaluate serves from cache when possible. Both allow and deny
// verdicts are cached; the key covers every input field, so a cached
// deny can only be served to an identical request.
func (c *CachingAdapter) Evaluate(ctx context.Context, in *Input) (*Decision, error) {
	key := decisionKey(in)
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		e.lastAccess = now
		cached := *e.decision
		c.mu.Unlock()
		c.gm.RecordPolicyCache("memory", "hit")
		return &cached, nil
	}
	c.mu.Unlock()
	c.gm.RecordPolicyCache("memory", "miss")

	if c.l2 != nil {
		if d := c.fromL2(ctx, key); d != nil {
			c.gm.RecordPolicyCache("distributed", "hit")
			c.storeL1(key, d, now)
			return d, nil
		}
		c.gm.RecordPolicyCache("distributed", "miss")
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.inner.Evaluate(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	d := v.(*Decision)

	if !d.Degraded() {
		c.storeL1(key, d, now)
		c.storeL2(ctx, key, d)
	}
	copied := *d
	return &copied, nil
}

// Score delegates to the wrapped backend. Scores are not cached: the
// heuristic scorer is deterministic and cheap, and a remote scorer's
// verdict already rides the evaluation breaker.
func (c *CachingAdapter) Score(ctx context.Context, m *message.Message) (float64, error) {
	return c.inner.Score(ctx, m)
}

// Mode reports the wrapped backend's mode.
func (c *CachingAdapter) Mode() Mode {
	return c.inner.Mode()
}

// Version reports the wrapped backend's version.
func (c *CachingAdapter) Version() string {
	return c.inner.Version()
}

// Available reports the wrapped backend's availability.
func (c *CachingAdapter) Available() bool {
	return c.inner.Available()
}

// Len returns the number of first-tier entries.
func (c *CachingAdapter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close releases the distributed tier connection.
func (c *CachingAdapter) Close() error {
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}

func (c *CachingAdapter) storeL1(key string, d *Decision, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	stored := *d
	c.entries[key] = &decisionEntry{
		decision:   &stored,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
}

func (c *CachingAdapter) fromL2(ctx context.Context, key string) *Decision {
	if c.l2 == nil {
		return nil
	}
	data, err := c.l2.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("distributed cache read failed", "error", err)
		}
		return nil
	}
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("distributed cache entry corrupt", "error", err)
		return nil
	}
	return &d
}

func (c *CachingAdapter) storeL2(ctx context.Context, key string, d *Decision) {
	if c.l2 == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.l2.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("distributed cache write failed", "error", err)
	}
}

// evictOldest drops the least recently accessed entry. Callers hold
// the lock.
func (c *CachingAdapter) evictOldest() {
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

// decisionKey hashes every input field into a fixed-width key under
// the policy:decision: prefix shared with the distributed tier.
func decisionKey(in *Input) string {
	h := sha256.New()
	h.Write([]byte(in.TenantID))
	h.Write([]byte{0})
	h.Write([]byte(in.AgentID))
	h.Write([]byte{0})
	h.Write([]byte(in.Action))
	h.Write([]byte{0})
	h.Write([]byte(in.MessageType))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(int(in.Priority))))
	h.Write([]byte{0})
	h.Write([]byte(in.Content))
	h.Write([]byte{0})
	h.Write([]byte(in.ConstitutionalHash))
	return "policy:decision:" + hex.EncodeToString(h.Sum(nil)[:16])
}
