package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"concordlabs/concord/pkg/config"
)

// Key layout of the distributed backend. Records live under
// registry:<agent_id>; tenant membership sets under
// registry:tenant:<tenant_id>; the global membership set under
// registry:agents. A per-agent version counter under
// registry:ver:<agent_id> supports optimistic metadata updates.
const (
	recordKeyPrefix  = "registry:"
	tenantKeyPrefix  = "registry:tenant:"
	versionKeyPrefix = "registry:ver:"
	allAgentsKey     = "registry:agents"
)

// RedisRegistry backs the agent registry with redis so multiple bus
// instances share agent records. Records expire after the heartbeat
// TTL unless the agent keeps heart-beating.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisRegistry connects to redis at the configured URL and verifies
// the connection.
func NewRedisRegistry(ctx context.Context, cfg config.RegistryConfig) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("registry redis unreachable: %w", err)
	}

	return &RedisRegistry{
		client: client,
		ttl:    cfg.HeartbeatTTL,
		logger: slog.Default().With("component", "registry.redis"),
	}, nil
}

func recordKey(agentID string) string  { return recordKeyPrefix + agentID }
func tenantKey(tenant string) string   { return tenantKeyPrefix + tenant }
func versionKey(agentID string) string { return versionKeyPrefix + agentID }

// Register adds a new agent. Atomicity comes from SETNX on the record
// key; membership sets are updated after the claim succeeds.
func (r *RedisRegistry) Register(ctx context.Context, rec *AgentRecord) error {
	if rec == nil || rec.AgentID == "" {
		return ErrInvalidRecord
	}

	stored := rec.clone()
	stored.TenantID = NormalizeTenant(stored.TenantID)
	now := time.Now().UTC()
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = now
	}
	if stored.LastSeen.IsZero() {
		stored.LastSeen = stored.RegisteredAt
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}

	claimed, err := r.client.SetNX(ctx, recordKey(stored.AgentID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("register agent %s: %w", stored.AgentID, err)
	}
	if !claimed {
		return &ExistsError{AgentID: stored.AgentID}
	}

	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, allAgentsKey, stored.AgentID)
	if stored.TenantID != "" {
		pipe.SAdd(ctx, tenantKey(stored.TenantID), stored.AgentID)
	}
	pipe.Set(ctx, versionKey(stored.AgentID), 1, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register agent %s membership: %w", stored.AgentID, err)
	}
	return nil
}

// Unregister removes an agent and its membership entries.
func (r *RedisRegistry) Unregister(ctx context.Context, agentID string) error {
	rec, err := r.Get(ctx, agentID)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, recordKey(agentID), versionKey(agentID))
	pipe.SRem(ctx, allAgentsKey, agentID)
	if rec.TenantID != "" {
		pipe.SRem(ctx, tenantKey(rec.TenantID), agentID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("unregister agent %s: %w", agentID, err)
	}
	return nil
}

// Get returns the agent's record.
func (r *RedisRegistry) Get(ctx context.Context, agentID string) (*AgentRecord, error) {
	data, err := r.client.Get(ctx, recordKey(agentID)).Bytes()
	if err == redis.Nil {
		return nil, &NotFoundError{AgentID: agentID}
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", agentID, err)
	}

	var rec AgentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode agent %s: %w", agentID, err)
	}
	return &rec, nil
}

// Exists reports whether the agent is registered.
func (r *RedisRegistry) Exists(ctx context.Context, agentID string) (bool, error) {
	n, err := r.client.Exists(ctx, recordKey(agentID)).Result()
	if err != nil {
		return false, fmt.Errorf("check agent %s: %w", agentID, err)
	}
	return n > 0, nil
}

// List returns a snapshot of registered agents. Records whose TTL
// lapsed between the membership read and the record read are skipped
// and their membership entries cleaned up.
func (r *RedisRegistry) List(ctx context.Context, tenant string) ([]*AgentRecord, error) {
	tenant = NormalizeTenant(tenant)
	key := allAgentsKey
	if tenant != "" {
		key = tenantKey(tenant)
	}

	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	out := make([]*AgentRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.Get(ctx, id)
		if err != nil {
			if _, gone := err.(*NotFoundError); gone {
				r.client.SRem(ctx, key, id)
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpdateMetadata replaces the agent's metadata, bumping the version
// counter so concurrent writers can detect lost updates.
func (r *RedisRegistry) UpdateMetadata(ctx context.Context, agentID string, metadata map[string]string) error {
	rec, err := r.Get(ctx, agentID)
	if err != nil {
		return err
	}
	rec.Metadata = metadata

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, recordKey(agentID), data, redis.KeepTTL)
	pipe.Incr(ctx, versionKey(agentID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update agent %s: %w", agentID, err)
	}
	return nil
}

// Heartbeat refreshes the record TTL and records liveness.
func (r *RedisRegistry) Heartbeat(ctx context.Context, agentID string, at time.Time) error {
	rec, err := r.Get(ctx, agentID)
	if err != nil {
		return err
	}
	if at.After(rec.LastSeen) {
		rec.LastSeen = at
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, recordKey(agentID), data, r.ttl)
	pipe.Expire(ctx, versionKey(agentID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("heartbeat agent %s: %w", agentID, err)
	}
	return nil
}

// Len returns the number of registered agents.
func (r *RedisRegistry) Len(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, allAgentsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return int(n), nil
}

// Close releases the redis connection.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
