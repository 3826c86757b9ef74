package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wricardo/mcp-training/skatesim/game/logger"
	"github.com/wricardo/mcp-training/skatesim/game/service"
)

const (
	redisKeyPrefix = "skatesim:session:"
	redisIndexKey  = "skatesim:sessions"
)

// RedisPersistence implements SessionPersistence on Redis. Each session is a
// JSON string under skatesim:session:<id>, and the set skatesim:sessions
// indexes the stored ids.
type RedisPersistence struct {
	client        redis.UniversalClient
	configManager service.ConfigManager
	ttl           time.Duration
	timeout       time.Duration
	log           logger.Logger
}

// NewRedisPersistence wraps an existing client. A zero ttl keeps sessions
// until they are deleted.
func NewRedisPersistence(client redis.UniversalClient, configManager service.ConfigManager, ttl time.Duration, log logger.Logger) *RedisPersistence {
	return &RedisPersistence{
		client:        client,
		configManager: configManager,
		ttl:           ttl,
		timeout:       5 * time.Second,
		log:           orNop(log),
	}
}

// DialRedisPersistence connects to addr and verifies the connection
func DialRedisPersistence(ctx context.Context, addr, password string, db int, configManager service.ConfigManager, ttl time.Duration, log logger.Logger) (*RedisPersistence, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisPersistence(client, configManager, ttl, log), nil
}

func (rp *RedisPersistence) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), rp.timeout)
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Save stores the session and indexes its id
func (rp *RedisPersistence) Save(session *service.Session) error {
	data, err := persistedData(session)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	ctx, cancel := rp.ctx()
	defer cancel()

	_, err = rp.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(session.ID), payload, rp.ttl)
		pipe.SAdd(ctx, redisIndexKey, session.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session %s: %w", session.ID, err)
	}
	return nil
}

// Load retrieves a session by id
func (rp *RedisPersistence) Load(id string) (*service.Session, error) {
	ctx, cancel := rp.ctx()
	defer cancel()

	payload, err := rp.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired keys leave a stale index entry behind
		rp.client.SRem(ctx, redisIndexKey, id)
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return restoreSession(&data, rp.configManager, rp.log)
}

// Delete removes a session and its index entry
func (rp *RedisPersistence) Delete(id string) error {
	ctx, cancel := rp.ctx()
	defer cancel()

	var del *redis.IntCmd
	_, err := rp.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, redisKey(id))
		pipe.SRem(ctx, redisIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns the indexed session ids that still have data, sorted
func (rp *RedisPersistence) ListAll() ([]string, error) {
	ctx, cancel := rp.ctx()
	defer cancel()

	ids, err := rp.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := rp.client.Exists(ctx, redisKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check session %s: %w", id, err)
		}
		if n == 0 {
			rp.client.SRem(ctx, redisIndexKey, id)
			continue
		}
		live = append(live, id)
	}
	sort.Strings(live)
	return live, nil
}

// Exists checks whether a session is stored
func (rp *RedisPersistence) Exists(id string) bool {
	ctx, cancel := rp.ctx()
	defer cancel()

	n, err := rp.client.Exists(ctx, redisKey(id)).Result()
	return err == nil && n > 0
}

// Close closes the underlying client
func (rp *RedisPersistence) Close() error {
	return rp.client.Close()
}
