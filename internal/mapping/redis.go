package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hfi/authproxy/pkg/token"
)

// RedisStore keeps the mapping table in Redis, one JSON value per
// mapping under a key prefix. Keys carry no TTL: mappings persist
// indefinitely, matching the file backend. The response cache stays
// per-process regardless of the mapping backend.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(address, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("mapping: failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "authproxy:mapping:",
	}, nil
}

// Create mints an identifier and writes the mapping to Redis. SetNX
// guards against the (vanishingly unlikely) identifier collision.
func (s *RedisStore) Create(def Definition) (*Mapping, error) {
	if err := def.normalize(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	for {
		id, err := token.New(token.DefaultBytes)
		if err != nil {
			return nil, fmt.Errorf("mapping: generating id: %w", err)
		}

		m := def.build(id, time.Now())
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("mapping: marshal: %w", err)
		}

		stored, err := s.client.SetNX(ctx, s.prefix+id, raw, 0).Result()
		if err != nil {
			return nil, &PersistenceError{Err: err}
		}
		if !stored {
			// Identifier already taken, mint another.
			continue
		}

		return m, nil
	}
}

// Lookup returns the mapping for id, if any. Connection errors read as
// not found.
func (s *RedisStore) Lookup(id string) (*Mapping, bool) {
	ctx := context.Background()

	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		return nil, false
	}

	var m Mapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}

	return &m, true
}

// Len returns the approximate number of stored mappings.
func (s *RedisStore) Len() int {
	ctx := context.Background()
	keys, err := s.client.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		return 0
	}
	return len(keys)
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping() error {
	return s.client.Ping(context.Background()).Err()
}
