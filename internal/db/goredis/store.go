// Package goredis implements db.Store on top of go-redis. It is the driver
// selected by storage.driver=goredis and suits single-node deployments.
package goredis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kailas-cloud/medlens/internal/db"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Store implements db.Store via go-redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a go-redis backed store. No connection is made until the first command.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	pool := cfg.PoolSize
	if pool <= 0 {
		pool = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     pool,
	})
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	_ = s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, key, hashValues(fields)...).Err(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti fetches multiple hashes in one pipeline.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}

	out := make([]map[string]string, len(cmds))
	for i, cmd := range cmds {
		m, err := cmd.Result()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value without expiration.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value with an expiration. Zero ttl means no expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// ZAdd adds or updates a member of a sorted set.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRevRange returns members ordered from highest to lowest score.
func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := s.client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRevRange, Err: err}
	}
	return members, nil
}

// WriteAtomic applies the writes inside MULTI/EXEC via TxPipelined.
func (s *Store) WriteAtomic(ctx context.Context, writes []db.Write) error {
	if len(writes) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range writes {
			switch w.Kind {
			case db.WriteHSet:
				if len(w.Fields) > 0 {
					pipe.HSet(ctx, w.Key, hashValues(w.Fields)...)
				}
			case db.WriteZAdd:
				pipe.ZAdd(ctx, w.Key, redis.Z{Score: w.Score, Member: w.Member})
			default:
				return fmt.Errorf("unsupported write kind %d", w.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	return nil
}

func hashValues(fields map[string]string) []any {
	values := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	return values
}
