package db

import (
	"context"
	"time"
)

// Store is the key-value database facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces they need.
type Store interface {
	Pinger
	HashStore
	KVStore
	SortedSetStore
	AtomicWriter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SortedSetStore provides score-ordered index operations.
type SortedSetStore interface {
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRevRange returns members from highest to lowest score; stop=-1 means to the end.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// AtomicWriter applies a group of writes in one MULTI/EXEC transaction:
// either every write lands or none does.
type AtomicWriter interface {
	WriteAtomic(ctx context.Context, writes []Write) error
}

// WriteKind selects the command a Write issues.
type WriteKind int

// Write kinds.
const (
	WriteHSet WriteKind = iota + 1
	WriteZAdd
)

// Write is one queued mutation of an atomic batch.
type Write struct {
	Kind   WriteKind
	Key    string
	Fields map[string]string // WriteHSet
	Score  float64           // WriteZAdd
	Member string            // WriteZAdd
}

// HSetWrite queues an HSET of fields on key.
func HSetWrite(key string, fields map[string]string) Write {
	return Write{Kind: WriteHSet, Key: key, Fields: fields}
}

// ZAddWrite queues a ZADD of member with score on key.
func ZAddWrite(key string, score float64, member string) Write {
	return Write{Kind: WriteZAdd, Key: key, Score: score, Member: member}
}
