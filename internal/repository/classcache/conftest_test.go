package classcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/db"
	"github.com/kailas-cloud/medlens/internal/domain"
)

type mockClassifier struct {
	result    domain.Classification
	err       error
	calls     int
	healthErr error
}

func (m *mockClassifier) Classify(_ context.Context, _ []byte) (domain.Classification, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockClassifier) HealthCheck(_ context.Context) error { return m.healthErr }

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn        func(ctx context.Context, key string) ([]byte, error)
	setFn        func(ctx context.Context, key string, value []byte) error
	setWithTTLFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setWithTTLFn != nil {
		return m.setWithTTLFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedClassifier(t *testing.T, inner *mockClassifier, ttl time.Duration) (*CachedClassifier, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	cc := New(inner, ms, "modelserver", ttl, nil, zap.NewNop())
	return cc, ms
}
