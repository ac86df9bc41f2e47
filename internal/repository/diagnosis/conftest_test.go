package diagnosis

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/medlens/internal/db"
	domdiag "github.com/kailas-cloud/medlens/internal/domain/diagnosis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	zrevRangeFn    func(ctx context.Context, key string, start, stop int64) ([]string, error)
	writeAtomicFn  func(ctx context.Context, writes []db.Write) error
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) WriteAtomic(ctx context.Context, writes []db.Write) error {
	if m.writeAtomicFn != nil {
		return m.writeAtomicFn(ctx, writes)
	}
	return nil
}

func (m *mockStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if m.zrevRangeFn != nil {
		return m.zrevRangeFn(ctx, key, start, stop)
	}
	return nil, nil
}

var testCreatedAt = time.Date(2025, 3, 1, 10, 30, 0, 123456000, time.UTC)

func testRecord(t *testing.T, source evidence.Source) domdiag.Record {
	t.Helper()
	return testRecordID(t, "rec-1", source)
}

func testRecordID(t *testing.T, id string, source evidence.Source) domdiag.Record {
	t.Helper()
	return domdiag.Reconstruct(
		id, "u-1", "Psoriasis", 80,
		"Chronic skin condition.", []string{"moisturize", "avoid triggers"},
		"skin_rash, itching", "", source, testCreatedAt,
	)
}
