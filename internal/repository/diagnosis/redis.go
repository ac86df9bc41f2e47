package diagnosis

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/medlens/internal/db"
	"github.com/kailas-cloud/medlens/internal/domain"
	domdiag "github.com/kailas-cloud/medlens/internal/domain/diagnosis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
)

// store is the consumer interface for diagnosis records (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	WriteAtomic(ctx context.Context, writes []db.Write) error
}

// RedisRepo implements usecase/diagnosis.Repository on a key-value store.
// Records live in hashes; per-user sorted sets keep them ordered by creation time.
type RedisRepo struct {
	store store
}

// NewRedis creates a key-value backed diagnosis repository.
func NewRedis(s store) *RedisRepo {
	return &RedisRepo{store: s}
}

// Save writes the record hashes and their user and source index entries in
// one transaction, so a failed batch leaves nothing behind.
func (r *RedisRepo) Save(ctx context.Context, recs ...domdiag.Record) error {
	if len(recs) == 0 {
		return nil
	}

	writes := make([]db.Write, 0, len(recs)*3)
	for _, rec := range recs {
		fields, err := recordToHash(rec)
		if err != nil {
			return err
		}
		writes = append(writes, db.HSetWrite(recordKey(rec.ID()), fields))

		score := float64(rec.CreatedAt().UnixMicro())
		writes = append(writes,
			db.ZAddWrite(userIndexKey(rec.UserID(), ""), score, rec.ID()),
			db.ZAddWrite(userIndexKey(rec.UserID(), rec.Source()), score, rec.ID()),
		)
	}

	if err := r.store.WriteAtomic(ctx, writes); err != nil {
		return fmt.Errorf("save %d diagnoses: %w", len(recs), err)
	}
	return nil
}

// Get returns a record by ID.
func (r *RedisRepo) Get(ctx context.Context, id string) (domdiag.Record, error) {
	key := recordKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domdiag.Record{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domdiag.Record{}, domain.ErrNotFound
	}
	return recordFromHash(m)
}

// History returns a user's records newest first. An empty source means any
// source; limit <= 0 means no limit. Index entries whose hash is gone are skipped.
func (r *RedisRepo) History(
	ctx context.Context, userID string, source evidence.Source, limit int,
) ([]domdiag.Record, error) {
	idx := userIndexKey(userID, source)
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := r.store.ZRevRange(ctx, idx, 0, stop)
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", idx, err)
	}
	if len(ids) == 0 {
		return []domdiag.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall records: %w", err)
	}

	out := make([]domdiag.Record, 0, len(hashes))
	for i, m := range hashes {
		if len(m) == 0 {
			continue
		}
		rec, err := recordFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", ids[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Latest returns the user's newest record for the source.
func (r *RedisRepo) Latest(ctx context.Context, userID string, source evidence.Source) (domdiag.Record, error) {
	recs, err := r.History(ctx, userID, source, 1)
	if err != nil {
		return domdiag.Record{}, err
	}
	if len(recs) == 0 {
		return domdiag.Record{}, domain.ErrNotFound
	}
	return recs[0], nil
}

func recordKey(id string) string {
	return "medlens:diagnosis:" + id
}

func userIndexKey(userID string, source evidence.Source) string {
	if source == "" {
		return "medlens:user:" + userID + ":diagnoses"
	}
	return "medlens:user:" + userID + ":diagnoses:" + string(source)
}
