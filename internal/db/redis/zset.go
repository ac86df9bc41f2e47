package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/medlens/internal/db"
)

// ZAdd adds or updates a member of a sorted set.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := s.do(ctx, s.zaddCmd(key, score, member)).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

func (s *Store) zaddCmd(key string, score float64, member string) rueidis.Completed {
	return s.b().Zadd().Key(key).ScoreMember().ScoreMember(score, member).Build()
}

// ZRevRange returns members ordered from highest to lowest score.
func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	cmd := s.b().Zrevrange().Key(key).Start(start).Stop(stop).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRevRange, Err: err}
	}
	return members, nil
}
