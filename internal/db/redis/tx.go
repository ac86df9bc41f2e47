package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/medlens/internal/db"
)

// WriteAtomic sends MULTI, the queued writes and EXEC in one DoMulti call,
// which rueidis writes contiguously on a single connection.
func (s *Store) WriteAtomic(ctx context.Context, writes []db.Write) error {
	if len(writes) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, 0, len(writes)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, w := range writes {
		switch w.Kind {
		case db.WriteHSet:
			if len(w.Fields) == 0 {
				continue
			}
			cmds = append(cmds, s.hsetCmd(w.Key, w.Fields))
		case db.WriteZAdd:
			cmds = append(cmds, s.zaddCmd(w.Key, w.Score, w.Member))
		default:
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("unsupported write kind %d", w.Kind)}
		}
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	// queueing errors abort the transaction; EXEC then reports per-command errors
	for _, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpExec, Err: err}
		}
	}
	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i := range replies {
		if err := replies[i].Error(); err != nil {
			return &db.Error{Op: db.OpExec, Err: err}
		}
	}
	return nil
}
