package diagnosis

import (
	"context"

	domdiag "github.com/kailas-cloud/medlens/internal/domain/diagnosis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
	domknow "github.com/kailas-cloud/medlens/internal/domain/knowledge"
)

// Repository defines the storage contract for diagnosis records.
type Repository interface {
	// Save persists the records atomically: all of them or none.
	Save(ctx context.Context, recs ...domdiag.Record) error
	Get(ctx context.Context, id string) (domdiag.Record, error)
	History(ctx context.Context, userID string, source evidence.Source, limit int) ([]domdiag.Record, error)
	Latest(ctx context.Context, userID string, source evidence.Source) (domdiag.Record, error)
}

// KnowledgeSource provides the active knowledge-base snapshot.
type KnowledgeSource interface {
	Current() (*domknow.Base, error)
}
