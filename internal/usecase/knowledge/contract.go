package knowledge

import (
	"context"

	domknow "github.com/kailas-cloud/medlens/internal/domain/knowledge"
)

// Loader reads the raw knowledge-base tables from their source.
type Loader interface {
	Load(ctx context.Context) (domknow.Tables, error)
}
