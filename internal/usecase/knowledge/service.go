package knowledge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/domain"
	domknow "github.com/kailas-cloud/medlens/internal/domain/knowledge"
	"github.com/kailas-cloud/medlens/internal/metrics"
)

// Summary describes the active snapshot.
type Summary struct {
	AllowList []string
	Diseases  []string
	Records   int
	Symptoms  int
	LoadedAt  time.Time
}

type snapshot struct {
	base     *domknow.Base
	loadedAt time.Time
}

// Service owns the active knowledge-base snapshot. Reloads build a complete
// new snapshot and swap it in atomically; readers never see a partial table.
type Service struct {
	loader    Loader
	allowList []string
	current   atomic.Pointer[snapshot]
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Service. Call Reload before serving requests.
func New(loader Loader, allowList []string, logger *zap.Logger) *Service {
	return &Service{
		loader:    loader,
		allowList: allowList,
		logger:    logger,
		now:       time.Now,
	}
}

// Current returns the active snapshot.
func (s *Service) Current() (*domknow.Base, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: not loaded", domain.ErrKnowledgeBase)
	}
	return snap.base, nil
}

// Reload loads the tables, builds a new snapshot and activates it. On
// failure the previous snapshot stays active.
func (s *Service) Reload(ctx context.Context) (Summary, error) {
	tables, err := s.loader.Load(ctx)
	if err != nil {
		metrics.KnowledgeReloadsTotal.WithLabelValues("error").Inc()
		return Summary{}, fmt.Errorf("load knowledge tables: %w", err)
	}

	base, err := domknow.New(tables, s.allowList)
	if err != nil {
		metrics.KnowledgeReloadsTotal.WithLabelValues("error").Inc()
		return Summary{}, fmt.Errorf("build knowledge base: %w", err)
	}

	snap := &snapshot{base: base, loadedAt: s.now()}
	s.current.Store(snap)

	metrics.KnowledgeReloadsTotal.WithLabelValues("ok").Inc()
	metrics.KnowledgeRecords.Set(float64(len(base.Records())))

	sum := summarize(snap)
	s.logger.Info("knowledge base loaded",
		zap.Int("records", sum.Records),
		zap.Int("symptoms", sum.Symptoms),
		zap.Strings("diseases", sum.Diseases),
	)
	if missing := missingDiseases(sum); len(missing) > 0 {
		s.logger.Warn("allow-listed diseases without symptom profiles", zap.Strings("diseases", missing))
	}
	return sum, nil
}

// Summary describes the active snapshot.
func (s *Service) Summary() (Summary, error) {
	snap := s.current.Load()
	if snap == nil {
		return Summary{}, fmt.Errorf("%w: not loaded", domain.ErrKnowledgeBase)
	}
	return summarize(snap), nil
}

// HealthCheck reports whether a snapshot is active.
func (s *Service) HealthCheck(_ context.Context) error {
	_, err := s.Current()
	return err
}

func summarize(snap *snapshot) Summary {
	return Summary{
		AllowList: snap.base.AllowList(),
		Diseases:  snap.base.Diseases(),
		Records:   len(snap.base.Records()),
		Symptoms:  snap.base.SymptomCount(),
		LoadedAt:  snap.loadedAt,
	}
}

func missingDiseases(sum Summary) []string {
	have := make(map[string]struct{}, len(sum.Diseases))
	for _, d := range sum.Diseases {
		have[d] = struct{}{}
	}
	var missing []string
	for _, d := range sum.AllowList {
		if _, ok := have[d]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}
