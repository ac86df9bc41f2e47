package diagnosis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/domain/analysis"
	"github.com/kailas-cloud/medlens/internal/domain/candidate"
	domdiag "github.com/kailas-cloud/medlens/internal/domain/diagnosis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
	"github.com/kailas-cloud/medlens/internal/metrics"
	"github.com/kailas-cloud/medlens/internal/usecase/inference"
)

// Request is one analysis submission.
type Request struct {
	UserID   string
	Symptoms []string // raw strings, comma-delimited allowed
	Image    []byte   // optional
}

// Report is the result of Analyze. Records holds what was persisted, in
// fused order; it is empty unless the outcome is OK.
type Report struct {
	Outcome analysis.Outcome
	Records []domdiag.Record
}

// Service runs analyses against the active knowledge base and persists
// accepted candidates.
type Service struct {
	knowledge         KnowledgeSource
	repo              Repository
	classifier        domain.Classifier
	labels            map[string]string
	classifierTimeout time.Duration
	defaultPageSize   int
	maxPageSize       int
	tracer            trace.Tracer
	logger            *zap.Logger
	now               func() time.Time
}

// New creates a diagnosis service. classifier may be nil, in which case
// image submissions fail with domain.ErrClassifierNotConfigured.
func New(
	kb KnowledgeSource,
	repo Repository,
	classifier domain.Classifier,
	labels map[string]string,
	logger *zap.Logger,
) *Service {
	return &Service{
		knowledge:         kb,
		repo:              repo,
		classifier:        classifier,
		labels:            labels,
		classifierTimeout: 30 * time.Second,
		defaultPageSize:   20,
		maxPageSize:       100,
		tracer:            otel.Tracer("github.com/kailas-cloud/medlens/internal/usecase/diagnosis"),
		logger:            logger,
		now:               time.Now,
	}
}

// WithClassifierTimeout bounds each classifier call.
func (s *Service) WithClassifierTimeout(d time.Duration) *Service {
	if d > 0 {
		s.classifierTimeout = d
	}
	return s
}

// WithPagination configures history page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// Analyze scores symptoms first, then the image, fuses both candidate lists
// and persists each valid candidate. A failed modality ends the request with
// its outcome; the classifier is not called when the text path fails.
func (s *Service) Analyze(ctx context.Context, req Request) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "diagnosis.Analyze", trace.WithAttributes(
		attribute.Int("symptoms.count", len(req.Symptoms)),
		attribute.Bool("image.present", len(req.Image) > 0),
	))
	defer span.End()

	report, err := s.analyze(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analyze failed")
		return Report{}, err
	}

	status := report.Outcome.Status()
	span.SetAttributes(attribute.String("outcome.status", string(status)),
		attribute.Int("records.count", len(report.Records)))
	metrics.AnalysesTotal.WithLabelValues(string(status)).Inc()
	return report, nil
}

func (s *Service) analyze(ctx context.Context, req Request) (Report, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return Report{}, fmt.Errorf("user id is required: %w", domain.ErrInvalidInput)
	}

	kb, err := s.knowledge.Current()
	if err != nil {
		return Report{}, fmt.Errorf("knowledge base: %w", err)
	}

	in := inference.Input{Symptoms: req.Symptoms}
	var label string
	if len(req.Image) > 0 {
		in.Classify = func() (domain.Classification, error) {
			cls, err := s.classify(ctx, req.Image)
			label = cls.Label
			return cls, err
		}
	}

	out, err := inference.New(kb, s.labels).Infer(in)
	if err != nil {
		return Report{}, fmt.Errorf("infer: %w", err)
	}
	if !out.OK() {
		if label != "" {
			s.logger.Info("Image result rejected",
				zap.String("label", label), zap.String("status", string(out.Status())))
		}
		return Report{Outcome: out}, nil
	}

	kept, records, err := s.persist(ctx, req, out.Candidates())
	if err != nil {
		return Report{}, err
	}
	if len(records) == 0 {
		return Report{Outcome: analysis.EmptyResult()}, nil
	}

	return Report{Outcome: analysis.OK(kept), Records: records}, nil
}

func (s *Service) classify(ctx context.Context, img []byte) (domain.Classification, error) {
	if s.classifier == nil {
		return domain.Classification{}, domain.ErrClassifierNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.classifierTimeout)
	defer cancel()

	cls, err := s.classifier.Classify(ctx, img)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrClassifierUnavailable) {
			err = fmt.Errorf("%w: %w", err, domain.ErrClassifierUnavailable)
		}
		s.logger.Warn("Image classification failed", zap.Error(err))
		return domain.Classification{}, fmt.Errorf("classify image: %w", err)
	}
	return cls, nil
}

// persist builds one record per valid candidate and saves them in a single
// batch; a storage failure leaves none of them behind. Malformed candidates
// are skipped, logged and counted. Records are stamped one microsecond apart,
// newest first in fused order, so newest-first listings keep the ranking.
func (s *Service) persist(
	ctx context.Context, req Request, fused []candidate.Candidate,
) ([]candidate.Candidate, []domdiag.Record, error) {
	createdAt := s.now().UTC().Truncate(time.Microsecond)
	symptomsText := strings.Join(req.Symptoms, ", ")
	imageRef := ""
	if len(req.Image) > 0 {
		h := sha256.Sum256(req.Image)
		imageRef = "sha256:" + hex.EncodeToString(h[:])
	}

	kept := make([]candidate.Candidate, 0, len(fused))
	records := make([]domdiag.Record, 0, len(fused))
	for _, c := range fused {
		p := domdiag.Params{
			UserID:      req.UserID,
			Disease:     c.Disease(),
			Probability: c.Score(),
			Description: c.Description(),
			Precautions: c.Precautions(),
			Source:      c.Source(),
			CreatedAt:   createdAt.Add(-time.Duration(len(records)) * time.Microsecond),
		}
		switch c.Source() {
		case evidence.Text:
			p.Symptoms = symptomsText
		case evidence.Image:
			p.ImageRef = imageRef
		}

		rec, err := domdiag.New(p)
		if err != nil {
			s.skip(c, err)
			continue
		}
		kept = append(kept, c)
		records = append(records, rec)
	}
	if len(records) == 0 {
		return kept, records, nil
	}

	if err := s.repo.Save(ctx, records...); err != nil {
		return nil, nil, fmt.Errorf("save %d diagnoses: %w", len(records), err)
	}
	for i := range records {
		metrics.CandidatesTotal.WithLabelValues(string(records[i].Source())).Inc()
	}
	return kept, records, nil
}

func (s *Service) skip(c candidate.Candidate, err error) {
	field := "unknown"
	var fe *domdiag.FieldError
	if errors.As(err, &fe) {
		field = fe.Field
	}
	metrics.PersistenceSkippedTotal.WithLabelValues(field).Inc()
	s.logger.Warn("Skipping malformed diagnosis",
		zap.String("disease", c.Disease()),
		zap.String("source", string(c.Source())),
		zap.String("field", field),
		zap.Error(err),
	)
}

// History returns a user's records newest first. An empty source means any source.
func (s *Service) History(
	ctx context.Context, userID string, source evidence.Source, limit int,
) ([]domdiag.Record, error) {
	if err := validateQuery(userID, source); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	recs, err := s.repo.History(ctx, userID, source, limit)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	return recs, nil
}

// Latest returns the user's newest record for the source.
func (s *Service) Latest(ctx context.Context, userID string, source evidence.Source) (domdiag.Record, error) {
	if err := validateQuery(userID, source); err != nil {
		return domdiag.Record{}, err
	}
	rec, err := s.repo.Latest(ctx, userID, source)
	if err != nil {
		return domdiag.Record{}, fmt.Errorf("latest diagnosis: %w", err)
	}
	return rec, nil
}

// Get returns one of the user's records. Records of other users are reported as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (domdiag.Record, error) {
	if strings.TrimSpace(userID) == "" {
		return domdiag.Record{}, fmt.Errorf("user id is required: %w", domain.ErrInvalidInput)
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return domdiag.Record{}, fmt.Errorf("get diagnosis: %w", err)
	}
	if rec.UserID() != userID {
		return domdiag.Record{}, fmt.Errorf("get diagnosis: %w", domain.ErrNotFound)
	}
	return rec, nil
}

func validateQuery(userID string, source evidence.Source) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required: %w", domain.ErrInvalidInput)
	}
	if source != "" && !source.IsValid() {
		return fmt.Errorf("unknown source %q: %w", source, domain.ErrInvalidInput)
	}
	return nil
}
