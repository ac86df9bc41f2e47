package medlens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/domain"
	knowledgerepo "github.com/kailas-cloud/medlens/internal/repository/knowledge"
	"github.com/kailas-cloud/medlens/internal/usecase/inference"
	knowledgeuc "github.com/kailas-cloud/medlens/internal/usecase/knowledge"
)

// Sentinel errors, matchable with errors.Is.
var (
	// ErrKnowledgeBase signals missing or malformed knowledge-base tables.
	ErrKnowledgeBase = domain.ErrKnowledgeBase
	// ErrClassifierContract signals an ImageResult outside its contract (e.g. probability not in [0,1]).
	ErrClassifierContract = domain.ErrClassifierContract
)

// Engine scores symptoms and image results against a loaded knowledge base.
// Safe for concurrent use; Reload swaps the snapshot atomically.
type Engine struct {
	knowledge *knowledgeuc.Service
	labels    map[string]string
	obs       *observer
}

// Open loads the knowledge base in dir and returns a ready Engine.
func Open(dir string, opts ...Option) (*Engine, error) {
	return OpenContext(context.Background(), dir, opts...)
}

// OpenContext is Open with a context bounding the initial load.
func OpenContext(ctx context.Context, dir string, opts ...Option) (*Engine, error) {
	if dir == "" {
		return nil, errors.New("medlens: knowledge directory required")
	}

	defaults := domain.DefaultEngineConfig()
	cfg := &engineConfig{
		format:    knowledgerepo.FormatCSV,
		allowList: defaults.AllowList,
		labels:    defaults.ImageLabels,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	kbLogger := cfg.logger
	if kbLogger == nil {
		kbLogger = zap.NewNop()
	}

	loader, err := knowledgerepo.New(cfg.format, dir)
	if err != nil {
		return nil, fmt.Errorf("medlens: %w", err)
	}

	e := &Engine{
		knowledge: knowledgeuc.New(loader, cfg.allowList, kbLogger),
		labels:    cfg.labels,
		obs:       obs,
	}
	if _, err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Diagnose ranks symptoms (each entry may be comma-delimited) and, when img
// is non-nil, adapts the classifier result. Text candidates come first,
// followed by the image candidate; the two lists are never merged by score.
func (e *Engine) Diagnose(symptoms []string, img *ImageResult) (res Result, err error) {
	start := time.Now()
	defer func() {
		e.obs.observe("diagnose", start, err)
		if err == nil {
			e.obs.outcome(res.Status)
		}
	}()

	kb, err := e.knowledge.Current()
	if err != nil {
		return Result{}, fmt.Errorf("medlens: %w", err)
	}

	in := inference.Input{Symptoms: symptoms}
	if img != nil {
		in.Image = &domain.Classification{Label: img.Label, Probability: img.Probability}
	}

	out, err := inference.New(kb, e.labels).Infer(in)
	if err != nil {
		return Result{}, fmt.Errorf("medlens: %w", err)
	}
	return resultFromOutcome(out), nil
}

// Reload re-reads the knowledge base. On failure the previous snapshot stays active.
func (e *Engine) Reload(ctx context.Context) (_ Summary, err error) {
	start := time.Now()
	defer func() { e.obs.observe("reload", start, err) }()

	sum, err := e.knowledge.Reload(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("medlens: %w", err)
	}
	return summaryFromInternal(sum), nil
}

// Summary describes the active knowledge base.
func (e *Engine) Summary() Summary {
	sum, err := e.knowledge.Summary()
	if err != nil {
		// Open guarantees a loaded snapshot
		return Summary{}
	}
	return summaryFromInternal(sum)
}
