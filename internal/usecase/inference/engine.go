package inference

import (
	"strings"

	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/domain/analysis"
	"github.com/kailas-cloud/medlens/internal/domain/candidate"
	"github.com/kailas-cloud/medlens/internal/domain/knowledge"
	"github.com/kailas-cloud/medlens/internal/domain/symptom"
)

// Scoring constants.
const (
	// MinScore is the inclusive coverage threshold for text candidates.
	MinScore = 60.0
	// TopK caps the number of text candidates.
	TopK = 5
)

// Placeholders used when the knowledge base lacks details for a disease.
const (
	TextDescriptionFallback  = "No detailed information available."
	ImageDescriptionFallback = "No detailed information available yet."
	ImagePrecautionFallback  = "No precaution available yet."
)

// Engine scores symptoms and classifier output against one knowledge-base
// snapshot. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	kb     *knowledge.Base
	labels map[string]string
}

// New creates an engine over an immutable knowledge base. labels maps
// classifier labels to knowledge-base disease names; keys are matched after
// trimming surrounding whitespace.
func New(kb *knowledge.Base, labels map[string]string) *Engine {
	m := make(map[string]string, len(labels))
	for from, to := range labels {
		m[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}
	return &Engine{kb: kb, labels: m}
}

// Knowledge returns the snapshot the engine scores against.
func (e *Engine) Knowledge() *knowledge.Base { return e.kb }

// Input is one analysis request.
type Input struct {
	Symptoms []string               // raw symptom strings, comma-delimited allowed
	Image    *domain.Classification // nil when no image was analyzed
	// Classify produces the image result when Image is nil. It is called at
	// most once, and only after the text path succeeded.
	Classify func() (domain.Classification, error)
}

func (in Input) hasImage() bool { return in.Image != nil || in.Classify != nil }

// Infer runs the text path, then the image path, and fuses the results.
// A failed modality aborts the run with its outcome. Classify failures and
// classifier contract violations are returned as errors.
func (e *Engine) Infer(in Input) (analysis.Outcome, error) {
	user := symptom.NewSet(symptom.NormalizeList(in.Symptoms))
	if user.Len() == 0 && !in.hasImage() {
		return analysis.InvalidInput(analysis.ReasonNoInput), nil
	}

	var text, image []candidate.Candidate

	if user.Len() > 0 {
		out := e.RankText(user)
		if !out.OK() {
			return out, nil
		}
		text = out.Candidates()
	}

	if in.hasImage() {
		cls := in.Image
		if cls == nil {
			c, err := in.Classify()
			if err != nil {
				return analysis.Outcome{}, err
			}
			cls = &c
		}
		out, err := e.AdaptImage(*cls)
		if err != nil {
			return analysis.Outcome{}, err
		}
		if !out.OK() {
			return out, nil
		}
		image = out.Candidates()
	}

	return analysis.OK(Fuse(text, image)), nil
}
