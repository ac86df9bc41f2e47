package inference

import (
	"strings"

	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/domain/analysis"
	"github.com/kailas-cloud/medlens/internal/domain/candidate"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
)

// Resolve maps a classifier label to an allowed knowledge-base disease name.
// Labels without a mapping entry are tried verbatim (trimmed).
func (e *Engine) Resolve(label string) (string, bool) {
	label = strings.TrimSpace(label)
	name, mapped := e.labels[label]
	if !mapped {
		name = label
	}
	return name, name != "" && e.kb.Allowed(name)
}

// AdaptImage turns a classifier output into a single enriched candidate on
// the 0-100 scale. Labels outside the allow-list are never passed through.
func (e *Engine) AdaptImage(c domain.Classification) (analysis.Outcome, error) {
	if !c.HasLabel() {
		return analysis.InvalidInput(analysis.ReasonNoLabel), nil
	}
	if err := c.Validate(); err != nil {
		return analysis.Outcome{}, err
	}

	name, ok := e.Resolve(c.Label)
	if !ok {
		return analysis.Unrecognized(), nil
	}

	desc, ok := e.kb.Description(name)
	if !ok {
		desc = ImageDescriptionFallback
	}
	prec, ok := e.kb.Precautions(name)
	if !ok {
		prec = []string{ImagePrecautionFallback}
	}

	cand := candidate.New(name, c.Probability*100, nil, evidence.Image).WithDetails(desc, prec)
	return analysis.OK([]candidate.Candidate{cand}), nil
}

// Labels returns a copy of the label mapping table.
func (e *Engine) Labels() map[string]string {
	out := make(map[string]string, len(e.labels))
	for k, v := range e.labels {
		out[k] = v
	}
	return out
}
