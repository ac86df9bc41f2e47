package candidate

import (
	"slices"

	"github.com/kailas-cloud/medlens/internal/domain/evidence"
)

// Candidate is one scored, not-yet-persisted diagnosis hypothesis.
type Candidate struct {
	disease     string
	score       float64
	matched     []string
	source      evidence.Source
	description string
	precautions []string
}

// New creates a candidate. Score is on the 0-100 scale.
func New(disease string, score float64, matched []string, source evidence.Source) Candidate {
	return Candidate{
		disease: disease,
		score:   score,
		matched: slices.Clone(matched),
		source:  source,
	}
}

// WithDetails returns a copy enriched with knowledge-base description and precautions.
func (c Candidate) WithDetails(description string, precautions []string) Candidate {
	c.description = description
	c.precautions = slices.Clone(precautions)
	if c.precautions == nil {
		c.precautions = []string{}
	}
	return c
}

// Disease returns the disease name.
func (c Candidate) Disease() string { return c.disease }

// Score returns the confidence on the 0-100 scale.
func (c Candidate) Score() float64 { return c.score }

// Matched returns the matched symptoms (text evidence only).
func (c Candidate) Matched() []string { return c.matched }

// Source returns the evidence source tag.
func (c Candidate) Source() evidence.Source { return c.source }

// Description returns the enriched description.
func (c Candidate) Description() string { return c.description }

// Precautions returns the enriched precaution list.
func (c Candidate) Precautions() []string { return c.precautions }
