package medlens

import (
	"time"

	"github.com/kailas-cloud/medlens/internal/domain/analysis"
	"github.com/kailas-cloud/medlens/internal/domain/candidate"
	knowledgeuc "github.com/kailas-cloud/medlens/internal/usecase/knowledge"
)

// Status tags the outcome of Diagnose.
type Status string

// Status values.
const (
	StatusOK                   Status = "ok"
	StatusInvalidInput         Status = "invalid_input"
	StatusNoMatch              Status = "no_match"
	StatusUnrecognizedEvidence Status = "unrecognized_evidence"
)

// Source tags where a candidate came from.
type Source string

// Source values.
const (
	SourceText  Source = "text"
	SourceImage Source = "image"
)

// ImageResult is the output of an external image classifier.
type ImageResult struct {
	Label       string
	Probability float64 // in [0,1]
}

// Candidate is one ranked diagnosis. Score is on the 0-100 scale for both sources.
type Candidate struct {
	Disease     string   `json:"disease"`
	Score       float64  `json:"score"`
	Matched     []string `json:"matched,omitempty"`
	Source      Source   `json:"source"`
	Description string   `json:"description"`
	Precautions []string `json:"precautions"`
}

// Result is the outcome of Diagnose. Candidates is empty unless Status is StatusOK.
type Result struct {
	Status     Status      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// OK reports whether the diagnosis produced candidates.
func (r Result) OK() bool { return r.Status == StatusOK }

// Summary describes a loaded knowledge base.
type Summary struct {
	AllowList []string  `json:"allow_list"`
	Diseases  []string  `json:"diseases"`
	Records   int       `json:"records"`
	Symptoms  int       `json:"symptoms"`
	LoadedAt  time.Time `json:"loaded_at"`
}

func resultFromOutcome(o analysis.Outcome) Result {
	res := Result{
		Status:     Status(o.Status()),
		Reason:     o.Reason(),
		Candidates: make([]Candidate, 0, len(o.Candidates())),
	}
	for _, c := range o.Candidates() {
		res.Candidates = append(res.Candidates, candidateFromInternal(c))
	}
	return res
}

func candidateFromInternal(c candidate.Candidate) Candidate {
	precautions := c.Precautions()
	if precautions == nil {
		precautions = []string{}
	}
	return Candidate{
		Disease:     c.Disease(),
		Score:       c.Score(),
		Matched:     c.Matched(),
		Source:      Source(c.Source()),
		Description: c.Description(),
		Precautions: precautions,
	}
}

func summaryFromInternal(s knowledgeuc.Summary) Summary {
	return Summary{
		AllowList: s.AllowList,
		Diseases:  s.Diseases,
		Records:   s.Records,
		Symptoms:  s.Symptoms,
		LoadedAt:  s.LoadedAt,
	}
}
