package inference

import (
	"slices"

	"github.com/kailas-cloud/medlens/internal/domain/analysis"
	"github.com/kailas-cloud/medlens/internal/domain/candidate"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
	"github.com/kailas-cloud/medlens/internal/domain/symptom"
)

// RankText scores every knowledge-base profile and returns up to TopK
// candidates scoring at least MinScore, one per disease, highest first.
// Ties keep the order in which diseases first cleared the threshold.
func (e *Engine) RankText(user symptom.Set) analysis.Outcome {
	type best struct {
		score   float64
		matched []string
	}

	order := make([]string, 0)
	byName := make(map[string]*best)

	records := e.kb.Records()
	for i := range records {
		rec := &records[i]
		score, matched := e.Score(user, rec)
		if score < MinScore {
			continue
		}
		cur, seen := byName[rec.Name()]
		if !seen {
			order = append(order, rec.Name())
			byName[rec.Name()] = &best{score: score, matched: matched}
			continue
		}
		if score > cur.score {
			cur.score, cur.matched = score, matched
		}
	}

	ranked := make([]candidate.Candidate, 0, len(order))
	for _, name := range order {
		b := byName[name]
		ranked = append(ranked, candidate.New(name, b.score, b.matched, evidence.Text))
	}
	slices.SortStableFunc(ranked, func(a, b candidate.Candidate) int {
		switch {
		case a.Score() > b.Score():
			return -1
		case a.Score() < b.Score():
			return 1
		default:
			return 0
		}
	})
	if len(ranked) > TopK {
		ranked = ranked[:TopK]
	}

	out := make([]candidate.Candidate, 0, len(ranked))
	emitted := make(map[string]struct{}, len(ranked))
	for _, c := range ranked {
		if c.Score() <= 0 {
			continue
		}
		if _, dup := emitted[c.Disease()]; dup {
			continue
		}
		emitted[c.Disease()] = struct{}{}
		out = append(out, e.enrichText(c))
	}

	if len(out) == 0 {
		return analysis.NoMatch()
	}
	return analysis.OK(out)
}

func (e *Engine) enrichText(c candidate.Candidate) candidate.Candidate {
	desc, ok := e.kb.Description(c.Disease())
	if !ok {
		desc = TextDescriptionFallback
	}
	prec, _ := e.kb.Precautions(c.Disease())
	return c.WithDetails(desc, prec)
}
