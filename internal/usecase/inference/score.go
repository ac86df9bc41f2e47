package inference

import (
	"sort"

	"github.com/kailas-cloud/medlens/internal/domain/knowledge"
	"github.com/kailas-cloud/medlens/internal/domain/symptom"
)

// Score computes the weighted coverage of one disease profile by the user's
// symptoms: matching severity over the disease's total severity, as a
// percentage. Unknown symptoms weigh 0. When either side weighs 0 the score
// is 0. Matched symptoms are returned sorted.
func (e *Engine) Score(user symptom.Set, rec *knowledge.Record) (float64, []string) {
	var diseaseWeight, userWeight, matchingWeight int
	var matched []string

	for _, s := range rec.Symptoms().Items() {
		w := e.kb.Weight(s)
		diseaseWeight += w
		if user.Contains(s) {
			matched = append(matched, s)
			matchingWeight += w
		}
	}
	for _, s := range user.Items() {
		userWeight += e.kb.Weight(s)
	}
	sort.Strings(matched)

	if diseaseWeight == 0 || userWeight == 0 {
		return 0, matched
	}

	// Integer numerator keeps whole percentages exact (3/5 -> 60, not 59.99...).
	return float64(matchingWeight*100) / float64(diseaseWeight), matched
}
