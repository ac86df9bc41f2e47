package inference

import (
	"math"
	"testing"

	"github.com/kailas-cloud/medlens/internal/domain/candidate"
	"github.com/kailas-cloud/medlens/internal/domain/knowledge"
)

// --- Fixtures ---

func mustBase(t *testing.T, tables knowledge.Tables, allow ...string) *knowledge.Base {
	t.Helper()
	b, err := knowledge.New(tables, allow)
	if err != nil {
		t.Fatalf("knowledge.New: %v", err)
	}
	return b
}

// exampleBase is the fever/rash/itching knowledge base used in the worked examples.
func exampleBase(t *testing.T) *knowledge.Base {
	return mustBase(t, knowledge.Tables{
		Weights: []knowledge.Weight{
			{Symptom: "fever", Value: 3},
			{Symptom: "rash", Value: 2},
			{Symptom: "itching", Value: 1},
		},
		Rows: []knowledge.Row{
			{Disease: "Ringworm", Symptoms: []string{"rash", "itching"}},
			{Disease: "Malaria", Symptoms: []string{"fever", "chills", "sweating"}},
		},
		Descriptions: map[string]string{"Ringworm": "Fungal skin infection."},
		Precautions:  map[string][]string{"Ringworm": {"keep skin dry", "avoid sharing towels"}},
	}, "Ringworm", "Malaria", "chicken pox")
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

type summary struct {
	disease string
	score   float64
	source  string
}

func summarize(cs []candidate.Candidate) []summary {
	out := make([]summary, len(cs))
	for i, c := range cs {
		out[i] = summary{disease: c.Disease(), score: c.Score(), source: string(c.Source())}
	}
	return out
}
