package inference

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/kailas-cloud/medlens/internal/domain/analysis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
	"github.com/kailas-cloud/medlens/internal/domain/knowledge"
)

func TestRankText_WorkedExample(t *testing.T) {
	e := New(exampleBase(t), nil)

	out := e.RankText(userSet("Rash, ITCHING, fever"))
	if !out.OK() {
		t.Fatalf("expected ok, got %q", out.Status())
	}
	got := summarize(out.Candidates())
	want := []summary{{disease: "Ringworm", score: 100, source: "text"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	c := out.Candidates()[0]
	if c.Description() != "Fungal skin infection." {
		t.Errorf("Description() = %q", c.Description())
	}
	if !reflect.DeepEqual(c.Precautions(), []string{"keep skin dry", "avoid sharing towels"}) {
		t.Errorf("Precautions() = %v", c.Precautions())
	}
}

func TestRankText_NoMatch(t *testing.T) {
	e := New(exampleBase(t), nil)

	out := e.RankText(userSet("sweating"))
	if out.Status() != analysis.StatusNoMatch {
		t.Fatalf("expected no_match, got %q", out.Status())
	}
	if out.Reason() != analysis.ReasonNoMatch {
		t.Errorf("Reason() = %q", out.Reason())
	}
}

func TestRankText_ThresholdBoundary(t *testing.T) {
	tables := knowledge.Tables{
		Weights: []knowledge.Weight{
			{Symptom: "a", Value: 60},
			{Symptom: "b", Value: 40},
			{Symptom: "c", Value: 59999},
			{Symptom: "d", Value: 40001},
		},
		Rows: []knowledge.Row{
			{Disease: "Typhoid", Symptoms: []string{"a", "b"}},
			{Disease: "Malaria", Symptoms: []string{"c", "d"}},
		},
	}
	e := New(mustBase(t, tables, "Typhoid", "Malaria"), nil)

	out := e.RankText(userSet("a, c"))
	if !out.OK() {
		t.Fatalf("expected ok, got %q", out.Status())
	}
	got := summarize(out.Candidates())
	want := []summary{{disease: "Typhoid", score: 60, source: "text"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v (59.999 must be excluded)", got, want)
	}

	// Sanity check that Malaria really scores 59.999.
	score, _ := e.Score(userSet("c"), &e.Knowledge().Records()[1])
	if !approx(score, 59.999) {
		t.Errorf("Malaria score = %v, want 59.999", score)
	}
}

func TestRankText_DedupKeepsMax(t *testing.T) {
	tables := knowledge.Tables{
		Weights: []knowledge.Weight{
			{Symptom: "fever", Value: 3},
			{Symptom: "chills", Value: 1},
			{Symptom: "vomiting", Value: 5},
		},
		Rows: []knowledge.Row{
			{Disease: "Malaria", Symptoms: []string{"fever", "chills"}},   // 75
			{Disease: "Malaria", Symptoms: []string{"fever"}},             // 100
			{Disease: "Malaria", Symptoms: []string{"fever", "vomiting"}}, // 37.5, below threshold
		},
	}
	e := New(mustBase(t, tables, "Malaria"), nil)

	out := e.RankText(userSet("fever"))
	got := summarize(out.Candidates())
	want := []summary{{disease: "Malaria", score: 100, source: "text"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if !reflect.DeepEqual(out.Candidates()[0].Matched(), []string{"fever"}) {
		t.Errorf("matched should come from the best row, got %v", out.Candidates()[0].Matched())
	}
}

func TestRankText_TopKAndStableTies(t *testing.T) {
	var rows []knowledge.Row
	var allow []string
	for i := range 7 {
		name := fmt.Sprintf("Disease %d", i)
		rows = append(rows, knowledge.Row{Disease: name, Symptoms: []string{"fever"}})
		allow = append(allow, name)
	}
	tables := knowledge.Tables{
		Weights: []knowledge.Weight{{Symptom: "fever", Value: 2}},
		Rows:    rows,
	}
	e := New(mustBase(t, tables, allow...), nil)

	out := e.RankText(userSet("fever"))
	cands := out.Candidates()
	if len(cands) != TopK {
		t.Fatalf("expected %d candidates, got %d", TopK, len(cands))
	}
	for i, c := range cands {
		if want := fmt.Sprintf("Disease %d", i); c.Disease() != want {
			t.Errorf("position %d = %q, want %q (ties keep source order)", i, c.Disease(), want)
		}
	}
}

func TestRankText_SortsDescending(t *testing.T) {
	tables := knowledge.Tables{
		Weights: []knowledge.Weight{
			{Symptom: "fever", Value: 3},
			{Symptom: "cough", Value: 1},
			{Symptom: "chills", Value: 1},
		},
		Rows: []knowledge.Row{
			{Disease: "Tuberculosis", Symptoms: []string{"fever", "cough", "chills"}}, // 60
			{Disease: "Pneumonia", Symptoms: []string{"fever", "cough"}},              // 75
			{Disease: "Typhoid", Symptoms: []string{"fever"}},                         // 100
		},
	}
	e := New(mustBase(t, tables, "Tuberculosis", "Pneumonia", "Typhoid"), nil)

	got := summarize(e.RankText(userSet("fever")).Candidates())
	want := []summary{
		{disease: "Typhoid", score: 100, source: "text"},
		{disease: "Pneumonia", score: 75, source: "text"},
		{disease: "Tuberculosis", score: 60, source: "text"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRankText_Deterministic(t *testing.T) {
	e := New(exampleBase(t), nil)
	first := e.RankText(userSet("rash, itching, fever, chills"))
	for range 20 {
		again := e.RankText(userSet("rash, itching, fever, chills"))
		if !reflect.DeepEqual(first, again) {
			t.Fatal("ranking is not deterministic")
		}
	}
}

func TestRankText_FallbackDetails(t *testing.T) {
	tables := knowledge.Tables{
		Weights: []knowledge.Weight{{Symptom: "fever", Value: 1}},
		Rows:    []knowledge.Row{{Disease: "Typhoid", Symptoms: []string{"fever"}}},
	}
	e := New(mustBase(t, tables, "Typhoid"), nil)

	c := e.RankText(userSet("fever")).Candidates()[0]
	if c.Description() != TextDescriptionFallback {
		t.Errorf("Description() = %q", c.Description())
	}
	if c.Precautions() == nil || len(c.Precautions()) != 0 {
		t.Errorf("Precautions() = %#v, want empty list", c.Precautions())
	}
	if c.Source() != evidence.Text {
		t.Errorf("Source() = %q", c.Source())
	}
}
