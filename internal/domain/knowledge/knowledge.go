package knowledge

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/domain/symptom"
)

// Table names used in load errors.
const (
	TableSymptoms     = "symptoms"
	TableSeverity     = "severity"
	TableDescriptions = "descriptions"
	TablePrecautions  = "precautions"
)

// Weight is one row of the severity table.
type Weight struct {
	Symptom string
	Value   int
}

// Row is one disease→symptoms row of the source table.
type Row struct {
	Disease  string
	Symptoms []string
}

// Tables is the raw, unfiltered content of the four knowledge-base tables.
type Tables struct {
	Weights      []Weight
	Rows         []Row
	Descriptions map[string]string
	Precautions  map[string][]string
}

// AddDescription records a disease description. The first non-blank
// description of a disease is kept.
func (t *Tables) AddDescription(disease, desc string) {
	if t.Descriptions == nil {
		t.Descriptions = make(map[string]string)
	}
	disease = strings.TrimSpace(disease)
	if strings.TrimSpace(t.Descriptions[disease]) != "" {
		return
	}
	t.Descriptions[disease] = desc
}

// AddPrecautions appends one row of precautions; rows of the same disease
// concatenate in source order.
func (t *Tables) AddPrecautions(disease string, items ...string) {
	if t.Precautions == nil {
		t.Precautions = make(map[string][]string)
	}
	disease = strings.TrimSpace(disease)
	t.Precautions[disease] = append(t.Precautions[disease], items...)
}

// Record is one disease profile of the knowledge base. A disease may own
// several records with different symptom subsets.
type Record struct {
	name        string
	symptoms    symptom.Set
	description string
	precautions []string
}

// Name returns the disease name.
func (r *Record) Name() string { return r.name }

// Symptoms returns the canonical symptom set of this profile.
func (r *Record) Symptoms() symptom.Set { return r.symptoms }

// Description returns the disease description, possibly empty.
func (r *Record) Description() string { return r.description }

// Precautions returns a copy of the ordered precaution list.
func (r *Record) Precautions() []string { return slices.Clone(r.precautions) }

// Base is an immutable knowledge-base snapshot. Safe for concurrent reads.
type Base struct {
	weights      map[string]int
	records      []Record
	allowList    []string
	allowed      map[string]struct{}
	descriptions map[string]string
	precautions  map[string][]string
}

// New filters the raw tables down to the allow-list and builds a snapshot.
// Severity keys and profile symptoms are canonicalized with symptom.Canonical;
// when two severity rows collide the later one wins.
func New(t Tables, allowList []string) (*Base, error) {
	b := &Base{
		weights:      make(map[string]int, len(t.Weights)),
		allowed:      make(map[string]struct{}, len(allowList)),
		descriptions: make(map[string]string),
		precautions:  make(map[string][]string),
	}

	for _, name := range allowList {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := b.allowed[name]; dup {
			continue
		}
		b.allowed[name] = struct{}{}
		b.allowList = append(b.allowList, name)
	}
	if len(b.allowList) == 0 {
		return nil, domain.NewKnowledgeBaseError("allow-list", 0, errors.New("allow-list is empty"))
	}

	for i, w := range t.Weights {
		key := symptom.Canonical(w.Symptom)
		if key == "" {
			return nil, domain.NewKnowledgeBaseError(TableSeverity, i+1, errors.New("symptom name is empty"))
		}
		if w.Value < 0 {
			return nil, domain.NewKnowledgeBaseError(TableSeverity, i+1,
				fmt.Errorf("weight %d for %q is negative", w.Value, w.Symptom))
		}
		b.weights[key] = w.Value
	}

	for name, desc := range t.Descriptions {
		name = strings.TrimSpace(name)
		if b.Allowed(name) {
			b.descriptions[name] = strings.TrimSpace(desc)
		}
	}

	for name, items := range t.Precautions {
		name = strings.TrimSpace(name)
		if !b.Allowed(name) {
			continue
		}
		list := make([]string, 0, len(items))
		for _, p := range items {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		b.precautions[name] = list
	}

	for i, row := range t.Rows {
		name := strings.TrimSpace(row.Disease)
		if name == "" {
			return nil, domain.NewKnowledgeBaseError(TableSymptoms, i+1, errors.New("disease name is empty"))
		}
		if !b.Allowed(name) {
			continue
		}
		b.records = append(b.records, Record{
			name:        name,
			symptoms:    symptom.NewSet(symptom.NormalizeList(row.Symptoms)),
			description: b.descriptions[name],
			precautions: b.precautions[name],
		})
	}

	return b, nil
}

// Weight returns the severity weight of a canonical symptom name, 0 if unknown.
func (b *Base) Weight(name string) int { return b.weights[name] }

// Records returns the disease profiles in source order.
func (b *Base) Records() []Record { return b.records }

// Allowed reports whether the disease name is on the allow-list.
func (b *Base) Allowed(name string) bool {
	_, ok := b.allowed[name]
	return ok
}

// AllowList returns a copy of the allow-list in configured order.
func (b *Base) AllowList() []string { return slices.Clone(b.allowList) }

// Description returns the description of an allowed disease.
func (b *Base) Description(name string) (string, bool) {
	d, ok := b.descriptions[name]
	return d, ok && d != ""
}

// Precautions returns a copy of the precautions of an allowed disease.
func (b *Base) Precautions(name string) ([]string, bool) {
	p, ok := b.precautions[name]
	return slices.Clone(p), ok && len(p) > 0
}

// SymptomCount returns the number of symptoms with a known severity.
func (b *Base) SymptomCount() int { return len(b.weights) }

// Diseases returns the distinct allowed disease names that own at least one
// profile, in first-seen order.
func (b *Base) Diseases() []string {
	seen := make(map[string]struct{}, len(b.allowList))
	out := make([]string, 0, len(b.allowList))
	for i := range b.records {
		name := b.records[i].name
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
