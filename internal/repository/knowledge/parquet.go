package knowledge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/medlens/internal/domain"
	domknow "github.com/kailas-cloud/medlens/internal/domain/knowledge"
)

// Parquet row layouts. Column names match the CSV headers in snake case.
type symptomRow struct {
	Disease  string   `parquet:"disease"`
	Symptoms []string `parquet:"symptoms,list"`
}

type severityRow struct {
	Symptom string `parquet:"symptom"`
	Weight  int64  `parquet:"weight"`
}

type descriptionRow struct {
	Disease     string `parquet:"disease"`
	Description string `parquet:"description"`
}

type precautionRow struct {
	Disease     string   `parquet:"disease"`
	Precautions []string `parquet:"precautions,list"`
}

// ParquetLoader reads the four tables from Parquet files.
type ParquetLoader struct {
	dir   string
	files Files
}

// NewParquet creates a Parquet loader.
func NewParquet(dir string, files Files) *ParquetLoader {
	return &ParquetLoader{dir: dir, files: files}
}

// Load reads all tables.
func (l *ParquetLoader) Load(ctx context.Context) (domknow.Tables, error) {
	severity, err := readParquet[severityRow](ctx, l.dir, domknow.TableSeverity, l.files.Severity)
	if err != nil {
		return domknow.Tables{}, err
	}
	symptoms, err := readParquet[symptomRow](ctx, l.dir, domknow.TableSymptoms, l.files.Symptoms)
	if err != nil {
		return domknow.Tables{}, err
	}
	descriptions, err := readParquet[descriptionRow](ctx, l.dir, domknow.TableDescriptions, l.files.Descriptions)
	if err != nil {
		return domknow.Tables{}, err
	}
	precautions, err := readParquet[precautionRow](ctx, l.dir, domknow.TablePrecautions, l.files.Precautions)
	if err != nil {
		return domknow.Tables{}, err
	}

	t := domknow.Tables{
		Weights:      make([]domknow.Weight, 0, len(severity)),
		Rows:         make([]domknow.Row, 0, len(symptoms)),
		Descriptions: make(map[string]string, len(descriptions)),
		Precautions:  make(map[string][]string, len(precautions)),
	}
	for i, r := range severity {
		if int64(int(r.Weight)) != r.Weight {
			return domknow.Tables{}, domain.NewKnowledgeBaseError(domknow.TableSeverity, i+1,
				fmt.Errorf("weight %d out of range", r.Weight))
		}
		t.Weights = append(t.Weights, domknow.Weight{Symptom: r.Symptom, Value: int(r.Weight)})
	}
	for _, r := range symptoms {
		t.Rows = append(t.Rows, domknow.Row{Disease: r.Disease, Symptoms: r.Symptoms})
	}
	for _, r := range descriptions {
		t.AddDescription(r.Disease, r.Description)
	}
	for _, r := range precautions {
		t.AddPrecautions(r.Disease, r.Precautions...)
	}
	return t, nil
}

func readParquet[T any](ctx context.Context, dir, table, name string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	rows, err := parquet.ReadFile[T](filepath.Join(dir, name))
	if err != nil {
		return nil, domain.NewKnowledgeBaseError(table, 0, err)
	}
	return rows, nil
}
