package knowledge

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kailas-cloud/medlens/internal/domain"
	domknow "github.com/kailas-cloud/medlens/internal/domain/knowledge"
)

// CSVLoader reads the four tables from CSV files with a header row.
//
//	DiseaseAndSymptoms.csv  Disease,Symptom_1..Symptom_N
//	Symptom-severity.csv    Symptom,weight
//	Disease_Description.csv Disease,Description
//	Disease_precaution.csv  Disease,Precaution_1..Precaution_4
//
// Blank symptom and precaution cells are ignored. When a disease has several
// description or precaution rows the last one wins.
type CSVLoader struct {
	dir   string
	files Files
}

// NewCSV creates a CSV loader.
func NewCSV(dir string, files Files) *CSVLoader {
	return &CSVLoader{dir: dir, files: files}
}

// Load reads and parses all tables.
func (l *CSVLoader) Load(ctx context.Context) (domknow.Tables, error) {
	t := domknow.Tables{
		Descriptions: make(map[string]string),
		Precautions:  make(map[string][]string),
	}

	header, rows, err := l.read(ctx, domknow.TableSeverity, l.files.Severity)
	if err != nil {
		return domknow.Tables{}, err
	}
	if t.Weights, err = parseSeverity(header, rows); err != nil {
		return domknow.Tables{}, err
	}

	header, rows, err = l.read(ctx, domknow.TableSymptoms, l.files.Symptoms)
	if err != nil {
		return domknow.Tables{}, err
	}
	if t.Rows, err = parseSymptoms(header, rows); err != nil {
		return domknow.Tables{}, err
	}

	header, rows, err = l.read(ctx, domknow.TableDescriptions, l.files.Descriptions)
	if err != nil {
		return domknow.Tables{}, err
	}
	diseaseCol, descCol, err := columns(domknow.TableDescriptions, header, "disease", "description")
	if err != nil {
		return domknow.Tables{}, err
	}
	for _, rec := range rows {
		t.AddDescription(cell(rec, diseaseCol), cell(rec, descCol))
	}

	header, rows, err = l.read(ctx, domknow.TablePrecautions, l.files.Precautions)
	if err != nil {
		return domknow.Tables{}, err
	}
	diseaseCol, err = column(domknow.TablePrecautions, header, "disease")
	if err != nil {
		return domknow.Tables{}, err
	}
	precCols := prefixed(header, "precaution")
	for _, rec := range rows {
		t.AddPrecautions(cell(rec, diseaseCol), cells(rec, precCols)...)
	}

	return t, nil
}

// read returns the header and data records of one CSV file.
func (l *CSVLoader) read(ctx context.Context, table, name string) ([]string, [][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", table, err)
	}

	f, err := os.Open(filepath.Join(l.dir, name))
	if err != nil {
		return nil, nil, domain.NewKnowledgeBaseError(table, 0, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // symptom rows are ragged
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("missing header row")
		}
		return nil, nil, domain.NewKnowledgeBaseError(table, 0, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, domain.NewKnowledgeBaseError(table, 0, err)
	}
	return header, rows, nil
}

func parseSeverity(header []string, rows [][]string) ([]domknow.Weight, error) {
	symCol, weightCol, err := columns(domknow.TableSeverity, header, "symptom", "weight")
	if err != nil {
		return nil, err
	}
	out := make([]domknow.Weight, 0, len(rows))
	for i, rec := range rows {
		raw := cell(rec, weightCol)
		w, err := strconv.Atoi(raw)
		if err != nil {
			return nil, domain.NewKnowledgeBaseError(domknow.TableSeverity, i+1,
				fmt.Errorf("weight %q is not an integer", raw))
		}
		out = append(out, domknow.Weight{Symptom: cell(rec, symCol), Value: w})
	}
	return out, nil
}

func parseSymptoms(header []string, rows [][]string) ([]domknow.Row, error) {
	diseaseCol, err := column(domknow.TableSymptoms, header, "disease")
	if err != nil {
		return nil, err
	}
	symCols := prefixed(header, "symptom")
	out := make([]domknow.Row, 0, len(rows))
	for _, rec := range rows {
		out = append(out, domknow.Row{Disease: cell(rec, diseaseCol), Symptoms: cells(rec, symCols)})
	}
	return out, nil
}

// column finds a header column by case-insensitive name.
func column(table string, header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return -1, domain.NewKnowledgeBaseError(table, 0, fmt.Errorf("missing column %q", name))
}

func columns(table string, header []string, a, b string) (int, int, error) {
	ia, err := column(table, header, a)
	if err != nil {
		return -1, -1, err
	}
	ib, err := column(table, header, b)
	if err != nil {
		return -1, -1, err
	}
	return ia, ib, nil
}

// prefixed returns the indexes of columns whose name starts with prefix.
func prefixed(header []string, prefix string) []int {
	var out []int
	for i, h := range header {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(h)), prefix) {
			out = append(out, i)
		}
	}
	return out
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// cells returns the non-blank values of the given columns in order.
func cells(rec []string, idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		if v := cell(rec, i); v != "" {
			out = append(out, v)
		}
	}
	return out
}
