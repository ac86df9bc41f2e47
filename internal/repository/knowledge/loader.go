package knowledge

import (
	"context"
	"fmt"

	domknow "github.com/kailas-cloud/medlens/internal/domain/knowledge"
)

// Source formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Files names the four knowledge-base tables inside a directory.
type Files struct {
	Symptoms     string
	Severity     string
	Descriptions string
	Precautions  string
}

// CSVFiles returns the file names of the published CSV dataset.
func CSVFiles() Files {
	return Files{
		Symptoms:     "DiseaseAndSymptoms.csv",
		Severity:     "Symptom-severity.csv",
		Descriptions: "Disease_Description.csv",
		Precautions:  "Disease_precaution.csv",
	}
}

// ParquetFiles returns the file names of the columnar export.
func ParquetFiles() Files {
	return Files{
		Symptoms:     "symptoms.parquet",
		Severity:     "severity.parquet",
		Descriptions: "descriptions.parquet",
		Precautions:  "precautions.parquet",
	}
}

// Loader reads knowledge-base tables from a directory.
type Loader interface {
	Load(ctx context.Context) (domknow.Tables, error)
}

// New returns a loader for the given format rooted at dir.
func New(format, dir string) (Loader, error) {
	switch format {
	case "", FormatCSV:
		return NewCSV(dir, CSVFiles()), nil
	case FormatParquet:
		return NewParquet(dir, ParquetFiles()), nil
	default:
		return nil, fmt.Errorf("unknown knowledge format %q", format)
	}
}
