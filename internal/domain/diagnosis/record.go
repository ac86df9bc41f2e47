package diagnosis

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/medlens/internal/domain/evidence"
)

// ErrMalformed signals a record missing a required field.
var ErrMalformed = errors.New("malformed diagnosis record")

// Required record fields, used as error and metric labels.
const (
	FieldUser        = "user"
	FieldDisease     = "disease"
	FieldProbability = "probability"
	FieldDescription = "description"
	FieldPrecautions = "precautions"
	FieldSource      = "source"
)

// FieldError reports which required field made a record malformed.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrMalformed.Error(), e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrMalformed }

// Params carries the fields of a new record.
type Params struct {
	UserID      string
	Disease     string
	Probability float64 // 0-100
	Description string
	Precautions []string
	Symptoms    string
	ImageRef    string
	Source      evidence.Source
	CreatedAt   time.Time
}

// Record is a persisted diagnosis (immutable value object).
type Record struct {
	id          string
	userID      string
	disease     string
	probability float64
	description string
	precautions []string
	symptoms    string
	imageRef    string
	source      evidence.Source
	createdAt   time.Time
}

// New validates params and creates a Record with a fresh ID.
// Precautions may be empty but not nil.
func New(p Params) (Record, error) {
	switch {
	case strings.TrimSpace(p.UserID) == "":
		return Record{}, &FieldError{Field: FieldUser, Reason: "is required"}
	case strings.TrimSpace(p.Disease) == "":
		return Record{}, &FieldError{Field: FieldDisease, Reason: "is required"}
	case math.IsNaN(p.Probability) || math.IsInf(p.Probability, 0):
		return Record{}, &FieldError{Field: FieldProbability, Reason: "is not a number"}
	case p.Probability < 0 || p.Probability > 100:
		return Record{}, &FieldError{Field: FieldProbability, Reason: "must be between 0 and 100"}
	case strings.TrimSpace(p.Description) == "":
		return Record{}, &FieldError{Field: FieldDescription, Reason: "is required"}
	case p.Precautions == nil:
		return Record{}, &FieldError{Field: FieldPrecautions, Reason: "is required"}
	case !p.Source.IsValid():
		return Record{}, &FieldError{Field: FieldSource, Reason: fmt.Sprintf("%q is not supported", p.Source)}
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return Record{
		id:          uuid.NewString(),
		userID:      p.UserID,
		disease:     p.Disease,
		probability: p.Probability,
		description: p.Description,
		precautions: slices.Clone(p.Precautions),
		symptoms:    p.Symptoms,
		imageRef:    p.ImageRef,
		source:      p.Source,
		createdAt:   createdAt.UTC(),
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id, userID, disease string, probability float64, description string, precautions []string,
	symptoms, imageRef string, source evidence.Source, createdAt time.Time,
) Record {
	return Record{
		id: id, userID: userID, disease: disease, probability: probability,
		description: description, precautions: precautions,
		symptoms: symptoms, imageRef: imageRef, source: source, createdAt: createdAt,
	}
}

// ID returns the record identifier.
func (r *Record) ID() string { return r.id }

// UserID returns the owning user reference.
func (r *Record) UserID() string { return r.userID }

// Disease returns the diagnosed disease name.
func (r *Record) Disease() string { return r.disease }

// Probability returns the confidence on the 0-100 scale.
func (r *Record) Probability() float64 { return r.probability }

// Description returns the disease description.
func (r *Record) Description() string { return r.description }

// Precautions returns the precaution list.
func (r *Record) Precautions() []string { return r.precautions }

// Symptoms returns the raw symptom text the record was derived from.
func (r *Record) Symptoms() string { return r.symptoms }

// ImageRef returns the reference of the analyzed image, if any.
func (r *Record) ImageRef() string { return r.imageRef }

// Source returns the evidence source tag.
func (r *Record) Source() evidence.Source { return r.source }

// CreatedAt returns the creation time (UTC).
func (r *Record) CreatedAt() time.Time { return r.createdAt }
