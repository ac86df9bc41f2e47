package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Classifier is the image classification contract between layers.
// Implementations return the top-1 label of their native taxonomy.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Classification, error)
}

// HealthChecker verifies classifier provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Classification is a resolved classifier output.
type Classification struct {
	Label       string
	Probability float64 // [0, 1]
}

// Validate checks the classifier output contract. The label itself is
// gated later against the allow-list, so only the probability is checked here.
func (c Classification) Validate() error {
	if math.IsNaN(c.Probability) || c.Probability < 0 || c.Probability > 1 {
		return fmt.Errorf("%w: probability %v outside [0,1]", ErrClassifierContract, c.Probability)
	}
	return nil
}

// HasLabel reports whether the classifier named a label at all.
func (c Classification) HasLabel() bool {
	return strings.TrimSpace(c.Label) != ""
}
