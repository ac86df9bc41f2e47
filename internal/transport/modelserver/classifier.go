// Package modelserver classifies skin images through a TensorFlow-Serving
// style REST endpoint that returns one probability per class.
package modelserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/metrics"
)

const maxResponseBytes = 1 << 20

// Config holds the model server settings.
type Config struct {
	PredictURL string // e.g. http://tfserving:8501/v1/models/skin:predict
	HealthURL  string // optional; e.g. http://tfserving:8501/v1/models/skin
	Labels     []string
	Timeout    time.Duration
	Provider   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Classifier calls the model server and takes the argmax over its class scores.
type Classifier struct {
	predictURL string
	healthURL  string
	labels     []string
	provider   string
	client     *http.Client
	schema     *gojsonschema.Schema
	tracer     trace.Tracer
	logger     *zap.Logger
}

type instance struct {
	B64 string `json:"b64"`
}

type predictRequest struct {
	Instances []instance `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// NewClassifier validates the config and compiles the response schema.
func NewClassifier(cfg *Config) (*Classifier, error) {
	if cfg.PredictURL == "" {
		return nil, errors.New("modelserver: predict url is required")
	}
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = domain.SkinLabels
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(responseSchema(len(labels))))
	if err != nil {
		return nil, fmt.Errorf("modelserver: compile response schema: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		predictURL: cfg.PredictURL,
		healthURL:  cfg.HealthURL,
		labels:     labels,
		provider:   cfg.Provider,
		client:     client,
		schema:     schema,
		tracer:     otel.Tracer("github.com/kailas-cloud/medlens/internal/transport/modelserver"),
		logger:     logger,
	}, nil
}

// responseSchema accepts {"predictions": [[p0..pN-1], ...]} with N class scores in [0,1].
func responseSchema(classes int) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"predictions"},
		"properties": map[string]any{
			"predictions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "array",
					"minItems": classes,
					"maxItems": classes,
					"items": map[string]any{
						"type":    "number",
						"minimum": 0,
						"maximum": 1,
					},
				},
			},
		},
	}
}

// Classify implements domain.Classifier.
func (c *Classifier) Classify(ctx context.Context, image []byte) (domain.Classification, error) {
	ctx, span := c.tracer.Start(ctx, "modelserver.Classify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("image.bytes", len(image))))
	defer span.End()

	start := time.Now()
	res, err := c.classify(ctx, image)
	metrics.ClassifierRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, "success").Inc()
		span.SetAttributes(attribute.String("classifier.label", res.Label),
			attribute.Float64("classifier.probability", res.Probability))
	case errors.Is(err, domain.ErrClassifierContract):
		metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, "invalid").Inc()
	default:
		metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, "error").Inc()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		c.logger.Warn("Model server classification failed", zap.String("provider", c.provider), zap.Error(err))
	}
	return res, err
}

func (c *Classifier) classify(ctx context.Context, image []byte) (domain.Classification, error) {
	if len(image) == 0 {
		return domain.Classification{}, fmt.Errorf("empty image: %w", domain.ErrInvalidInput)
	}

	body, err := json.Marshal(predictRequest{
		Instances: []instance{{B64: base64.StdEncoding.EncodeToString(image)}},
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, bytes.NewReader(body))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("predict request: %w: %w", err, domain.ErrClassifierUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("read response: %w: %w", err, domain.ErrClassifierUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Classification{}, fmt.Errorf("model server status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(raw)), domain.ErrClassifierUnavailable)
	}

	if err := c.validate(raw); err != nil {
		return domain.Classification{}, err
	}

	var pr predictResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return domain.Classification{}, fmt.Errorf("decode response: %v: %w", err, domain.ErrClassifierContract)
	}
	return c.argmax(pr.Predictions[0]), nil
}

func (c *Classifier) validate(raw []byte) error {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("decode response: %v: %w", err, domain.ErrClassifierContract)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("response validation failed: %s: %w", strings.Join(errs, "; "), domain.ErrClassifierContract)
	}
	return nil
}

// argmax picks the first class with the highest score.
func (c *Classifier) argmax(scores []float64) domain.Classification {
	best := 0
	for i, p := range scores {
		if p > scores[best] {
			best = i
		}
	}
	return domain.Classification{Label: c.labels[best], Probability: scores[best]}
}

// HealthCheck probes the model status endpoint when one is configured.
func (c *Classifier) HealthCheck(ctx context.Context) error {
	if c.healthURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model status: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model status: unexpected status %d", resp.StatusCode)
	}
	return nil
}
