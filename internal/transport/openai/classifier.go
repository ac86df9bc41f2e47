package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/domain"
	"github.com/kailas-cloud/medlens/internal/metrics"
)

// Classifier is a skin-image classifier backed by an OpenAI-compatible vision model.
// The model is constrained to a fixed label set and answers with a JSON object.
type Classifier struct {
	client    *openai.Client
	model     string
	labels    []string
	maxTokens int
	provider  string
	logger    *zap.Logger
}

// Config holds the vision provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Labels    []string
	MaxTokens int
	Provider  string
	Logger    *zap.Logger
}

// answer is the JSON object the model is instructed to return.
type answer struct {
	Label       string   `json:"label"`
	Probability *float64 `json:"probability"`
}

// NewClassifier creates an OpenAI-compatible vision classifier.
func NewClassifier(cfg *Config) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 100
	}
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = domain.SkinLabels
	}

	return &Classifier{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		labels:    labels,
		maxTokens: maxTokens,
		provider:  cfg.Provider,
		logger:    cfg.Logger,
	}
}

// Classify implements domain.Classifier.
func (c *Classifier) Classify(ctx context.Context, image []byte) (domain.Classification, error) {
	if len(image) == 0 {
		return domain.Classification{}, fmt.Errorf("empty image: %w", domain.ErrInvalidInput)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Classify this skin image."},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(image),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	metrics.ClassifierRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return domain.Classification{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return domain.Classification{}, fmt.Errorf("empty completion response: %w", domain.ErrClassifierUnavailable)
	}

	res, err := parseAnswer(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, "invalid").Inc()
		c.logger.Warn("Vision model broke the answer format",
			zap.String("provider", c.provider), zap.Error(err))
		return domain.Classification{}, err
	}

	metrics.ClassifierRequestsTotal.WithLabelValues(c.provider, "success").Inc()
	return res, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Classifier) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *Classifier) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify photographs of skin conditions. ")
	b.WriteString("Pick exactly one label from this list and copy it verbatim:\n")
	for _, l := range c.labels {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(l))
		b.WriteString("\n")
	}
	b.WriteString(`Answer with a JSON object {"label": <label>, "probability": <confidence between 0 and 1>}.`)
	return b.String()
}

func parseAnswer(content string) (domain.Classification, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")

	var a answer
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return domain.Classification{}, fmt.Errorf("decode answer: %v: %w", err, domain.ErrClassifierContract)
	}
	if a.Probability == nil {
		return domain.Classification{}, fmt.Errorf("answer has no probability: %w", domain.ErrClassifierContract)
	}
	res := domain.Classification{Label: a.Label, Probability: *a.Probability}
	if err := res.Validate(); err != nil {
		return domain.Classification{}, err
	}
	return res, nil
}

func dataURL(image []byte) string {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrClassifierUnavailable for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrClassifierUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("vision API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("vision API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("vision API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("vision request: %w: %w", err, wrap)
	}
	return fmt.Errorf("vision request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
