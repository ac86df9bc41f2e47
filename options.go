package medlens

import (
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures an Engine.
type Option interface {
	apply(*engineConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*engineConfig)

func (f optionFunc) apply(c *engineConfig) { f(c) }

type engineConfig struct {
	format    string
	allowList []string
	labels    map[string]string

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithAllowList restricts the knowledge base to the given disease names.
func WithAllowList(diseases ...string) Option {
	return optionFunc(func(c *engineConfig) {
		c.allowList = slices.Clone(diseases)
	})
}

// WithLabels sets the classifier-label to disease-name mapping used for
// image results. Keys are matched after trimming surrounding whitespace.
func WithLabels(labels map[string]string) Option {
	return optionFunc(func(c *engineConfig) {
		c.labels = maps.Clone(labels)
	})
}

// WithFormat selects the table format: "csv" (default) or "parquet".
func WithFormat(format string) Option {
	return optionFunc(func(c *engineConfig) {
		c.format = format
	})
}

// WithLogger enables structured logging for knowledge-base loads and
// engine operations. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *engineConfig) {
		c.logger = l
	})
}

// WithPrometheus registers engine metrics (operation counts, durations and
// outcomes) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *engineConfig) {
		c.metricsReg = reg
	})
}
