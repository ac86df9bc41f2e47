package medlens

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// engineMetrics holds prometheus metrics registered for the embedded engine.
type engineMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
}

func newEngineMetrics(reg prometheus.Registerer) (*engineMetrics, error) {
	m := &engineMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medlens",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total engine operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medlens",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation duration in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medlens",
			Subsystem: "engine",
			Name:      "outcomes_total",
			Help:      "Diagnose outcomes by status.",
		}, []string{"status"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.outcomes); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("medlens: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("medlens: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for engine operations.
type observer struct {
	logger  *zap.Logger
	metrics *engineMetrics
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *engineMetrics
	if reg != nil {
		var err error
		m, err = newEngineMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger != nil {
		if err != nil {
			o.logger.Warn("operation failed", zap.String("op", op), zap.Duration("duration", dur), zap.Error(err))
		} else {
			o.logger.Debug("operation completed", zap.String("op", op), zap.Duration("duration", dur))
		}
	}
}

func (o *observer) outcome(status Status) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.outcomes.WithLabelValues(string(status)).Inc()
}
