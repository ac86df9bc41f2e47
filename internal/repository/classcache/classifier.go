package classcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/db"
	"github.com/kailas-cloud/medlens/internal/domain"
)

const cacheKeyPrefix = "medlens:classify:"

// store is the consumer interface for the classification cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// CachedClassifier caches classifications keyed by the image content hash.
type CachedClassifier struct {
	inner      domain.Classifier
	store      store
	namespace  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. namespace separates cache entries of
// different models; ttl <= 0 keeps entries until evicted.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Classifier,
	s store,
	namespace string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedClassifier {
	return &CachedClassifier{
		inner:      inner,
		store:      s,
		namespace:  namespace,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Classify returns a cached classification or calls the inner classifier.
// Only results that satisfy the classifier contract are cached.
func (c *CachedClassifier) Classify(ctx context.Context, image []byte) (domain.Classification, error) {
	key := c.cacheKey(image)

	if res, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return res, nil
	}

	c.incCache("miss")

	res, err := c.inner.Classify(ctx, image)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify image: %w", err)
	}
	if res.Validate() == nil {
		c.putToCache(ctx, key, res)
	}
	return res, nil
}

// HealthCheck delegates to the inner classifier when it supports it.
func (c *CachedClassifier) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedClassifier) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedClassifier) cacheKey(image []byte) string {
	h := sha256.Sum256(image)
	return cacheKeyPrefix + c.namespace + ":" + hex.EncodeToString(h[:])
}

func (c *CachedClassifier) getFromCache(ctx context.Context, key string) (domain.Classification, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached classification", zap.String("key", key), zap.Error(err))
		}
		return domain.Classification{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Failed to parse cached classification", zap.String("key", key), zap.Error(err))
		return domain.Classification{}, false
	}
	res := domain.Classification{Label: e.Label, Probability: e.Probability}
	if res.Validate() != nil {
		return domain.Classification{}, false
	}
	return res, true
}

func (c *CachedClassifier) putToCache(ctx context.Context, key string, res domain.Classification) {
	data, err := json.Marshal(entry{Label: res.Label, Probability: res.Probability})
	if err != nil {
		return
	}
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Failed to cache classification", zap.String("key", key), zap.Error(err))
	}
}
