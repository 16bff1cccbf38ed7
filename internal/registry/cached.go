package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/metrics"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/redis"
)

// Load sources (metrics label)
const (
	SourceCache = "cache"
	SourceStore = "store"
)

const latestRun = "latest"

// Cached Redis 캐시를 앞에 둔 레지스트리
// Redis가 비활성화되어 있으면 그대로 하위 레지스트리를 호출
type Cached struct {
	next  Registry
	cache *redis.Cache
	log   zerolog.Logger
}

var _ Registry = (*Cached)(nil)

// NewCached wraps next with a Redis cache.
func NewCached(next Registry, cache *redis.Cache, log zerolog.Logger) *Cached {
	return &Cached{
		next:  next,
		cache: cache,
		log:   log.With().Str("component", "registry.cached").Logger(),
	}
}

// ModelKey returns the cache key of a run.
func ModelKey(experiment, runID string) string {
	if runID == "" {
		runID = latestRun
	}
	return fmt.Sprintf("model:%s:%s", experiment, runID)
}

// Load implements Registry.
func (c *Cached) Load(ctx context.Context, experiment, runID string) (*regressor.Model, *contracts.ModelSpecification, error) {
	key := ModelKey(experiment, runID)

	var rec record
	found, err := c.cache.Get(ctx, key, &rec)
	if err != nil {
		// 손상된 캐시 항목은 무시하고 저장소에서 다시 로드
		c.log.Warn().Err(err).Str("key", key).Msg("cache decode failed")
	}
	if found && err == nil && rec.Model != nil && rec.Model.Estimator != nil {
		metrics.ObserveRegistryLoad(SourceCache)
		if rec.Model.Path == "" {
			rec.Model.Path = ModelPath(experiment, runID)
		}
		return rec.Model, &rec.Spec, nil
	}

	model, spec, err := c.next.Load(ctx, experiment, runID)
	if err != nil {
		return nil, nil, err
	}
	metrics.ObserveRegistryLoad(SourceStore)

	if err := c.cache.Set(ctx, key, record{Model: model, Spec: *spec}); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache store failed")
	}
	return model, spec, nil
}

// Save implements Registry and invalidates the cached latest run.
func (c *Cached) Save(ctx context.Context, experiment string, model *regressor.Model, spec contracts.ModelSpecification) (string, error) {
	runID, err := c.next.Save(ctx, experiment, model, spec)
	if err != nil {
		return "", err
	}
	if err := c.cache.Delete(ctx, ModelKey(experiment, "")); err != nil {
		c.log.Warn().Err(err).Str("experiment", experiment).Msg("cache invalidation failed")
	}
	return runID, nil
}

// Throttled 레지스트리 로드 속도 제한 (스케줄러 fan-out 시 저장소 보호)
type Throttled struct {
	next    Registry
	limiter *rate.Limiter
}

var _ Registry = (*Throttled)(nil)

// NewThrottled limits Load calls to perSecond with the given burst.
func NewThrottled(next Registry, perSecond float64, burst int) *Throttled {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Load implements Registry.
func (t *Throttled) Load(ctx context.Context, experiment, runID string) (*regressor.Model, *contracts.ModelSpecification, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("registry throttle: %w", err)
	}
	return t.next.Load(ctx, experiment, runID)
}

// Save implements Registry.
func (t *Throttled) Save(ctx context.Context, experiment string, model *regressor.Model, spec contracts.ModelSpecification) (string, error) {
	return t.next.Save(ctx, experiment, model, spec)
}
