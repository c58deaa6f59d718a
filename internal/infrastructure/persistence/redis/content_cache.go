package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT CACHE
// Read-through decorator over the PostgreSQL content repository. Cache
// outages degrade to direct store reads; a cache failure never fails a
// resolution. Missing templates are cached negatively so a track day with no
// authored content does not hammer the store.
// ══════════════════════════════════════════════════════════════════════════════

// ContentSource is the store side of the read-through pair.
type ContentSource interface {
	track.ContentRepository
	personalization.RuleStore
}

// cachedTemplate wraps a template with a found marker for negative caching.
type cachedTemplate struct {
	Found    bool                 `json:"found"`
	Template *track.DailyTemplate `json:"template,omitempty"`
}

// CachedContentRepository serves templates and rules through Redis.
type CachedContentRepository struct {
	source ContentSource
	cache  *Cache
	log    *logger.Logger

	// Disabled bypasses the cache entirely (cache outage, local dev).
	Disabled bool

	templateTTL time.Duration
	rulesTTL    time.Duration
}

// NewCachedContentRepository creates a read-through content repository.
// cache may be nil; reads then go straight to the source.
func NewCachedContentRepository(source ContentSource, cache *Cache, log *logger.Logger) *CachedContentRepository {
	if log == nil {
		log = logger.Default()
	}
	return &CachedContentRepository{
		source:      source,
		cache:       cache,
		log:         log.With(logger.Component("content_cache")),
		Disabled:    cache == nil,
		templateTTL: TTLTemplate,
		rulesTTL:    TTLRules,
	}
}

// WithTTLs overrides the cache lifetimes. Non-positive values keep the
// current setting.
func (r *CachedContentRepository) WithTTLs(template, rules time.Duration) *CachedContentRepository {
	if template > 0 {
		r.templateTTL = template
	}
	if rules > 0 {
		r.rulesTTL = rules
	}
	return r
}

// GetDailyTemplate implements track.ContentRepository.
func (r *CachedContentRepository) GetDailyTemplate(ctx context.Context, slug track.Slug, day int) (*track.DailyTemplate, error) {
	if r.Disabled {
		return r.source.GetDailyTemplate(ctx, slug, day)
	}

	key := templateKey(slug, day)
	var cached cachedTemplate
	err := r.cache.Get(ctx, key, &cached)
	switch {
	case err == nil && cached.Found:
		return cached.Template, nil
	case err == nil:
		return nil, track.ErrTemplateNotFound
	case !errors.Is(err, ErrCacheMiss):
		r.log.Warn("template cache read failed, falling through to store",
			logger.Track(slug.String()), logger.Day(day), logger.Err(err))
	}

	tpl, err := r.source.GetDailyTemplate(ctx, slug, day)
	if err != nil {
		if errors.Is(err, track.ErrTemplateNotFound) {
			r.put(ctx, key, cachedTemplate{Found: false}, r.templateTTL)
		}
		return nil, err
	}

	r.put(ctx, key, cachedTemplate{Found: true, Template: tpl}, r.templateTTL)
	return tpl, nil
}

// GetRules implements personalization.RuleStore.
func (r *CachedContentRepository) GetRules(ctx context.Context, slug track.Slug, day int) ([]personalization.Rule, error) {
	if r.Disabled {
		return r.source.GetRules(ctx, slug, day)
	}

	key := rulesKey(slug, day)
	var cached []personalization.Rule
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.log.Warn("rule cache read failed, falling through to store",
			logger.Track(slug.String()), logger.Day(day), logger.Err(err))
	}

	rules, err := r.source.GetRules(ctx, slug, day)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []personalization.Rule{}
	}

	r.put(ctx, key, rules, r.rulesTTL)
	return rules, nil
}

// InvalidateTrack drops all cached content for one track. Called when the
// authoring side republishes.
func (r *CachedContentRepository) InvalidateTrack(ctx context.Context, slug track.Slug) error {
	if r.Disabled {
		return nil
	}
	if err := r.cache.DeleteByPattern(ctx, PrefixTemplate+slug.String()+":*"); err != nil {
		return err
	}
	return r.cache.DeleteByPattern(ctx, PrefixRules+slug.String()+":*")
}

// put writes to the cache, logging failures instead of surfacing them.
func (r *CachedContentRepository) put(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := r.cache.Set(ctx, key, value, ttl); err != nil {
		r.log.Warn("cache write failed", logger.String("key", key), logger.Err(err))
	}
}

func templateKey(slug track.Slug, day int) string {
	return fmt.Sprintf("%s%s:%d", PrefixTemplate, slug, day)
}

func rulesKey(slug track.Slug, day int) string {
	return fmt.Sprintf("%s%s:%d", PrefixRules, slug, day)
}
