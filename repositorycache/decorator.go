package repositorycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/recipe"
	"go.uber.org/zap"
)

// CachedRecipes decorates a recipe repository with the cache-aside
// protocol. Reads go through the cache service; every mutation runs the
// sweeper before it returns.
type CachedRecipes struct {
	base      recipe.Repository
	service   *cache.Service
	keys      cache.KeyNormalizer
	detailTTL time.Duration
	searchTTL time.Duration
	tracker   *KeyTracker
	sweeper   *Sweeper
	logger    *zap.Logger
}

// Option configures CachedRecipes.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *cache.Metrics
}

// WithLogger sets the logger used for sweeps and imports.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records sweep outcomes on m.
func WithMetrics(m *cache.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// New wraps base. Keys live under cfg.Namespace, or the snake cased entity
// type name when that is empty.
func New(base recipe.Repository, service *cache.Service, cfg cache.Config, opts ...Option) *CachedRecipes {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = NamespaceFor(recipe.Recipe{})
	}
	keys := cache.NewKeyNormalizer(namespace)

	var tracker *KeyTracker
	sweepOpts := []SweeperOption{
		WithSweepLogger(o.logger.Named("sweeper")),
		WithSweepMetrics(o.metrics),
	}
	if cfg.TrackKeys {
		tracker = NewKeyTracker(cfg.MaxTrackedKeys)
		sweepOpts = append(sweepOpts, WithTracker(tracker))
	}

	return &CachedRecipes{
		base:      base,
		service:   service,
		keys:      keys,
		detailTTL: cfg.DetailTTL,
		searchTTL: cfg.SearchTTL,
		tracker:   tracker,
		sweeper:   NewSweeper(service, keys, cfg.KnownModes, cfg.KnownFilters, sweepOpts...),
		logger:    o.logger,
	}
}

// Keys returns the normalizer in use.
func (c *CachedRecipes) Keys() cache.KeyNormalizer {
	return c.keys
}

// Sweeper returns the sweeper run after mutations.
func (c *CachedRecipes) Sweeper() *Sweeper {
	return c.sweeper
}

// GetAll returns every recipe. Unpublished recipes are never cached, so they
// appear in the result only when it was computed on a miss.
func (c *CachedRecipes) GetAll(ctx context.Context) ([]recipe.Recipe, error) {
	return cache.GetOrComputeList[recipe.Recipe](ctx, c.service, c.keys.AllKey(), c.searchTTL, func(ctx context.Context) ([]recipe.Recipe, error) {
		return c.base.List(ctx)
	})
}

// Search returns recipes matching any of keywords, in every mode.
func (c *CachedRecipes) Search(ctx context.Context, keywords ...string) ([]recipe.Recipe, error) {
	return c.SearchByMode(ctx, nil, keywords...)
}

// SearchByMode returns recipes in mode matching any of keywords. A nil or
// blank mode matches every recipe; no keywords match every recipe in mode.
// As with GetAll, unpublished recipes are returned on a miss only.
func (c *CachedRecipes) SearchByMode(ctx context.Context, mode *string, keywords ...string) ([]recipe.Recipe, error) {
	key := c.keys.Normalize(cache.QueryFilter{Keywords: keywords, Mode: mode})
	c.tracker.Track(key)

	normalizedMode := cache.NormalizeMode(mode)
	tokens := cache.KeywordTokens(keywords...)
	return cache.GetOrComputeList[recipe.Recipe](ctx, c.service, key, c.searchTTL, func(ctx context.Context) ([]recipe.Recipe, error) {
		return c.base.List(ctx, recipe.ByMode(normalizedMode), recipe.ByKeywords(tokens))
	})
}

// GetDetail returns a recipe with its nutrition facts. The recipe is cached;
// the nutrition facts are read from the repository on every call.
func (c *CachedRecipes) GetDetail(ctx context.Context, id int64) (*recipe.Detail, error) {
	rec, err := cache.GetOrCompute[*recipe.Recipe](ctx, c.service, c.keys.DetailKey(id), c.detailTTL, func(ctx context.Context) (*recipe.Recipe, error) {
		return c.base.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	facts, err := c.base.Nutrition(ctx, id)
	if err != nil {
		return nil, err
	}
	return &recipe.Detail{Recipe: rec, Nutrition: facts}, nil
}

// Create inserts rec and sweeps.
func (c *CachedRecipes) Create(ctx context.Context, rec *recipe.Recipe) error {
	if err := c.base.Create(ctx, rec); err != nil {
		return err
	}
	c.sweeper.OnMutation(ctx, Scope{RecipeIDs: []int64{rec.ID}})
	return nil
}

// Update writes rec and sweeps.
func (c *CachedRecipes) Update(ctx context.Context, rec *recipe.Recipe) error {
	if err := c.base.Update(ctx, rec); err != nil {
		return err
	}
	c.sweeper.OnMutation(ctx, Scope{RecipeIDs: []int64{rec.ID}})
	return nil
}

// AttachIngredient adds ingredient to a recipe and sweeps.
func (c *CachedRecipes) AttachIngredient(ctx context.Context, recipeID int64, ingredient *recipe.Ingredient) error {
	if err := c.base.AttachIngredient(ctx, recipeID, ingredient); err != nil {
		return err
	}
	c.sweeper.OnMutation(ctx, Scope{RecipeIDs: []int64{recipeID}})
	return nil
}

// Delete removes a recipe and sweeps.
func (c *CachedRecipes) Delete(ctx context.Context, id int64) error {
	if err := c.base.Delete(ctx, id); err != nil {
		return err
	}
	c.sweeper.OnMutation(ctx, Scope{RecipeIDs: []int64{id}})
	return nil
}

// ImportResult reports an Import call.
type ImportResult struct {
	Created []int64
	Failed  int
	Sweep   SweepReport
}

// Import creates one recipe per record, mapping fields through
// recipe.FieldSetters. Invalid records are skipped and reported in the
// joined error; the others are created. A single sweep runs once all
// records are processed.
func (c *CachedRecipes) Import(ctx context.Context, records []map[string]string) (ImportResult, error) {
	var (
		result ImportResult
		errs   []error
	)

	for i, fields := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		rec, err := recipe.FromFields(fields)
		if err == nil {
			err = c.base.Create(ctx, rec)
		}
		if err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		result.Created = append(result.Created, rec.ID)
	}

	if len(result.Created) > 0 {
		result.Sweep = c.sweeper.OnMutation(ctx, Scope{RecipeIDs: result.Created})
	}

	c.logger.Info("recipes imported",
		zap.Int("records", len(records)),
		zap.Int("created", len(result.Created)),
		zap.Int("failed", result.Failed),
	)
	return result, errors.Join(errs...)
}
