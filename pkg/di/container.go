package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	"github.com/goliatone/go-query-cache/recipe"
	"github.com/goliatone/go-query-cache/repositorycache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MetricsNamespace prefixes every metric of the container registry.
const MetricsNamespace = "querycache"

// Container wires the query layer: logger, metrics, cache store, cache
// service, backing store, cached repository, sweeper and prepopulator.
type Container struct {
	config   Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *cache.Metrics
	store    cache.Store
	service  *cache.Service
	db       *bun.DB
	base     *recipe.BunRepository
	recipes  *repositorycache.CachedRecipes
	warmer   *repositorycache.Prepopulator

	closers []func() error
}

// ContainerOption customizes NewContainer.
type ContainerOption func(*Container)

// WithLogger replaces the logger built from the log section.
func WithLogger(logger *zap.Logger) ContainerOption {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithStore replaces the cache store selected by the store section.
func WithStore(store cache.Store) ContainerOption {
	return func(c *Container) {
		c.store = store
	}
}

// WithDB replaces the database opened from the database section. The
// container does not close it.
func WithDB(db *bun.DB) ContainerOption {
	return func(c *Container) {
		c.db = db
	}
}

// NewContainer validates config and builds every component.
func NewContainer(config Config, opts ...ContainerOption) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: config}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logger, err := NewLogger(config.Log)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		c.logger = logger
	}

	c.registry = prometheus.NewRegistry()
	c.metrics = cache.NewMetrics(MetricsNamespace, c.registry)

	if c.store == nil {
		store, closer, err := NewStore(config, c.logger)
		if err != nil {
			return nil, err
		}
		c.store = store
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}

	if c.db == nil {
		db, err := recipe.OpenDB(config.Database.Driver, config.Database.DSN)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.db = db
		c.closers = append(c.closers, db.Close)
	}

	c.service = cache.NewServiceFromConfig(c.store, config.Cache,
		cache.WithLogger(c.logger.Named("cache")),
		cache.WithMetrics(c.metrics),
	)
	c.base = recipe.NewBunRepository(c.db)
	c.recipes = repositorycache.New(c.base, c.service, config.Cache,
		repositorycache.WithLogger(c.logger.Named("recipes")),
		repositorycache.WithMetrics(c.metrics),
	)
	c.warmer = repositorycache.NewPrepopulator(c.recipes, config.Cache, c.logger.Named("warm"), c.metrics)

	return c, nil
}

// NewContainerWithDefaults builds a container from DefaultConfig.
func NewContainerWithDefaults(opts ...ContainerOption) (*Container, error) {
	return NewContainer(DefaultConfig(), opts...)
}

// NewStore builds the cache store selected by config. The returned closer
// may be nil.
func NewStore(config Config, logger *zap.Logger) (cache.Store, func() error, error) {
	switch config.Store {
	case StoreRedis:
		store, err := cacheinfra.NewRedisStore(config.Redis, logger.Named("redis"))
		if err != nil {
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return store, store.Close, nil
	case StoreMemory:
		store, err := cacheinfra.NewMemoryStore(config.Memory)
		if err != nil {
			return nil, nil, fmt.Errorf("memory store: %w", err)
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache store %q", config.Store)
	}
}

// Config returns the configuration the container was built with.
func (c *Container) Config() Config {
	return c.config
}

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Registry returns the prometheus registry holding the cache metrics.
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Metrics returns the cache metrics.
func (c *Container) Metrics() *cache.Metrics {
	return c.metrics
}

// Store returns the cache store.
func (c *Container) Store() cache.Store {
	return c.store
}

// Service returns the cache service.
func (c *Container) Service() *cache.Service {
	return c.service
}

// DB returns the backing database.
func (c *Container) DB() *bun.DB {
	return c.db
}

// Repository returns the uncached recipe repository.
func (c *Container) Repository() *recipe.BunRepository {
	return c.base
}

// Recipes returns the cached recipe repository.
func (c *Container) Recipes() *repositorycache.CachedRecipes {
	return c.recipes
}

// Sweeper returns the sweeper run after mutations.
func (c *Container) Sweeper() *repositorycache.Sweeper {
	return c.recipes.Sweeper()
}

// Prepopulator returns the cache warmer.
func (c *Container) Prepopulator() *repositorycache.Prepopulator {
	return c.warmer
}

// Migrate creates the backing tables.
func (c *Container) Migrate(ctx context.Context) error {
	return recipe.Migrate(ctx, c.db)
}

// Close releases the resources the container opened, in reverse order.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return errors.Join(errs...)
}
