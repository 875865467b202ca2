package repositorycache

import (
	"context"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WarmReport summarizes one prepopulation run.
type WarmReport struct {
	Queries  int
	Failed   int
	Duration time.Duration
}

// Prepopulator runs the queries a sweep invalidates so the first users after
// a deploy or a mutation hit a warm cache.
type Prepopulator struct {
	recipes     *CachedRecipes
	modes       []string
	filters     []string
	concurrency int
	logger      *zap.Logger
	metrics     *cache.Metrics
}

// NewPrepopulator returns a prepopulator over the known modes and filters
// of cfg.
func NewPrepopulator(recipes *CachedRecipes, cfg cache.Config, logger *zap.Logger, metrics *cache.Metrics) *Prepopulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.WarmConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Prepopulator{
		recipes:     recipes,
		modes:       cfg.KnownModes,
		filters:     cfg.KnownFilters,
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

type warmQuery struct {
	mode   *string
	filter string
	all    bool
}

func (p *Prepopulator) queries() []warmQuery {
	queries := []warmQuery{{all: true}}
	modes := make([]*string, 0, len(p.modes)+1)
	for i := range p.modes {
		modes = append(modes, &p.modes[i])
	}
	modes = append(modes, nil)

	for _, mode := range modes {
		for _, filter := range append(append([]string(nil), p.filters...), "") {
			queries = append(queries, warmQuery{mode: mode, filter: filter})
		}
	}
	return queries
}

// Warm runs every query once. Failures are logged and counted; Warm never
// fails as a whole and stops early only when ctx is done.
func (p *Prepopulator) Warm(ctx context.Context) WarmReport {
	start := time.Now()
	queries := p.queries()
	failed := make([]bool, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, q := range queries {
		if gctx.Err() != nil {
			failed[i] = true
			continue
		}
		g.Go(func() error {
			var err error
			if q.all {
				_, err = p.recipes.GetAll(gctx)
			} else {
				_, err = p.recipes.SearchByMode(gctx, q.mode, q.filter)
			}
			p.metrics.WarmResult(err)
			if err != nil {
				failed[i] = true
				p.logger.Warn("warm query failed",
					zap.String("mode", cache.NormalizeMode(q.mode)),
					zap.String("filter", q.filter),
					zap.Error(err),
				)
			}
			// individual failures must not cancel the remaining queries
			return nil
		})
	}
	_ = g.Wait()

	report := WarmReport{Queries: len(queries), Duration: time.Since(start)}
	for _, f := range failed {
		if f {
			report.Failed++
		}
	}

	p.logger.Info("cache warmed",
		zap.Int("queries", report.Queries),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report
}
