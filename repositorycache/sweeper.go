package repositorycache

import (
	"context"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scope names the entities touched by a mutation.
type Scope struct {
	RecipeIDs []int64
}

// SweepReport summarizes one invalidation sweep.
type SweepReport struct {
	ID         string
	Attempted  int
	Removed    int
	Failed     int
	FailedKeys []string
	// Flushed is set when the key tracker overflowed and the namespace was
	// dropped as a whole.
	Flushed    bool
	Duration   time.Duration
}

// Sweeper removes every cache key a mutation may have made stale: the
// unfiltered aggregate, the cross product of known modes and known filters,
// the detail keys of the touched entities and, when tracking is on, every
// search key issued since the previous sweep. Other keyword combinations
// expire through their TTL.
type Sweeper struct {
	service *cache.Service
	keys    cache.KeyNormalizer
	modes   []string
	filters []string
	tracker *KeyTracker
	logger  *zap.Logger
	metrics *cache.Metrics
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepLogger sets the sweep logger.
func WithSweepLogger(logger *zap.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweepMetrics records removal outcomes on m.
func WithSweepMetrics(m *cache.Metrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithTracker also sweeps the keys recorded by tracker.
func WithTracker(tracker *KeyTracker) SweeperOption {
	return func(s *Sweeper) {
		s.tracker = tracker
	}
}

// NewSweeper returns a sweeper over the known modes and filters.
func NewSweeper(service *cache.Service, keys cache.KeyNormalizer, modes, filters []string, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		service: service,
		keys:    keys,
		modes:   append([]string(nil), modes...),
		filters: append([]string(nil), filters...),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchKeys returns the deduplicated search keys spanned by
// {known modes, all} x {known filters, no filter}, in a stable order.
func (s *Sweeper) SearchKeys() []string {
	modes := append(append([]string(nil), s.modes...), cache.ModeAll)
	filters := append(append([]string(nil), s.filters...), "")

	seen := make(map[string]struct{}, len(modes)*len(filters))
	keys := make([]string, 0, len(modes)*len(filters))
	for _, mode := range modes {
		mode := mode
		for _, filter := range filters {
			key := s.keys.SearchKey(&mode, filter)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

// Keys returns every key a sweep for scope removes, excluding tracked keys.
func (s *Sweeper) Keys(scope Scope) []string {
	keys := []string{s.keys.AllKey()}
	keys = append(keys, s.SearchKeys()...)
	for _, id := range scope.RecipeIDs {
		keys = append(keys, s.keys.DetailKey(id))
	}
	return dedupeStrings(keys)
}

// OnMutation removes the stale keys for scope. Every key is removed
// independently; failures are logged by the cache service and counted in
// the report, never returned. When the key tracker dropped keys since the
// last sweep, the namespace is flushed as well.
func (s *Sweeper) OnMutation(ctx context.Context, scope Scope) SweepReport {
	start := time.Now()
	report := SweepReport{ID: uuid.NewString()}

	keys := s.Keys(scope)
	tracked, overflowed := s.tracker.Drain()
	keys = dedupeStrings(append(keys, tracked...))

	for _, key := range keys {
		report.Attempted++
		if err := s.service.Remove(ctx, key); err != nil {
			report.Failed++
			report.FailedKeys = append(report.FailedKeys, key)
			s.metrics.SweepResult(false)
			continue
		}
		report.Removed++
		s.metrics.SweepResult(true)
	}

	if overflowed {
		n, err := s.service.RemovePrefix(ctx, s.namespacePrefix())
		if err != nil {
			s.logger.Warn("tracked keys overflowed and the namespace could not be flushed",
				zap.String("sweep_id", report.ID),
				zap.Error(err),
			)
		} else {
			report.Flushed = true
			report.Removed += n
		}
	}
	report.Duration = time.Since(start)

	fields := []zap.Field{
		zap.String("sweep_id", report.ID),
		zap.Int64s("recipe_ids", scope.RecipeIDs),
		zap.Int("attempted", report.Attempted),
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed),
		zap.Bool("flushed", report.Flushed),
		zap.Duration("duration", report.Duration),
	}
	if report.Failed > 0 {
		s.logger.Warn("cache sweep incomplete", append(fields, zap.Strings("failed_keys", report.FailedKeys))...)
	} else {
		s.logger.Info("cache sweep", fields...)
	}
	return report
}

// Flush drops the whole namespace when the store can enumerate keys.
func (s *Sweeper) Flush(ctx context.Context) (int, error) {
	s.tracker.Drain()
	return s.service.RemovePrefix(ctx, s.namespacePrefix())
}

func (s *Sweeper) namespacePrefix() string {
	return s.keys.Namespace() + cache.KeySeparator
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
