package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FetchFn computes the authoritative value from the backing store.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Service runs the cache-aside protocol over a Store. Backend failures are
// logged and turned into misses or no-op writes; they never reach callers.
// Service holds no cached data itself and is safe for concurrent use.
type Service struct {
	store   Store
	codec   Codec
	policy  Policy
	timeout time.Duration
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithCodec sets the codec used for stored payloads.
func WithCodec(codec Codec) Option {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithMaxPayloadBytes sets the cacheability size ceiling.
func WithMaxPayloadBytes(n int) Option {
	return func(s *Service) {
		s.policy = NewPolicy(nil, n)
	}
}

// WithTimeout bounds every store call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService wraps store with the cache-aside protocol.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		codec:   MsgpackCodec{},
		policy:  NewPolicy(nil, DefaultMaxPayloadBytes),
		timeout: DefaultConfig().OperationTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.policy = NewPolicy(s.codec, s.policy.MaxPayloadBytes())
	return s
}

// NewServiceFromConfig builds a Service from cfg.
func NewServiceFromConfig(store Store, cfg Config, opts ...Option) *Service {
	base := []Option{
		WithCodec(CodecByName(cfg.Codec)),
		WithMaxPayloadBytes(cfg.MaxPayloadBytes),
		WithTimeout(cfg.OperationTimeout),
	}
	return NewService(store, append(base, opts...)...)
}

// Policy returns the cacheability policy in use.
func (s *Service) Policy() Policy {
	return s.policy
}

// GetOrCompute returns the cached value under key, or computes it with fetch
// and writes it back for ttl. Fetch errors are returned unchanged; cache
// failures never are. The computed value is returned whether or not it was
// cached.
func GetOrCompute[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch FetchFn[T]) (T, error) {
	var cached T
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	// a nil *T satisfies Publishable when T has a value receiver
	if isNil(value) {
		s.metrics.skipped(SkipNil)
		return value, nil
	}
	if p, ok := any(value).(Publishable); ok && !p.IsPublished() {
		s.metrics.skipped(SkipUnpublished)
		return value, nil
	}

	s.writeBack(ctx, key, value, ttl)
	return value, nil
}

// GetOrComputeList is GetOrCompute for collections. Unpublished and nil
// items are filtered out of the stored copy only: on a miss the caller gets
// the slice fetch produced, unpublished items included, while a hit returns
// the filtered copy. Callers that must never see unpublished items filter
// the result themselves.
func GetOrComputeList[E any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch FetchFn[[]E]) ([]E, error) {
	var cached []E
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	values, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.writeBack(ctx, key, FilterCacheable(values), ttl)
	return values, nil
}

// Remove deletes key from the store. The error is already logged; callers
// use it for accounting only.
func (s *Service) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Remove(ctx, key); err != nil {
		cerr := newError("remove", key, err)
		s.report(cerr)
		return cerr
	}
	return nil
}

// RemovePrefix drops every key under prefix when the store supports it.
// The call is not bounded by the operation timeout: a namespace flush may
// touch many keys.
func (s *Service) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	remover, ok := s.store.(PrefixRemover)
	if !ok {
		return 0, ErrPrefixUnsupported
	}
	n, err := remover.RemovePrefix(ctx, prefix)
	if err != nil {
		cerr := newError("remove_prefix", prefix, err)
		s.report(cerr)
		return n, cerr
	}
	return n, nil
}

// lookup decodes the entry under key into dest. Any failure is a miss.
func (s *Service) lookup(ctx context.Context, key string, dest any) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.report(newError("get", key, err))
		s.metrics.miss()
		return false
	}
	if !found {
		s.logger.Debug("cache miss", zap.String("key", key))
		s.metrics.miss()
		return false
	}

	if err := s.codec.Unmarshal([]byte(raw), dest); err != nil {
		s.report(&Error{Op: "decode", Key: key, Kind: KindDecode, Err: err})
		s.metrics.miss()
		return false
	}

	s.metrics.hit()
	return true
}

// writeBack stores value if the policy allows it. The write is detached from
// the caller's cancellation but still bounded by the store timeout.
func (s *Service) writeBack(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, reason := s.policy.Encode(value)
	if reason != SkipNone {
		s.logger.Debug("cache write skipped",
			zap.String("key", key),
			zap.String("reason", string(reason)),
		)
		s.metrics.skipped(reason)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.store.Set(ctx, key, string(payload), ttl); err != nil {
		s.report(newError("set", key, err))
		return
	}
	s.metrics.write()
}

func (s *Service) report(err *Error) {
	s.logger.Warn("cache backend error",
		zap.String("op", err.Op),
		zap.String("key", err.Key),
		zap.String("kind", string(err.Kind)),
		zap.Error(err.Err),
	)
	s.metrics.storeError(err.Op, err.Kind)
}
