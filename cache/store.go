package cache

import (
	"context"
	"time"
)

// Store is the narrow view of a remote key/value cache the rest of the
// module depends on. An absent key is reported as found == false with a nil
// error; any non-nil error means the backend could not answer.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// PrefixRemover is implemented by stores that can drop a whole key
// namespace at once.
type PrefixRemover interface {
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}
