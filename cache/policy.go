package cache

import "reflect"

// DefaultMaxPayloadBytes is the serialized size ceiling of a cacheable value.
const DefaultMaxPayloadBytes = 256 * 1024

// Publishable is implemented by entities that can be withheld from caches.
// Types that do not implement it are always cacheable.
type Publishable interface {
	IsPublished() bool
}

// SkipReason explains why a value was not written to the cache.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipNil         SkipReason = "nil"
	SkipEmpty       SkipReason = "empty"
	SkipOversized   SkipReason = "oversized"
	SkipUnencodable SkipReason = "unencodable"
	SkipUnpublished SkipReason = "unpublished"
)

// Policy decides which values are worth storing.
type Policy struct {
	codec           Codec
	maxPayloadBytes int
}

// NewPolicy returns a policy encoding with codec and rejecting payloads above
// maxPayloadBytes. A non-positive ceiling uses DefaultMaxPayloadBytes.
func NewPolicy(codec Codec, maxPayloadBytes int) Policy {
	if codec == nil {
		codec = MsgpackCodec{}
	}
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return Policy{codec: codec, maxPayloadBytes: maxPayloadBytes}
}

// MaxPayloadBytes returns the configured ceiling.
func (p Policy) MaxPayloadBytes() int {
	return p.maxPayloadBytes
}

// IsCacheable reports whether value may be stored.
func (p Policy) IsCacheable(value any) bool {
	_, reason := p.Encode(value)
	return reason == SkipNone
}

// Encode serializes value if it is cacheable. The returned reason is
// SkipNone exactly when the payload should be written.
func (p Policy) Encode(value any) ([]byte, SkipReason) {
	if isNil(value) {
		return nil, SkipNil
	}
	if isEmptyCollection(value) {
		return nil, SkipEmpty
	}

	payload, err := p.codec.Marshal(value)
	if err != nil {
		return nil, SkipUnencodable
	}
	if len(payload) > p.maxPayloadBytes {
		return nil, SkipOversized
	}
	return payload, SkipNone
}

// FilterCacheable drops nil items and items explicitly marked unpublished.
// The input slice is never modified.
func FilterCacheable[E any](items []E) []E {
	if items == nil {
		return nil
	}
	filtered := make([]E, 0, len(items))
	for _, item := range items {
		if isNil(item) {
			continue
		}
		if p, ok := any(item).(Publishable); ok && !p.IsPublished() {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func isEmptyCollection(value any) bool {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
