package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config exposes the query layer configuration.
type Config struct {
	// Namespace prefixes every key. Empty uses the entity type name.
	Namespace string `yaml:"namespace"`

	// DetailTTL applies to single entity lookups.
	DetailTTL time.Duration `yaml:"detail_ttl"`

	// SearchTTL applies to aggregate and search results, which cost more to
	// recompute than detail lookups.
	SearchTTL time.Duration `yaml:"search_ttl"`

	// MaxPayloadBytes is the serialized size ceiling for cacheable values.
	MaxPayloadBytes int `yaml:"max_payload_bytes"`

	// OperationTimeout bounds every call to the cache backend.
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// Codec is "msgpack" or "json".
	Codec string `yaml:"codec"`

	// KnownModes and KnownFilters span the keys swept after a mutation and
	// warmed by the prepopulator. "all" and the empty filter are implied.
	KnownModes   []string `yaml:"known_modes"`
	KnownFilters []string `yaml:"known_filters"`

	// TrackKeys records every issued search key in process so sweeps also
	// remove keyword combinations outside KnownFilters.
	TrackKeys bool `yaml:"track_keys"`

	// MaxTrackedKeys bounds the tracked key set. Once it is full the next
	// sweep drops the whole namespace. Zero means unbounded.
	MaxTrackedKeys int `yaml:"max_tracked_keys"`

	// WarmConcurrency bounds the number of queries the prepopulator runs at
	// once.
	WarmConcurrency int `yaml:"warm_concurrency"`
}

// DefaultConfig returns a Config populated with the reference policy.
func DefaultConfig() Config {
	return Config{
		DetailTTL:        10 * time.Hour,
		SearchTTL:        24 * time.Hour,
		MaxPayloadBytes:  DefaultMaxPayloadBytes,
		OperationTimeout: 500 * time.Millisecond,
		Codec:            "msgpack",
		KnownModes:       []string{"user", "cookbook"},
		KnownFilters: []string{
			"Breakfast",
			"Lunch",
			"Dinner",
			"Dessert",
			"Vegetarian",
			"Chicken",
			"Pasta",
		},
		MaxTrackedKeys:  10000,
		WarmConcurrency: 4,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DetailTTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.SearchTTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.MaxPayloadBytes, validation.Required, validation.Min(1)),
		validation.Field(&c.OperationTimeout, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.Codec, validation.In("msgpack", "json")),
		validation.Field(&c.KnownModes, validation.Each(validation.Required)),
		validation.Field(&c.MaxTrackedKeys, validation.Min(0)),
		validation.Field(&c.WarmConcurrency, validation.Required, validation.Min(1)),
	)
}
