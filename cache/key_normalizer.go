package cache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// KeywordDelimiter separates tokens in a raw and in a normalized keyword list.
const KeywordDelimiter = ","

// ModeAll is the normalized value of an absent mode selector.
const ModeAll = "all"

// MaxKeywordSegment bounds the normalized keyword segment of a key. Longer
// segments are replaced by a digest so keys stay short on the remote cache.
const MaxKeywordSegment = 200

const digestMarker = "#"

// segmentEscaper makes every variable segment free of the key separator and
// of the digest marker, so distinct filters can never produce the same key.
var segmentEscaper = strings.NewReplacer(
	"%", "%25",
	KeySeparator, "%3A",
	digestMarker, "%23",
)

// QueryFilter is the user supplied search filter.
// Keywords may hold comma separated lists; Mode is optional.
type QueryFilter struct {
	Keywords []string
	Mode     *string
}

// KeyNormalizer turns query filters into canonical cache keys under a
// fixed namespace.
type KeyNormalizer struct {
	namespace string
}

// NewKeyNormalizer returns a normalizer producing keys under namespace.
func NewKeyNormalizer(namespace string) KeyNormalizer {
	return KeyNormalizer{namespace: strings.TrimSuffix(namespace, KeySeparator)}
}

// Namespace returns the key prefix shared by every key of this normalizer.
func (n KeyNormalizer) Namespace() string {
	return n.namespace
}

// Normalize returns the search key for filter. Filters with the same keyword
// set (ignoring case, order, spacing and duplicates) and the same mode yield
// the same key.
func (n KeyNormalizer) Normalize(filter QueryFilter) string {
	return n.SearchKey(filter.Mode, filter.Keywords...)
}

// SearchKey builds the key of a search result.
func (n KeyNormalizer) SearchKey(mode *string, keywords ...string) string {
	return strings.Join([]string{
		n.namespace,
		"search",
		escapeSegment(NormalizeMode(mode)),
		keywordSegment(NormalizeKeywords(keywords...)),
	}, KeySeparator)
}

// AllKey is the key of the unfiltered "all entities" aggregate.
func (n KeyNormalizer) AllKey() string {
	return n.namespace + KeySeparator + "all"
}

// DetailKey is the key of a single entity lookup.
func (n KeyNormalizer) DetailKey(id int64) string {
	return n.namespace + KeySeparator + "detail" + KeySeparator + strconv.FormatInt(id, 10)
}

// NormalizeKeywords canonicalizes a raw keyword list: split on commas, trim,
// lowercase, drop empties, dedupe, sort and rejoin.
func NormalizeKeywords(raw ...string) string {
	return strings.Join(KeywordTokens(raw...), KeywordDelimiter)
}

// KeywordTokens returns the sorted, deduplicated keyword set of raw.
func KeywordTokens(raw ...string) []string {
	seen := make(map[string]struct{})
	tokens := make([]string, 0, len(raw))

	for _, part := range strings.Split(strings.Join(raw, KeywordDelimiter), KeywordDelimiter) {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	sort.Strings(tokens)
	return tokens
}

// NormalizeMode maps an absent or blank mode to ModeAll and lowercases any
// other value. Unknown modes pass through.
func NormalizeMode(mode *string) string {
	if mode == nil {
		return ModeAll
	}
	normalized := strings.ToLower(strings.TrimSpace(*mode))
	if normalized == "" {
		return ModeAll
	}
	return normalized
}

func keywordSegment(normalized string) string {
	escaped := escapeSegment(normalized)
	if len(escaped) <= MaxKeywordSegment {
		return escaped
	}
	return digestMarker + strconv.FormatUint(xxhash.Sum64String(normalized), 16)
}

func escapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}
