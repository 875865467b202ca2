package repositorycache

import (
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// KeyTracker records the search keys handed out since the last sweep, so a
// sweep can also remove keyword combinations it could not enumerate.
//
// Tracking happens when a key is requested, not when it is written. A read
// whose write-back lands after a Drain leaves an entry nobody tracks until
// the key is requested again; that entry expires through its TTL.
//
// The tracker holds a bounded number of keys. Keys requested beyond that are not
// recorded; the tracker reports the overflow on the next Drain so the caller
// can drop the whole namespace instead.
type KeyTracker struct {
	keys       *xsync.MapOf[string, struct{}]
	maxKeys    int
	overflowed atomic.Bool
}

// NewKeyTracker returns an empty tracker holding at most maxKeys keys. A
// non-positive maxKeys disables the bound.
func NewKeyTracker(maxKeys int) *KeyTracker {
	return &KeyTracker{keys: xsync.NewMapOf[string, struct{}](), maxKeys: maxKeys}
}

// Track registers key. A nil tracker ignores it.
func (t *KeyTracker) Track(key string) {
	if t == nil {
		return
	}
	if t.maxKeys > 0 && t.keys.Size() >= t.maxKeys {
		if _, ok := t.keys.Load(key); !ok {
			t.overflowed.Store(true)
		}
		return
	}
	t.keys.Store(key, struct{}{})
}

// Drain returns the tracked keys in sorted order and forgets them, along
// with whether any key was dropped since the previous Drain. Keys tracked
// concurrently with Drain are kept for the next one.
func (t *KeyTracker) Drain() ([]string, bool) {
	if t == nil {
		return nil, false
	}
	overflowed := t.overflowed.Swap(false)
	var keys []string
	t.keys.Range(func(key string, _ struct{}) bool {
		if _, loaded := t.keys.LoadAndDelete(key); loaded {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys, overflowed
}

// Len returns the number of tracked keys.
func (t *KeyTracker) Len() int {
	if t == nil {
		return 0
	}
	return t.keys.Size()
}
