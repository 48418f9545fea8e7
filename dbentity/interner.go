package dbentity

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultInternerSize bounds the number of distinct PartitionKey strings
// the interner retains; partitions outside this working set simply miss
// the cache and allocate normally, they are never penalized beyond that.
const defaultInternerSize = 4096

// Interner deduplicates PartitionKey strings across Rows in the same
// partition, so a busy partition's thousands of Rows share one backing
// string rather than each carrying its own copy of an identical key. This
// is the same tradeoff go/network/frontend.go makes with its SNI
// resolution cache: a small bounded LRU in front of a cost that would
// otherwise be paid on every hot-path call.
type Interner struct {
	cache *lru.Cache[string, string]
}

// NewInterner constructs an Interner with the default capacity.
func NewInterner() *Interner {
	return NewInternerSize(defaultInternerSize)
}

// NewInternerSize constructs an Interner retaining at most size distinct
// strings.
func NewInternerSize(size int) *Interner {
	cache, err := lru.New[string, string](size)
	if err != nil {
		// Only returns an error for a non-positive size; defaultInternerSize
		// and any caller-supplied positive size never hit this.
		panic(err)
	}
	return &Interner{cache: cache}
}

// Intern returns the canonical string equal to s, either a cached prior
// value or s itself, retained for future calls.
func (in *Interner) Intern(s string) string {
	if v, ok := in.cache.Get(s); ok {
		return v
	}
	in.cache.Add(s, s)
	return s
}
