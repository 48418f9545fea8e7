// Package expindex implements the time-bucketed expiration index shared by
// partitions (rows expiring within a partition) and tables (partitions
// expiring within a table). Entries are grouped into buckets keyed by
// exact expiration moment, kept sorted ascending, so a GC sweep can walk
// the prefix of buckets at or before "now" and stop at the first bucket
// still in the future.
package expindex

import (
	"sort"

	"github.com/mynosql/dbcore/microtime"
)

// Item is anything that can be tracked in an expiration index: something
// identifiable by a stable string id, with an optional expiration moment.
type Item interface {
	GetIDAsStr() string
	GetExpirationMoment() (microtime.Micros, bool)
}

type bucket[T Item] struct {
	moment microtime.Micros
	items  []T
}

// Index is a sorted sequence of expiration buckets plus a precise count of
// indexed items. Not safe for concurrent use without an external lock; the
// owning Partition/Table serializes access the same way it serializes all
// other writes to its row/partition containers.
type Index[T Item] struct {
	buckets []bucket[T]
	amount  int
}

// New constructs an empty Index.
func New[T Item]() *Index[T] {
	return &Index[T]{}
}

func (idx *Index[T]) findBucket(moment microtime.Micros) (int, bool) {
	i := sort.Search(len(idx.buckets), func(i int) bool {
		return idx.buckets[i].moment >= moment
	})
	if i < len(idx.buckets) && idx.buckets[i].moment == moment {
		return i, true
	}
	return i, false
}

// Add indexes item under its current expiration moment. Items with no
// expiration moment are not indexed. Unlike the original implementation,
// re-adding an id already present in its target bucket is a no-op: Len
// only ever counts each currently-indexed id once (this is the fix for
// the amount-double-count behavior the original exhibited on duplicate
// adds without an intervening remove).
func (idx *Index[T]) Add(item T) {
	moment, ok := item.GetExpirationMoment()
	if !ok {
		return
	}

	i, found := idx.findBucket(moment)
	if found {
		for _, existing := range idx.buckets[i].items {
			if existing.GetIDAsStr() == item.GetIDAsStr() {
				return
			}
		}
		idx.buckets[i].items = append(idx.buckets[i].items, item)
		idx.amount++
		return
	}

	idx.buckets = append(idx.buckets, bucket[T]{})
	copy(idx.buckets[i+1:], idx.buckets[i:])
	idx.buckets[i] = bucket[T]{moment: moment, items: []T{item}}
	idx.amount++
}

// Update moves itm from oldExpires (if hadOld) to its current expiration
// moment, as reported by itm.GetExpirationMoment().
func (idx *Index[T]) Update(oldExpires microtime.Micros, hadOld bool, itm T) {
	if hadOld {
		idx.doRemove(oldExpires, itm.GetIDAsStr())
	}
	idx.Add(itm)
}

// Remove removes itm from the index at its current expiration moment.
func (idx *Index[T]) Remove(itm T) {
	moment, ok := itm.GetExpirationMoment()
	if !ok {
		return
	}
	idx.doRemove(moment, itm.GetIDAsStr())
}

func (idx *Index[T]) doRemove(moment microtime.Micros, idAsStr string) {
	i, found := idx.findBucket(moment)
	if !found {
		return
	}

	items := idx.buckets[i].items
	kept := items[:0]
	removed := false
	for _, it := range items {
		if it.GetIDAsStr() == idAsStr {
			removed = true
			continue
		}
		kept = append(kept, it)
	}

	if !removed {
		return
	}
	idx.amount--

	if len(kept) == 0 {
		idx.buckets = append(idx.buckets[:i], idx.buckets[i+1:]...)
		return
	}
	idx.buckets[i].items = kept
}

// ItemsToExpire returns transform(item) for every indexed item whose
// expiration moment is at or before now, in bucket (moment) order.
func ItemsToExpire[T Item, R any](idx *Index[T], now microtime.Micros, transform func(T) R) []R {
	var result []R
	for _, b := range idx.buckets {
		if b.moment > now {
			break
		}
		for _, item := range b.items {
			result = append(result, transform(item))
		}
	}
	return result
}

// HasDataWithExpirationMoment reports whether any item is indexed at
// exactly the given moment.
func (idx *Index[T]) HasDataWithExpirationMoment(moment microtime.Micros) bool {
	_, found := idx.findBucket(moment)
	return found
}

// Len returns the exact count of currently-indexed items.
func (idx *Index[T]) Len() int {
	return idx.amount
}

// Clear empties the index.
func (idx *Index[T]) Clear() {
	idx.buckets = nil
	idx.amount = 0
}
