// Package syncqueue implements the replica-to-master metadata sync
// queues: four coalescing, non-blocking, monotonic-overwrite queues that
// batch up partition/row last-read and expiration changes between flush
// ticks, so a busy read replica reports "this partition was read 10,000
// times in the last second" as one update, not 10,000. Grounded on
// sync_to_main/mod.rs's four queue modules
// (update_partitions_last_read_time_queue, update_rows_last_read_time_queue,
// update_partition_expiration_time_queue, update_rows_expiration_time_queue).
package syncqueue

import (
	"sync"

	"github.com/mynosql/dbcore/microtime"
)

// PartitionLastReadUpdate reports the latest last-read moment observed
// for a partition.
type PartitionLastReadUpdate struct {
	PartitionKey string
	Moment       microtime.Micros
}

// RowLastReadUpdate reports the latest last-read moment observed for a
// single row.
type RowLastReadUpdate struct {
	PartitionKey string
	RowKey       string
	Moment       microtime.Micros
}

// PartitionExpirationUpdate reports a partition's current Expires value.
type PartitionExpirationUpdate struct {
	PartitionKey string
	Expires      microtime.Micros
	HasExpires   bool
}

// RowExpirationUpdate reports a single row's current Expires value.
type RowExpirationUpdate struct {
	PartitionKey string
	RowKey       string
	Expires      microtime.Micros
	HasExpires   bool
}

type rowIdentity struct {
	PartitionKey string
	RowKey       string
}

// coalescingQueue retains at most one pending value per key: a later Push
// for a key already pending overwrites it rather than appending, since
// only the newest last-read/expiration value for a given entity is ever
// worth reporting upstream. When momentOf is set, overwrite is monotonic:
// a pending value is replaced only if the incoming one is strictly newer
// (§4.8 — the two last-read queues must never regress a moment backward
// because of reordered concurrent reads). When momentOf is nil, overwrite
// is unconditional last-writer-wins (the two expiration queues: a row's
// current Expires can legitimately move to an earlier moment than what
// was last queued, e.g. a caller shortening it, and that must still win).
type coalescingQueue[K comparable, V any] struct {
	mu       sync.Mutex
	pending  map[K]V
	momentOf func(V) microtime.Micros
}

func newCoalescingQueue[K comparable, V any]() *coalescingQueue[K, V] {
	return &coalescingQueue[K, V]{pending: make(map[K]V)}
}

func newMonotonicCoalescingQueue[K comparable, V any](momentOf func(V) microtime.Micros) *coalescingQueue[K, V] {
	return &coalescingQueue[K, V]{pending: make(map[K]V), momentOf: momentOf}
}

func (q *coalescingQueue[K, V]) push(key K, value V) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.momentOf != nil {
		if existing, ok := q.pending[key]; ok && q.momentOf(existing) >= q.momentOf(value) {
			return
		}
	}
	q.pending[key] = value
}

// drain returns every pending value and empties the queue. Never blocks.
func (q *coalescingQueue[K, V]) drain() []V {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	result := make([]V, 0, len(q.pending))
	for _, v := range q.pending {
		result = append(result, v)
	}
	q.pending = make(map[K]V, len(q.pending))
	return result
}

func (q *coalescingQueue[K, V]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Queues bundles the four sync-to-main queues a read replica feeds and a
// flush loop later drains.
type Queues struct {
	partitionsLastRead   *coalescingQueue[string, PartitionLastReadUpdate]
	rowsLastRead         *coalescingQueue[rowIdentity, RowLastReadUpdate]
	partitionsExpiration *coalescingQueue[string, PartitionExpirationUpdate]
	rowsExpiration       *coalescingQueue[rowIdentity, RowExpirationUpdate]
}

// NewQueues constructs an empty set of sync queues.
func NewQueues() *Queues {
	return &Queues{
		partitionsLastRead: newMonotonicCoalescingQueue(func(v PartitionLastReadUpdate) microtime.Micros {
			return v.Moment
		}),
		rowsLastRead: newMonotonicCoalescingQueue(func(v RowLastReadUpdate) microtime.Micros {
			return v.Moment
		}),
		partitionsExpiration: newCoalescingQueue[string, PartitionExpirationUpdate](),
		rowsExpiration:       newCoalescingQueue[rowIdentity, RowExpirationUpdate](),
	}
}

// PushPartitionLastRead records that partitionKey was read at moment.
func (q *Queues) PushPartitionLastRead(partitionKey string, moment microtime.Micros) {
	q.partitionsLastRead.push(partitionKey, PartitionLastReadUpdate{PartitionKey: partitionKey, Moment: moment})
}

// PushRowLastRead records that a row was read at moment.
func (q *Queues) PushRowLastRead(partitionKey, rowKey string, moment microtime.Micros) {
	id := rowIdentity{PartitionKey: partitionKey, RowKey: rowKey}
	q.rowsLastRead.push(id, RowLastReadUpdate{PartitionKey: partitionKey, RowKey: rowKey, Moment: moment})
}

// PushPartitionExpiration records a partition's current Expires value.
func (q *Queues) PushPartitionExpiration(partitionKey string, expires microtime.Micros, hasExpires bool) {
	q.partitionsExpiration.push(partitionKey, PartitionExpirationUpdate{
		PartitionKey: partitionKey,
		Expires:      expires,
		HasExpires:   hasExpires,
	})
}

// PushRowExpiration records a row's current Expires value.
func (q *Queues) PushRowExpiration(partitionKey, rowKey string, expires microtime.Micros, hasExpires bool) {
	id := rowIdentity{PartitionKey: partitionKey, RowKey: rowKey}
	q.rowsExpiration.push(id, RowExpirationUpdate{
		PartitionKey: partitionKey,
		RowKey:       rowKey,
		Expires:      expires,
		HasExpires:   hasExpires,
	})
}

// Pending reports how many entries are currently queued in each sub-queue,
// useful for metrics and tests.
func (q *Queues) Pending() (partitionsLastRead, rowsLastRead, partitionsExpiration, rowsExpiration int) {
	return q.partitionsLastRead.len(), q.rowsLastRead.len(), q.partitionsExpiration.len(), q.rowsExpiration.len()
}

// drainAll drains all four queues into a Batch. Exposed to flush.go only.
func (q *Queues) drainAll() Batch {
	return Batch{
		PartitionsLastRead:   q.partitionsLastRead.drain(),
		RowsLastRead:         q.rowsLastRead.drain(),
		PartitionsExpiration: q.partitionsExpiration.drain(),
		RowsExpiration:       q.rowsExpiration.drain(),
	}
}
