package syncqueue

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/minio/highwayhash"
	log "github.com/sirupsen/logrus"
)

// highwayHashKey is a fixed, arbitrary 32-byte key: fingerprints are only
// ever compared to each other within this process, never persisted or
// compared across restarts, so a random key per process would work just
// as well — a fixed one just avoids needing a source of randomness here.
var highwayHashKey = [32]byte{
	0x4d, 0x79, 0x4e, 0x6f, 0x53, 0x51, 0x4c, 0x53,
	0x44, 0x4b, 0x2d, 0x73, 0x79, 0x6e, 0x63, 0x2d,
	0x71, 0x75, 0x65, 0x75, 0x65, 0x2d, 0x66, 0x69,
	0x6e, 0x67, 0x65, 0x72, 0x70, 0x72, 0x69, 0x6e,
}

// Batch is one drained snapshot of all four sync queues, tagged with a
// UUID so downstream logs and the master node's own acknowledgement can
// refer to it unambiguously.
type Batch struct {
	ID uuid.UUID

	PartitionsLastRead   []PartitionLastReadUpdate
	RowsLastRead         []RowLastReadUpdate
	PartitionsExpiration []PartitionExpirationUpdate
	RowsExpiration       []RowExpirationUpdate
}

// IsEmpty reports whether the batch carries no updates at all.
func (b Batch) IsEmpty() bool {
	return len(b.PartitionsLastRead) == 0 &&
		len(b.RowsLastRead) == 0 &&
		len(b.PartitionsExpiration) == 0 &&
		len(b.RowsExpiration) == 0
}

// fingerprint computes a content hash of the batch's updates, used only
// to detect and skip sending an exact repeat of the immediately prior
// batch (e.g. a quiet period where the same handful of partitions keep
// reporting the same last-read moment against a ticking clock that never
// actually advances their Moment field, which happens in tests and idle
// deployments alike).
func (b Batch) fingerprint() uint64 {
	var buf []byte
	for _, u := range b.PartitionsLastRead {
		buf = appendFingerprintFields(buf, u.PartitionKey, "", int64(u.Moment), false)
	}
	for _, u := range b.RowsLastRead {
		buf = appendFingerprintFields(buf, u.PartitionKey, u.RowKey, int64(u.Moment), false)
	}
	for _, u := range b.PartitionsExpiration {
		buf = appendFingerprintFields(buf, u.PartitionKey, "", int64(u.Expires), u.HasExpires)
	}
	for _, u := range b.RowsExpiration {
		buf = appendFingerprintFields(buf, u.PartitionKey, u.RowKey, int64(u.Expires), u.HasExpires)
	}
	return highwayhash.Sum64(buf, highwayHashKey[:])
}

func appendFingerprintFields(buf []byte, partitionKey, rowKey string, moment int64, flag bool) []byte {
	buf = append(buf, partitionKey...)
	buf = append(buf, 0)
	buf = append(buf, rowKey...)
	buf = append(buf, 0)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(moment))
	buf = append(buf, tmp[:]...)
	if flag {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// Flusher periodically drains a Queues into Batches and hands each
// non-empty, non-repeated batch to onFlush. Grounded on
// go/consumer/store.go's goroutine-driven read loop and
// go/runtime/ops.go's logrus field-per-event style.
type Flusher struct {
	queues   *Queues
	interval time.Duration
	onFlush  func(Batch)

	lastFingerprint uint64
	haveFingerprint bool
}

// NewFlusher constructs a Flusher that drains queues every interval and
// passes each resulting batch to onFlush. An interval of 0 is normalized
// to a 100ms minimum poll tick (the "Immediately"/"Asap" sync periods
// still need some tick to drive the drain loop; they just use the
// shortest one).
func NewFlusher(queues *Queues, interval time.Duration, onFlush func(Batch)) *Flusher {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Flusher{queues: queues, interval: interval, onFlush: onFlush}
}

// Run drains on every tick until ctx is canceled.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.flushOnce()
		}
	}
}

func (f *Flusher) flushOnce() {
	batch := f.queues.drainAll()
	if batch.IsEmpty() {
		return
	}

	fp := batch.fingerprint()
	if f.haveFingerprint && fp == f.lastFingerprint {
		log.WithField("batch_fingerprint", fp).Debug("skipping repeated sync-to-main batch")
		return
	}
	f.lastFingerprint = fp
	f.haveFingerprint = true

	batch.ID = uuid.New()

	log.WithFields(log.Fields{
		"batch_id":              batch.ID,
		"partitions_last_read":  len(batch.PartitionsLastRead),
		"rows_last_read":        len(batch.RowsLastRead),
		"partitions_expiration": len(batch.PartitionsExpiration),
		"rows_expiration":       len(batch.RowsExpiration),
	}).Debug("flushing sync-to-main batch")

	f.onFlush(batch)
}
