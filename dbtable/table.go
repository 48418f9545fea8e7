package dbtable

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mynosql/dbcore/dbentity"
	"github.com/mynosql/dbcore/dbpartition"
	"github.com/mynosql/dbcore/microtime"
)

var (
	rowsAmountGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mynosql_table_rows_amount",
		Help: "Current number of rows held by a table",
	}, []string{"table"})

	tableSizeGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mynosql_table_size_bytes",
		Help: "Current total content size of a table, in bytes",
	}, []string{"table"})

	partitionsAmountGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mynosql_table_partitions_amount",
		Help: "Current number of partitions held by a table",
	}, []string{"table"})

	gcEvictedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mynosql_table_gc_evicted_total",
		Help: "Rows and partitions evicted by garbage collection",
	}, []string{"table", "kind"})
)

// Attributes holds the table-level configuration that shapes garbage
// collection and replication behavior (§4 supplement to db_table_inner.rs,
// which stores an equivalent DbTableAttributes alongside the inner table).
type Attributes struct {
	MaxPartitionsAmount       *int `json:"maxPartitionsAmount,omitempty"`
	MaxRowsPerPartitionAmount *int `json:"maxRowsPerPartitionAmount,omitempty"`
	Persist                   bool `json:"persist"`
}

// Table is the top-level aggregate: a name, its partitions, its average
// row size estimate, and (in master-node mode) the attributes and
// last-write moment used by GC and replication.
type Table struct {
	Name       string
	masterNode bool

	partitions partitionsContainer
	avgSize    *AvgSize

	attributes      Attributes
	lastWriteMoment microtime.Micros
}

// New constructs an empty Table.
func New(name string, masterNode bool, now microtime.Micros) *Table {
	return &Table{
		Name:            name,
		masterNode:      masterNode,
		partitions:      *newPartitionsContainer(masterNode),
		avgSize:         NewAvgSize(),
		lastWriteMoment: now,
	}
}

func (t *Table) refreshMetrics() {
	rowsAmountGauge.WithLabelValues(t.Name).Set(float64(t.GetRowsAmount()))
	tableSizeGauge.WithLabelValues(t.Name).Set(float64(t.GetTableSize()))
	partitionsAmountGauge.WithLabelValues(t.Name).Set(float64(t.GetPartitionsAmount()))
}

// GetPartitionsAmount returns the number of partitions in the table.
func (t *Table) GetPartitionsAmount() int { return t.partitions.len() }

// GetPartitions returns every partition, ordered by PartitionKey.
func (t *Table) GetPartitions() []*dbpartition.Partition { return t.partitions.all() }

// GetPartition returns the partition under partitionKey, if present.
func (t *Table) GetPartition(partitionKey string) (*dbpartition.Partition, bool) {
	return t.partitions.get(partitionKey)
}

// GetRowsAmount sums row counts across all partitions.
func (t *Table) GetRowsAmount() int {
	result := 0
	for _, p := range t.partitions.all() {
		result += p.RowsCount()
	}
	return result
}

// GetTableSize sums content size across all partitions (P1, table-wide).
func (t *Table) GetTableSize() int {
	result := 0
	for _, p := range t.partitions.all() {
		result += p.ContentSize()
	}
	return result
}

// AverageRowSize returns the table's estimate of the typical row size.
func (t *Table) AverageRowSize() int { return t.avgSize.Get() }

// InsertOrReplaceRow inserts or replaces row within its (new-or-existing)
// partition, returning the displaced row if any.
func (t *Table) InsertOrReplaceRow(row *dbentity.Row, now microtime.Micros) (string, *dbentity.Row) {
	t.avgSize.Add(row)

	p := t.partitions.addPartitionIfNotExists(row.PartitionKey(), t.masterNode, now)
	removed := p.InsertOrReplaceRow(row, now)

	t.lastWriteMoment = now
	t.refreshMetrics()
	return p.PartitionKey, removed
}

// InsertRow inserts row only if no row already exists under its RowKey,
// returning whether the insert happened.
func (t *Table) InsertRow(row *dbentity.Row, now microtime.Micros) (string, bool) {
	t.avgSize.Add(row)

	p := t.partitions.addPartitionIfNotExists(row.PartitionKey(), t.masterNode, now)
	inserted := p.InsertRow(row, now)

	if inserted {
		t.lastWriteMoment = now
		t.refreshMetrics()
	}
	return p.PartitionKey, inserted
}

// BulkInsertOrReplace inserts or replaces every row in rows within
// partitionKey's partition, returning the displaced rows.
func (t *Table) BulkInsertOrReplace(partitionKey string, rows []*dbentity.Row, now microtime.Micros) []*dbentity.Row {
	for _, row := range rows {
		t.avgSize.Add(row)
	}

	p := t.partitions.addPartitionIfNotExists(partitionKey, t.masterNode, now)
	removed := p.InsertOrReplaceRowsBulk(rows, now)

	t.lastWriteMoment = now
	t.refreshMetrics()
	return removed
}

// CleanAndBulkInsert replaces the entire contents of partitionKey's
// partition with rows: every existing row is first removed, then rows are
// inserted fresh. This is the "CleanAndBulkInsert" HTTP operation's core.
func (t *Table) CleanAndBulkInsert(partitionKey string, rows []*dbentity.Row, now microtime.Micros) {
	p := t.partitions.addPartitionIfNotExists(partitionKey, t.masterNode, now)

	existing := p.GetAllRows()
	rowKeys := make([]string, len(existing))
	for i, row := range existing {
		rowKeys[i] = row.RowKey()
	}
	for _, rowKey := range rowKeys {
		p.RemoveRow(rowKey)
	}
	for _, row := range rows {
		t.avgSize.Add(row)
		p.InsertOrReplaceRow(row, now)
	}

	t.lastWriteMoment = now
	t.refreshMetrics()
}

// RemoveRow removes rowKey from partitionKey's partition. When
// deleteEmptyPartition is true and the partition becomes empty, the
// partition itself is removed too. The row is nil when nothing was removed;
// the bool reports whether the partition is empty after the removal
// (false when nothing was removed).
func (t *Table) RemoveRow(partitionKey, rowKey string, deleteEmptyPartition bool) (*dbentity.Row, bool) {
	p, ok := t.partitions.get(partitionKey)
	if !ok {
		return nil, false
	}

	removed := p.RemoveRow(rowKey)
	if removed == nil {
		return nil, false
	}

	isEmpty := p.IsEmpty()
	if deleteEmptyPartition && isEmpty {
		t.partitions.remove(partitionKey)
	}

	t.refreshMetrics()
	return removed, isEmpty
}

// RemovePartition removes partitionKey and every row within it.
func (t *Table) RemovePartition(partitionKey string) (*dbpartition.Partition, bool) {
	removed := t.partitions.remove(partitionKey)
	if removed == nil {
		return nil, false
	}
	t.refreshMetrics()
	return removed, true
}

// ClearTable removes every partition, returning what it held.
func (t *Table) ClearTable() []*dbpartition.Partition {
	result := t.partitions.clear()
	t.refreshMetrics()
	return result
}

// PatchAttributes applies an RFC 7386 JSON merge patch to the table's
// Attributes, grounded on connector_store.go's checkpoint-state merge
// pattern. Unknown keys are ignored by json.Unmarshal, matching the
// forward-compatible posture the teacher's own checkpoint merges rely on.
func (t *Table) PatchAttributes(mergePatch []byte) error {
	current, err := json.Marshal(t.attributes)
	if err != nil {
		return err
	}

	patched, err := jsonpatch.MergePatch(current, mergePatch)
	if err != nil {
		return err
	}

	var next Attributes
	if err := json.Unmarshal(patched, &next); err != nil {
		return err
	}
	t.attributes = next
	return nil
}

// GetAttributes returns the table's current attributes.
func (t *Table) GetAttributes() Attributes { return t.attributes }

// SetAttributes replaces the table's attributes wholesale (used at table
// creation and by the HTTP "Tables/Create" handler).
func (t *Table) SetAttributes(attrs Attributes) { t.attributes = attrs }

// GetPartitionsToExpire returns the PartitionKeys whose own Expires
// moment is at or before now.
func (t *Table) GetPartitionsToExpire(now microtime.Micros) []string {
	return t.partitions.partitionsToExpire(now)
}

// GetPartitionsToGCByMaxAmount returns the partitions to evict to bring
// the table back under maxPartitionsAmount, by oldest last-read moment.
func (t *Table) GetPartitionsToGCByMaxAmount(maxPartitionsAmount int) []*dbpartition.Partition {
	return t.partitions.partitionsToGCByMaxAmount(maxPartitionsAmount)
}

// GetLastWriteMoment returns the moment the table was last written to.
func (t *Table) GetLastWriteMoment() microtime.Micros { return t.lastWriteMoment }

// RecordGCEviction increments the gc-evicted counter for kind ("partition"
// or "row") by n, reported by a GC sweep after it has actually applied a
// gcplan.Plan (the plan itself is pure and never touches this counter).
func (t *Table) RecordGCEviction(kind string, n int) {
	if n == 0 {
		return
	}
	gcEvictedCounter.WithLabelValues(t.Name, kind).Add(float64(n))
}
