// Package gcplan computes what a garbage-collection sweep should evict
// from a table, without performing the eviction itself. Grounded on
// db_table_master_node.rs's get_data_to_gc: max-partitions-amount
// eviction takes priority over expiration for partitions (a partition
// already marked for eviction by the amount cap is never also checked for
// row-level expiration), then every surviving partition contributes its
// own expired and over-cap rows.
package gcplan

import (
	"github.com/mynosql/dbcore/dbentity"
	"github.com/mynosql/dbcore/dbtable"
	"github.com/mynosql/dbcore/microtime"
)

// DataToGC is the result of a GC planning pass: partitions to drop
// wholesale, and, per surviving partition, the rows within it to drop.
type DataToGC struct {
	PartitionsToExpire []string
	RowsToExpire       map[string][]*dbentity.Row
}

func newDataToGC() *DataToGC {
	return &DataToGC{RowsToExpire: make(map[string][]*dbentity.Row)}
}

func (d *DataToGC) addPartitionToExpire(partitionKey string) {
	if d.hasPartitionToGC(partitionKey) {
		return
	}
	d.PartitionsToExpire = append(d.PartitionsToExpire, partitionKey)
}

func (d *DataToGC) hasPartitionToGC(partitionKey string) bool {
	for _, pk := range d.PartitionsToExpire {
		if pk == partitionKey {
			return true
		}
	}
	return false
}

func (d *DataToGC) addRowsToExpire(partitionKey string, rows []*dbentity.Row) {
	if len(rows) == 0 {
		return
	}
	d.RowsToExpire[partitionKey] = append(d.RowsToExpire[partitionKey], rows...)
}

// IsEmpty reports whether the plan evicts nothing at all.
func (d *DataToGC) IsEmpty() bool {
	return len(d.PartitionsToExpire) == 0 && len(d.RowsToExpire) == 0
}

// Plan computes the eviction plan for table as of now. It is a pure
// function over the table's current state: nothing is mutated.
func Plan(table *dbtable.Table, now microtime.Micros) *DataToGC {
	result := newDataToGC()

	attrs := table.GetAttributes()

	if attrs.MaxPartitionsAmount != nil {
		for _, p := range table.GetPartitionsToGCByMaxAmount(*attrs.MaxPartitionsAmount) {
			result.addPartitionToExpire(p.PartitionKey)
		}
	}

	for _, partitionKey := range table.GetPartitionsToExpire(now) {
		result.addPartitionToExpire(partitionKey)
	}

	for _, p := range table.GetPartitions() {
		if result.hasPartitionToGC(p.PartitionKey) {
			continue
		}

		if rowsToExpire := p.GetRowsToExpire(now); len(rowsToExpire) > 0 {
			result.addRowsToExpire(p.PartitionKey, rowsToExpire)
		}

		if attrs.MaxRowsPerPartitionAmount != nil {
			if rowsToGC := p.GetRowsToGCByMaxAmount(*attrs.MaxRowsPerPartitionAmount); len(rowsToGC) > 0 {
				result.addRowsToExpire(p.PartitionKey, rowsToGC)
			}
		}
	}

	return result
}
