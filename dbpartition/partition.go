// Package dbpartition implements a single table partition: a sorted-by-
// RowKey collection of rows, an embedded row-expiration index, and the
// content-size accounting used by garbage collection and table-size
// reporting.
package dbpartition

import (
	"sort"

	"github.com/mynosql/dbcore/dbentity"
	"github.com/mynosql/dbcore/expindex"
	"github.com/mynosql/dbcore/microtime"
)

// rowsContainer is a sorted-by-RowKey vector of rows, with an optional
// expiration index maintained alongside it in master-node mode. Grounded
// on db_rows_container.rs: insert/replace/remove keep the expiration
// index in lockstep so I1 always holds.
type rowsContainer struct {
	rows            []*dbentity.Row
	expirationIndex *expindex.Index[*dbentity.Row]
	masterNode      bool
}

func newRowsContainer(masterNode bool) *rowsContainer {
	return &rowsContainer{
		expirationIndex: expindex.New[*dbentity.Row](),
		masterNode:      masterNode,
	}
}

func (c *rowsContainer) findIndex(rowKey string) (int, bool) {
	i := sort.Search(len(c.rows), func(i int) bool { return c.rows[i].RowKey() >= rowKey })
	if i < len(c.rows) && c.rows[i].RowKey() == rowKey {
		return i, true
	}
	return i, false
}

// insert adds db_row, replacing and returning any existing row under the
// same RowKey. Mirrors db_rows_container.rs's insert: the expiration
// index is updated for both the incoming row and the displaced one.
func (c *rowsContainer) insert(row *dbentity.Row) *dbentity.Row {
	i, found := c.findIndex(row.RowKey())

	var removed *dbentity.Row
	if found {
		removed = c.rows[i]
		c.rows[i] = row
	} else {
		c.rows = append(c.rows, nil)
		copy(c.rows[i+1:], c.rows[i:])
		c.rows[i] = row
	}

	if c.masterNode {
		// Remove the displaced row before adding the new one: if both carry
		// the same Expires moment, Add is a same-id no-op (expindex.Index.Add
		// is idempotent per bucket), so removing afterwards would delete the
		// just-inserted row's own index entry instead of the stale one.
		if removed != nil {
			c.expirationIndex.Remove(removed)
		}
		c.expirationIndex.Add(row)
	}

	return removed
}

func (c *rowsContainer) remove(rowKey string) *dbentity.Row {
	i, found := c.findIndex(rowKey)
	if !found {
		return nil
	}
	removed := c.rows[i]
	c.rows = append(c.rows[:i], c.rows[i+1:]...)
	if c.masterNode {
		c.expirationIndex.Remove(removed)
	}
	return removed
}

func (c *rowsContainer) get(rowKey string) (*dbentity.Row, bool) {
	i, found := c.findIndex(rowKey)
	if !found {
		return nil, false
	}
	return c.rows[i], true
}

func (c *rowsContainer) has(rowKey string) bool {
	_, found := c.findIndex(rowKey)
	return found
}

func (c *rowsContainer) len() int { return len(c.rows) }

func (c *rowsContainer) all() []*dbentity.Row { return c.rows }

// highestRowAndBelow returns the prefix of rows with RowKey <= rowKey.
func (c *rowsContainer) highestRowAndBelow(rowKey string) []*dbentity.Row {
	i, found := c.findIndex(rowKey)
	end := i
	if found {
		end = i + 1
	}
	return c.rows[:end]
}

func (c *rowsContainer) rowsToExpire(now microtime.Micros) []*dbentity.Row {
	return expindex.ItemsToExpire(c.expirationIndex, now, func(r *dbentity.Row) *dbentity.Row { return r })
}

func (c *rowsContainer) expirationIndexLen() int { return c.expirationIndex.Len() }

// rowsToGCByMaxAmount returns, when the partition holds more than
// maxRowsAmount rows, the len(rows)-maxRowsAmount rows with the oldest
// last-read moment — these are the rows the caller should evict. Rows are
// sorted descending by last-read moment and the tail is returned. Returns
// nil when the partition is at or under the cap. Mirrors
// db_rows_container.rs's get_rows_to_gc_by_max_amount.
func (c *rowsContainer) rowsToGCByMaxAmount(maxRowsAmount int) []*dbentity.Row {
	if len(c.rows) <= maxRowsAmount {
		return nil
	}

	byLastRead := make([]*dbentity.Row, len(c.rows))
	copy(byLastRead, c.rows)
	sort.SliceStable(byLastRead, func(i, j int) bool {
		return byLastRead[i].GetLastReadAccess() > byLastRead[j].GetLastReadAccess()
	})

	return byLastRead[maxRowsAmount:]
}

// updateExpirationTime updates row_key's Expires value, re-homing it in
// the expiration index. Returns the row if the expiration actually
// changed, or (nil, false) if it was already at that value (so callers
// know whether a sync-to-main notification is warranted).
func (c *rowsContainer) updateExpirationTime(rowKey string, expires microtime.Micros, hasExpires bool) (*dbentity.Row, bool) {
	row, ok := c.get(rowKey)
	if !ok {
		return nil, false
	}

	oldExpires, hadOld := row.UpdateExpires(expires, hasExpires)
	if expiresEqual(oldExpires, hadOld, expires, hasExpires) {
		return nil, false
	}

	c.expirationIndex.Update(oldExpires, hadOld, row)
	return row, true
}

func expiresEqual(a microtime.Micros, aOK bool, b microtime.Micros, bOK bool) bool {
	if !aOK && !bOK {
		return true
	}
	if aOK != bOK {
		return false
	}
	return a == b
}

// Partition holds all rows for a single PartitionKey, along with the
// bookkeeping fields GC and sync-to-main need: content_size, last-read and
// last-write moments, and an optional partition-level Expires value.
type Partition struct {
	PartitionKey string

	rows rowsContainer

	contentSize int

	lastReadMoment  microtime.Micros
	lastWriteMoment microtime.Micros
	createdAt       microtime.Micros

	expires    microtime.Micros
	hasExpires bool

	masterNode bool

	// interner backs every row inserted into this partition with one
	// shared PartitionKey string (spec §3: PartitionKey is a shared,
	// reference-counted string), instead of each row carrying its own
	// copy sliced out of its raw bytes.
	interner *dbentity.Interner
}

// New constructs an empty Partition. masterNode controls whether the
// partition maintains a row-expiration index.
func New(partitionKey string, masterNode bool, now microtime.Micros) *Partition {
	return &Partition{
		PartitionKey:    partitionKey,
		rows:            *newRowsContainer(masterNode),
		lastReadMoment:  now,
		lastWriteMoment: now,
		createdAt:       now,
		masterNode:      masterNode,
		interner:        dbentity.NewInterner(),
	}
}

// ContentSize is the sum of the raw byte length of every row, per P1.
func (p *Partition) ContentSize() int { return p.contentSize }

// RowsCount returns the number of rows in the partition.
func (p *Partition) RowsCount() int { return p.rows.len() }

// InsertRow inserts db_row only if no row already exists under its
// RowKey, returning whether the insert happened.
func (p *Partition) InsertRow(row *dbentity.Row, now microtime.Micros) bool {
	if p.rows.has(row.RowKey()) {
		return false
	}
	p.InsertOrReplaceRow(row, now)
	return true
}

// InsertOrReplaceRow inserts db_row, replacing any existing row under the
// same RowKey. content_size is reconciled by adding the new row's size
// first and subtracting the displaced row's size second (P1), matching
// db_partition.rs's insert_or_replace_row exactly.
func (p *Partition) InsertOrReplaceRow(row *dbentity.Row, now microtime.Micros) *dbentity.Row {
	row.InternPartitionKey(p.interner)
	p.contentSize += row.ContentSize()

	removed := p.rows.insert(row)
	if removed != nil {
		p.contentSize -= removed.ContentSize()
	}

	p.lastWriteMoment = now
	return removed
}

// InsertOrReplaceRowsBulk inserts every row in rows, returning the rows
// that were displaced.
func (p *Partition) InsertOrReplaceRowsBulk(rows []*dbentity.Row, now microtime.Micros) []*dbentity.Row {
	var result []*dbentity.Row
	for _, row := range rows {
		row.InternPartitionKey(p.interner)
		p.contentSize += row.ContentSize()
		if removed := p.rows.insert(row); removed != nil {
			p.contentSize -= removed.ContentSize()
			result = append(result, removed)
		}
	}
	p.lastWriteMoment = now
	return result
}

// RemoveRow removes and returns the row under rowKey, if present.
func (p *Partition) RemoveRow(rowKey string) *dbentity.Row {
	removed := p.rows.remove(rowKey)
	if removed != nil {
		p.contentSize -= removed.ContentSize()
	}
	return removed
}

// RemoveRowsBulk removes every row named in rowKeys, returning those that
// were actually present.
func (p *Partition) RemoveRowsBulk(rowKeys []string) []*dbentity.Row {
	var result []*dbentity.Row
	for _, rowKey := range rowKeys {
		if removed := p.rows.remove(rowKey); removed != nil {
			p.contentSize -= removed.ContentSize()
			result = append(result, removed)
		}
	}
	return result
}

// GetRow returns the row under rowKey, if present.
func (p *Partition) GetRow(rowKey string) (*dbentity.Row, bool) {
	return p.rows.get(rowKey)
}

// GetAllRows returns every row in the partition, ordered by RowKey.
func (p *Partition) GetAllRows() []*dbentity.Row {
	return p.rows.all()
}

// GetHighestRowAndBelow returns the rows with RowKey <= rowKey.
func (p *Partition) GetHighestRowAndBelow(rowKey string) []*dbentity.Row {
	return p.rows.highestRowAndBelow(rowKey)
}

// IsEmpty reports whether the partition holds no rows.
func (p *Partition) IsEmpty() bool { return p.rows.len() == 0 }

// GetRowsToExpire returns every row whose Expires moment is at or before
// now.
func (p *Partition) GetRowsToExpire(now microtime.Micros) []*dbentity.Row {
	return p.rows.rowsToExpire(now)
}

// GetRowsToGCByMaxAmount returns the rows to evict to bring the partition
// back under maxRowsAmount, per rowsContainer.rowsToGCByMaxAmount.
func (p *Partition) GetRowsToGCByMaxAmount(maxRowsAmount int) []*dbentity.Row {
	return p.rows.rowsToGCByMaxAmount(maxRowsAmount)
}

// GetExpirationIndexRowsAmount reports how many rows currently carry a
// live Expires value.
func (p *Partition) GetExpirationIndexRowsAmount() int { return p.rows.expirationIndexLen() }

// UpdateRowExpirationTime updates rowKey's Expires value. ok reports
// whether the value actually changed (vs. already being at that value).
func (p *Partition) UpdateRowExpirationTime(rowKey string, expires microtime.Micros, hasExpires bool) (*dbentity.Row, bool) {
	return p.rows.updateExpirationTime(rowKey, expires, hasExpires)
}

// GetExpires returns the partition's own Expires value, if any.
func (p *Partition) GetExpires() (microtime.Micros, bool) { return p.expires, p.hasExpires }

// SetExpires sets or clears the partition's own Expires value. Callers in
// dbtable are responsible for re-homing the partition in the table's
// partition-expiration index (I2).
func (p *Partition) SetExpires(expires microtime.Micros, hasExpires bool) {
	p.expires = expires
	p.hasExpires = hasExpires
}

// GetIDAsStr satisfies expindex.Item for partition-level expiration.
func (p *Partition) GetIDAsStr() string { return p.PartitionKey }

// GetExpirationMoment satisfies expindex.Item for partition-level
// expiration.
func (p *Partition) GetExpirationMoment() (microtime.Micros, bool) { return p.GetExpires() }

// UpdateLastReadMoment stamps the partition as read at now.
func (p *Partition) UpdateLastReadMoment(now microtime.Micros) { p.lastReadMoment = now }

// GetLastReadMoment returns the partition's last-read moment.
func (p *Partition) GetLastReadMoment() microtime.Micros { return p.lastReadMoment }

// GetLastWriteMoment returns the partition's last-write moment.
func (p *Partition) GetLastWriteMoment() microtime.Micros { return p.lastWriteMoment }

// CreatedAt returns the moment the partition was first created.
func (p *Partition) CreatedAt() microtime.Micros { return p.createdAt }
