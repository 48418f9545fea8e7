// Package dbtable implements the table aggregate: a sorted-by-PartitionKey
// collection of partitions, a partition-level expiration index, and the
// Table type that fans out inserts/removes across both, tracks table size
// and row count, and estimates average row size.
package dbtable

import (
	"sort"

	"github.com/mynosql/dbcore/dbpartition"
	"github.com/mynosql/dbcore/expindex"
	"github.com/mynosql/dbcore/microtime"
)

// partitionsContainer is a sorted-by-PartitionKey vector of partitions
// plus an expiration index tracking each partition's own Expires value
// (I2). Grounded on db_partitions_container.rs.
type partitionsContainer struct {
	partitions      []*dbpartition.Partition
	expirationIndex *expindex.Index[*dbpartition.Partition]
	masterNode      bool
}

func newPartitionsContainer(masterNode bool) *partitionsContainer {
	return &partitionsContainer{
		expirationIndex: expindex.New[*dbpartition.Partition](),
		masterNode:      masterNode,
	}
}

func (c *partitionsContainer) findIndex(partitionKey string) (int, bool) {
	i := sort.Search(len(c.partitions), func(i int) bool {
		return c.partitions[i].PartitionKey >= partitionKey
	})
	if i < len(c.partitions) && c.partitions[i].PartitionKey == partitionKey {
		return i, true
	}
	return i, false
}

func (c *partitionsContainer) len() int { return len(c.partitions) }

func (c *partitionsContainer) all() []*dbpartition.Partition { return c.partitions }

func (c *partitionsContainer) get(partitionKey string) (*dbpartition.Partition, bool) {
	i, found := c.findIndex(partitionKey)
	if !found {
		return nil, false
	}
	return c.partitions[i], true
}

// addPartitionIfNotExists returns the existing partition under
// partitionKey, or creates, indexes, and returns a new empty one.
func (c *partitionsContainer) addPartitionIfNotExists(partitionKey string, masterNode bool, now microtime.Micros) *dbpartition.Partition {
	i, found := c.findIndex(partitionKey)
	if found {
		return c.partitions[i]
	}

	p := dbpartition.New(partitionKey, masterNode, now)
	c.partitions = append(c.partitions, nil)
	copy(c.partitions[i+1:], c.partitions[i:])
	c.partitions[i] = p

	if c.masterNode {
		c.expirationIndex.Add(p)
	}

	return p
}

// insert inserts or replaces db_partition wholesale (used to restore a
// partition snapshot, e.g. during replication init).
func (c *partitionsContainer) insert(p *dbpartition.Partition) *dbpartition.Partition {
	if c.masterNode {
		c.expirationIndex.Add(p)
	}

	i, found := c.findIndex(p.PartitionKey)
	var removed *dbpartition.Partition
	if found {
		removed = c.partitions[i]
		c.partitions[i] = p
	} else {
		c.partitions = append(c.partitions, nil)
		copy(c.partitions[i+1:], c.partitions[i:])
		c.partitions[i] = p
	}

	if c.masterNode {
		// Remove the displaced partition before adding the new one, for the
		// same reason as rowsContainer.insert: with equal Expires moments Add
		// is a same-id no-op, so a later Remove would drop the new entry.
		if removed != nil {
			c.expirationIndex.Remove(removed)
		}
		c.expirationIndex.Add(p)
	}

	return removed
}

func (c *partitionsContainer) remove(partitionKey string) *dbpartition.Partition {
	i, found := c.findIndex(partitionKey)
	if !found {
		return nil
	}
	removed := c.partitions[i]
	c.partitions = append(c.partitions[:i], c.partitions[i+1:]...)
	if c.masterNode {
		c.expirationIndex.Remove(removed)
	}
	return removed
}

// clear empties the container, returning the partitions it held (or nil
// if it was already empty).
func (c *partitionsContainer) clear() []*dbpartition.Partition {
	if len(c.partitions) == 0 {
		return nil
	}
	result := c.partitions
	c.partitions = nil
	if c.masterNode {
		c.expirationIndex.Clear()
	}
	return result
}

func (c *partitionsContainer) partitionsToExpire(now microtime.Micros) []string {
	return expindex.ItemsToExpire(c.expirationIndex, now, func(p *dbpartition.Partition) string { return p.PartitionKey })
}

// partitionsToGCByMaxAmount returns, when the container holds more than
// maxPartitionsAmount partitions, the len(partitions)-maxPartitionsAmount
// partitions with the oldest last-read moment: partitions are sorted
// descending by last-read moment and the tail is returned. Mirrors
// db_partitions_container.rs's get_partitions_to_gc_by_max_amount.
func (c *partitionsContainer) partitionsToGCByMaxAmount(maxPartitionsAmount int) []*dbpartition.Partition {
	if len(c.partitions) <= maxPartitionsAmount {
		return nil
	}

	byLastRead := make([]*dbpartition.Partition, len(c.partitions))
	copy(byLastRead, c.partitions)
	sort.SliceStable(byLastRead, func(i, j int) bool {
		return byLastRead[i].GetLastReadMoment() > byLastRead[j].GetLastReadMoment()
	})

	return byLastRead[maxPartitionsAmount:]
}
