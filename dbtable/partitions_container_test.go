package dbtable

import (
	"testing"

	"github.com/mynosql/dbcore/microtime"
	"github.com/stretchr/testify/require"
)

func TestAddPartitionIfNotExistsIsIdempotent(t *testing.T) {
	now := microtime.Now()
	c := newPartitionsContainer(true)

	p1 := c.addPartitionIfNotExists("a", true, now)
	p2 := c.addPartitionIfNotExists("a", true, now)
	require.Same(t, p1, p2)
	require.Equal(t, 1, c.len())
}

func TestPartitionsToGCByMaxAmountReturnsOldestReads(t *testing.T) {
	now := microtime.Now()
	c := newPartitionsContainer(true)

	for i, key := range []string{"a", "b", "c", "d"} {
		p := c.addPartitionIfNotExists(key, true, now.AddSeconds(int64(i)))
		p.UpdateLastReadMoment(now.AddSeconds(int64(i)))
	}

	toGC := c.partitionsToGCByMaxAmount(3)
	require.Len(t, toGC, 1)
	require.Equal(t, "a", toGC[0].PartitionKey)
}

func TestPartitionsToGCByMaxAmountReturnsNilUnderCap(t *testing.T) {
	now := microtime.Now()
	c := newPartitionsContainer(true)
	c.addPartitionIfNotExists("a", true, now)

	require.Nil(t, c.partitionsToGCByMaxAmount(3))
}

func TestRemovePartitionDropsFromExpirationIndex(t *testing.T) {
	now := microtime.Now()
	c := newPartitionsContainer(true)
	p := c.addPartitionIfNotExists("a", true, now)
	p.SetExpires(microtime.Micros(5), true)
	c.insert(p)
	require.Equal(t, 1, c.expirationIndex.Len())

	removed := c.remove("a")
	require.NotNil(t, removed)
	require.Equal(t, 0, c.len())
	require.Equal(t, 0, c.expirationIndex.Len())
}
