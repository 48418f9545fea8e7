package expindex

import (
	"testing"

	"github.com/mynosql/dbcore/microtime"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	id      string
	expires microtime.Micros
	hasExp  bool
}

func (t testItem) GetIDAsStr() string { return t.id }
func (t testItem) GetExpirationMoment() (microtime.Micros, bool) {
	return t.expires, t.hasExp
}

func item(id string, seconds int64) testItem {
	return testItem{id: id, expires: microtime.Micros(seconds * 1_000_000), hasExp: true}
}

func TestAddOrdersBucketsByMoment(t *testing.T) {
	idx := New[testItem]()
	idx.Add(item("2", 2))
	require.Equal(t, 1, idx.Len())

	idx.Add(item("1", 1))
	require.Equal(t, 2, idx.Len())

	var moments []microtime.Micros
	for _, b := range idx.buckets {
		moments = append(moments, b.moment)
	}
	require.Equal(t, []microtime.Micros{1_000_000, 2_000_000}, moments)
}

func TestAddItemWithNoExpirationIsIgnored(t *testing.T) {
	idx := New[testItem]()
	idx.Add(testItem{id: "x"})
	require.Equal(t, 0, idx.Len())
}

func TestAddSameItemTwiceDoesNotDoubleCount(t *testing.T) {
	idx := New[testItem]()
	it := item("1", 5)
	idx.Add(it)
	idx.Add(it)
	require.Equal(t, 1, idx.Len())
}

func TestRemoveDropsEmptyBucket(t *testing.T) {
	idx := New[testItem]()
	it := item("1", 5)
	idx.Add(it)
	idx.Remove(it)
	require.Equal(t, 0, idx.Len())
	require.False(t, idx.HasDataWithExpirationMoment(it.expires))
}

func TestRemoveLeavesSiblingInBucket(t *testing.T) {
	idx := New[testItem]()
	a := item("a", 5)
	b := item("b", 5)
	idx.Add(a)
	idx.Add(b)
	idx.Remove(a)
	require.Equal(t, 1, idx.Len())
	require.True(t, idx.HasDataWithExpirationMoment(a.expires))
}

func TestUpdateMovesBucket(t *testing.T) {
	idx := New[testItem]()
	it := item("1", 5)
	idx.Add(it)

	moved := item("1", 10)
	idx.Update(it.expires, true, moved)

	require.Equal(t, 1, idx.Len())
	require.False(t, idx.HasDataWithExpirationMoment(it.expires))
	require.True(t, idx.HasDataWithExpirationMoment(moved.expires))
}

func TestItemsToExpireStopsAtFirstFutureBucket(t *testing.T) {
	idx := New[testItem]()
	idx.Add(item("past", 1))
	idx.Add(item("now", 5))
	idx.Add(item("future", 100))

	got := ItemsToExpire(idx, microtime.Micros(5_000_000), func(it testItem) string { return it.id })
	require.Equal(t, []string{"past", "now"}, got)
}

func TestClearResetsIndex(t *testing.T) {
	idx := New[testItem]()
	idx.Add(item("1", 5))
	idx.Clear()
	require.Equal(t, 0, idx.Len())
	require.False(t, idx.HasDataWithExpirationMoment(microtime.Micros(5_000_000)))
}
