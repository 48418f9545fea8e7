package dbpartition

import (
	"testing"

	"github.com/mynosql/dbcore/dbentity"
	"github.com/mynosql/dbcore/microtime"
	"github.com/stretchr/testify/require"
)

func mustRow(t *testing.T, raw string, now microtime.Micros) *dbentity.Row {
	t.Helper()
	row, err := dbentity.NewRow([]byte(raw), true, now)
	require.NoError(t, err)
	return row
}

func TestInsertRowAppearsInExpirationIndex(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test","Expires":"2019-01-01T00:00:00"}`, now)

	p.InsertRow(row, now)

	require.Equal(t, 1, p.GetExpirationIndexRowsAmount())
}

func TestInsertRowWithoutExpiresDoesNotIndex(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test"}`, now)

	p.InsertRow(row, now)

	require.Equal(t, 0, p.GetExpirationIndexRowsAmount())
}

func TestRemoveRowDropsFromExpirationIndex(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test","Expires":"2019-01-01T00:00:00"}`, now)
	p.InsertRow(row, now)

	p.RemoveRow("test")

	require.Equal(t, 0, p.GetExpirationIndexRowsAmount())
}

func TestUpdateExpirationTimeFromNoneToSome(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test"}`, now)
	p.InsertRow(row, now)
	require.Equal(t, 0, p.GetExpirationIndexRowsAmount())

	newExpires := microtime.Micros(2)
	_, changed := p.UpdateRowExpirationTime("test", newExpires, true)
	require.True(t, changed)

	require.Equal(t, 1, p.GetExpirationIndexRowsAmount())
}

func TestUpdateExpirationTimeSameValueIsNoop(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	raw := `{"Count":1,"PartitionKey":"in-progress-count1","RowKey":"my-id","Expires":"2025-03-12T10:55:46Z"}`
	row := mustRow(t, raw, now)
	p.InsertRow(row, now)
	require.Equal(t, 1, p.GetExpirationIndexRowsAmount())

	expires, _ := row.GetExpires()
	_, changed := p.UpdateRowExpirationTime("my-id", expires, true)
	require.False(t, changed)
	require.Equal(t, 1, p.GetExpirationIndexRowsAmount())
}

func TestUpdateExpirationTimeFromSomeToNone(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test","Expires":"2019-01-01T00:00:00"}`, now)
	p.InsertRow(row, now)
	require.Equal(t, 1, p.GetExpirationIndexRowsAmount())

	_, changed := p.UpdateRowExpirationTime("test", 0, false)
	require.True(t, changed)
	require.Equal(t, 0, p.GetExpirationIndexRowsAmount())
}

func TestGetRowsToExpire(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test","Expires":"2019-01-01T00:00:00"}`, now)
	p.InsertRow(row, now)

	expiresAt, _ := row.GetExpires()

	before := expiresAt - 1
	require.Empty(t, p.GetRowsToExpire(before))

	require.Len(t, p.GetRowsToExpire(expiresAt), 1)
}

func TestGetRowsToGCByMaxAmountReturnsOldestReads(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)

	for i, rowKey := range []string{"test1", "test2", "test3", "test4"} {
		row := mustRow(t, `{"PartitionKey":"test","RowKey":"`+rowKey+`"}`, now.AddSeconds(int64(i)))
		p.InsertRow(row, now)
	}

	toGC := p.GetRowsToGCByMaxAmount(3)
	require.Len(t, toGC, 1)
	require.Equal(t, "test1", toGC[0].RowKey())
}

func TestGetRowsToGCByMaxAmountReturnsNilUnderCap(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test1"}`, now)
	p.InsertRow(row, now)

	require.Nil(t, p.GetRowsToGCByMaxAmount(3))
}

func TestContentSizeReconciledOnReplace(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	row1 := mustRow(t, `{"PartitionKey":"test","RowKey":"r1"}`, now)
	p.InsertOrReplaceRow(row1, now)
	size1 := p.ContentSize()
	require.Equal(t, len(row1.WriteJSON()), size1)

	row2 := mustRow(t, `{"PartitionKey":"test","RowKey":"r1","AAA":"111"}`, now)
	p.InsertOrReplaceRow(row2, now)

	require.Equal(t, len(row2.WriteJSON()), p.ContentSize())
}

func TestRowsContainerReplaceWithSameExpiresKeepsIndexEntry(t *testing.T) {
	now := microtime.Now()
	c := newRowsContainer(true)

	row1 := mustRow(t, `{"PartitionKey":"test","RowKey":"r1","Expires":"2019-01-01T00:00:00"}`, now)
	removed := c.insert(row1)
	require.Nil(t, removed)
	require.Equal(t, 1, c.expirationIndexLen())

	row2 := mustRow(t, `{"PartitionKey":"test","RowKey":"r1","Expires":"2019-01-01T00:00:00"}`, now)
	removed = c.insert(row2)
	require.Same(t, row1, removed)
	require.Equal(t, 1, c.expirationIndexLen())

	expiresAt, _ := row2.GetExpires()
	require.Len(t, c.rowsToExpire(expiresAt), 1)
}

func TestRowsContainerReplaceWithDifferentExpiresRehomesIndexEntry(t *testing.T) {
	now := microtime.Now()
	c := newRowsContainer(true)

	row1 := mustRow(t, `{"PartitionKey":"test","RowKey":"r1","Expires":"2019-01-01T00:00:00"}`, now)
	c.insert(row1)
	require.Equal(t, 1, c.expirationIndexLen())
	oldExpiresAt, _ := row1.GetExpires()

	row2 := mustRow(t, `{"PartitionKey":"test","RowKey":"r1","Expires":"2030-01-01T00:00:00"}`, now)
	removed := c.insert(row2)
	require.Same(t, row1, removed)
	require.Equal(t, 1, c.expirationIndexLen())

	newExpiresAt, _ := row2.GetExpires()
	require.Empty(t, c.rowsToExpire(oldExpiresAt))
	require.Len(t, c.rowsToExpire(newExpiresAt), 1)
}

func TestGetHighestRowAndBelow(t *testing.T) {
	now := microtime.Now()
	p := New("test", true, now)
	for _, rowKey := range []string{"a", "b", "c", "d"} {
		row := mustRow(t, `{"PartitionKey":"test","RowKey":"`+rowKey+`"}`, now)
		p.InsertRow(row, now)
	}

	rows := p.GetHighestRowAndBelow("b")
	require.Len(t, rows, 2)
	require.Equal(t, "a", rows[0].RowKey())
	require.Equal(t, "b", rows[1].RowKey())
}
