package dbtable

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

func TestInsertRowCreatesPartition(t *testing.T) {
	now := microtime.Now()
	table := New("test-table", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test"}`, now)

	_, inserted := table.InsertRow(row, now)
	require.True(t, inserted)
	require.Equal(t, 1, table.GetPartitionsAmount())
	require.Equal(t, len(row.WriteJSON()), table.GetTableSize())
}

func TestInsertOrReplaceRowReplacesExisting(t *testing.T) {
	now := microtime.Now()
	table := New("test-table", true, now)
	row1 := mustRow(t, `{"PartitionKey":"test","RowKey":"test"}`, now)
	table.InsertOrReplaceRow(row1, now)

	row2 := mustRow(t, `{"PartitionKey":"test","RowKey":"test","AAA":"111"}`, now)
	_, removed := table.InsertOrReplaceRow(row2, now)

	require.NotNil(t, removed)
	require.Equal(t, 1, table.GetPartitionsAmount())
	require.Equal(t, len(row2.WriteJSON()), table.GetTableSize())
}

func TestRemoveRowDeletesEmptyPartitionWhenAsked(t *testing.T) {
	now := microtime.Now()
	table := New("test-table", true, now)
	row := mustRow(t, `{"PartitionKey":"test","RowKey":"test"}`, now)
	table.InsertRow(row, now)

	_, isEmpty := table.RemoveRow("test", "test", true)
	require.True(t, isEmpty)
	require.Equal(t, 0, table.GetPartitionsAmount())
}

func TestRemoveRowKeepsNonEmptyPartition(t *testing.T) {
	now := microtime.Now()
	table := New("test-table", true, now)
	table.InsertRow(mustRow(t, `{"PartitionKey":"test","RowKey":"r1"}`, now), now)
	table.InsertRow(mustRow(t, `{"PartitionKey":"test","RowKey":"r2"}`, now), now)

	_, isEmpty := table.RemoveRow("test", "r1", true)
	require.False(t, isEmpty)
	require.Equal(t, 1, table.GetPartitionsAmount())
}

func TestBulkInsertOrReplace(t *testing.T) {
	now := microtime.Now()
	table := New("test-table", true, now)
	rows := []*dbentity.Row{
		mustRow(t, `{"PartitionKey":"test","RowKey":"r1"}`, now),
		mustRow(t, `{"PartitionKey":"test","RowKey":"r2"}`, now),
	}
	removed := table.BulkInsertOrReplace("test", rows, now)
	require.Empty(t, removed)
	require.Equal(t, 2, table.GetRowsAmount())
}

func TestCleanAndBulkInsertReplacesPartitionContents(t *testing.T) {
	now := microtime.Now()
	table := New("test-table", true, now)
	table.InsertRow(mustRow(t, `{"PartitionKey":"test","RowKey":"old"}`, now), now)

	table.CleanAndBulkInsert("test", []*dbentity.Row{
		mustRow(t, `{"PartitionKey":"test","RowKey":"new"}`, now),
	}, now)

	require.Equal(t, 1, table.GetRowsAmount())
	p, _ := table.GetPartition("test")
	_, hasOld := p.GetRow("old")
	require.False(t, hasOld)
	_, hasNew := p.GetRow("new")
	require.True(t, hasNew)
}

func TestGetTableAsJSONArray(t *testing.T) {
	now := microtime.Now()
	table := New("test-table", true, now)
	table.InsertRow(mustRow(t, `{"PartitionKey":"p1","RowKey":"r1"}`, now), now)
	table.InsertRow(mustRow(t, `{"PartitionKey":"p1","RowKey":"r2"}`, now), now)

	out := string(table.GetTableAsJSONArray())
	require.Equal(t, byte('['), out[0])
	require.Equal(t, byte(']'), out[len(out)-1])
	require.Contains(t, out, `"RowKey":"r1"`)
	require.Contains(t, out, `"RowKey":"r2"`)
}

func TestPatchAttributesMerges(t *testing.T) {
	table := New("test-table", true, microtime.Now())
	err := table.PatchAttributes([]byte(`{"maxPartitionsAmount":100,"persist":true}`))
	require.NoError(t, err)

	attrs := table.GetAttributes()
	require.NotNil(t, attrs.MaxPartitionsAmount)
	require.Equal(t, 100, *attrs.MaxPartitionsAmount)
	require.True(t, attrs.Persist)
}
