package dbentity

import (
	"testing"

	"github.com/mynosql/dbcore/microtime"
	"github.com/stretchr/testify/require"
)

func TestRowWriteJSONUntouchedWithoutExpires(t *testing.T) {
	raw := []byte(`{"PartitionKey":"p1","RowKey":"r1"}`)
	row, err := NewRow(raw, true, microtime.Now())
	require.NoError(t, err)
	require.Equal(t, raw, row.WriteJSON())
}

func TestRowWriteJSONInjectsNewExpires(t *testing.T) {
	raw := []byte(`{"PartitionKey":"p1","RowKey":"r1"}`)
	row, err := NewRow(raw, true, microtime.Now())
	require.NoError(t, err)

	expires, _ := microtime.Parse("2030-01-01T00:00:00")
	row.UpdateExpires(expires, true)

	out := string(row.WriteJSON())
	require.Contains(t, out, `"Expires":"2030-01-01T00:00:00"`)
	require.Contains(t, out, `"PartitionKey":"p1"`)
}

func TestRowWriteJSONReplacesExistingExpires(t *testing.T) {
	raw := []byte(`{"PartitionKey":"p1","RowKey":"r1","Expires":"2020-01-01T00:00:00"}`)
	row, err := NewRow(raw, true, microtime.Now())
	require.NoError(t, err)

	newExpires, _ := microtime.Parse("2031-02-02T00:00:00")
	row.UpdateExpires(newExpires, true)

	out := string(row.WriteJSON())
	require.Contains(t, out, `"Expires":"2031-02-02T00:00:00"`)
	require.NotContains(t, out, "2020-01-01")
}

func TestRowWriteJSONExcisesClearedExpires(t *testing.T) {
	raw := []byte(`{"PartitionKey":"p1","RowKey":"r1","Expires":"2020-01-01T00:00:00","Other":1}`)
	row, err := NewRow(raw, true, microtime.Now())
	require.NoError(t, err)

	row.UpdateExpires(0, false)

	out := string(row.WriteJSON())
	require.NotContains(t, out, "Expires")
	require.Contains(t, out, `"PartitionKey":"p1"`)
	require.Contains(t, out, `"Other":1`)
}

func TestRowWriteJSONExcisesExpiresAsLastMember(t *testing.T) {
	raw := []byte(`{"PartitionKey":"p1","RowKey":"r1","Other":1,"Expires":"2020-01-01T00:00:00"}`)
	row, err := NewRow(raw, true, microtime.Now())
	require.NoError(t, err)

	row.UpdateExpires(0, false)

	out := string(row.WriteJSON())
	require.NotContains(t, out, "Expires")
	require.Contains(t, out, `"Other":1`)
}

func TestRowReadNodePassesRawThrough(t *testing.T) {
	raw := []byte(`{"PartitionKey":"p1","RowKey":"r1","Expires":"2020-01-01T00:00:00"}`)
	row, err := NewRow(raw, false, microtime.Now())
	require.NoError(t, err)
	require.Equal(t, raw, row.WriteJSON())
}

func TestRowGetExpiresRoundTrip(t *testing.T) {
	raw := []byte(`{"PartitionKey":"p1","RowKey":"r1"}`)
	row, err := NewRow(raw, true, microtime.Now())
	require.NoError(t, err)

	_, ok := row.GetExpires()
	require.False(t, ok)

	expires, _ := microtime.Parse("2030-01-01T00:00:00")
	old, hadOld := row.UpdateExpires(expires, true)
	require.False(t, hadOld)
	require.Zero(t, old)

	got, ok := row.GetExpires()
	require.True(t, ok)
	require.Equal(t, expires, got)
}

func TestRowLastReadAccessUpdates(t *testing.T) {
	raw := []byte(`{"PartitionKey":"p1","RowKey":"r1"}`)
	now := microtime.Now()
	row, err := NewRow(raw, true, now)
	require.NoError(t, err)

	next := now.AddSeconds(10)
	row.UpdateLastReadAccess(next)
	require.Equal(t, next, row.GetLastReadAccess())
}
