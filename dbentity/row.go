package dbentity

import (
	"sync/atomic"

	"github.com/mynosql/dbcore/microtime"
)

// Row is a single (PartitionKey, RowKey) document. It owns its raw JSON
// bytes and the byte-position map produced by parse; PartitionKey and
// RowKey accessors return zero-copy slices into raw, and Expires is stored
// out-of-band in an atomic int64 so readers never take a lock to check it
// (the concurrency model of db_row.rs).
type Row struct {
	raw          []byte
	partitionKey byteRange
	rowKey       byteRange
	timeStamp    byteRange
	expires      *fieldSpan

	// internedPartitionKey, once set by InternPartitionKey, is the
	// canonical shared string every row of the same partition is made to
	// return from PartitionKey instead of each re-slicing its own raw
	// bytes (spec §3: PartitionKey is a shared, reference-counted string
	// with the partition as its single authoritative owner).
	internedPartitionKey string

	expiresValue   atomic.Int64
	lastReadAccess atomic.Int64
	masterNode     bool
}

// NewRow parses raw into a Row. masterNode controls whether a missing
// TimeStamp is synthesized and whether WriteJSON reflects the live Expires
// value; Expires and LastReadAccess are recorded in both modes.
func NewRow(raw []byte, masterNode bool, now microtime.Micros) (*Row, error) {
	result, raw, err := parse(raw, masterNode, now)
	if err != nil {
		return nil, err
	}

	row := &Row{
		raw:          raw,
		partitionKey: result.PartitionKey,
		rowKey:       result.RowKey,
		timeStamp:    result.TimeStamp,
		expires:      result.Expires,
		masterNode:   masterNode,
	}
	row.expiresValue.Store(int64(result.ExpiresValue))

	var lastRead microtime.Micros
	if !result.TimeStamp.empty() {
		if v, ok := microtime.Parse(string(result.TimeStamp.slice(raw))); ok {
			lastRead = v
		}
	}
	if lastRead == 0 {
		lastRead = now
	}
	row.lastReadAccess.Store(int64(lastRead))

	return row, nil
}

// PartitionKey returns the document's PartitionKey: the interned
// canonical string if InternPartitionKey has been called for this row
// (the normal case once inserted into a partition), or a zero-copy slice
// of raw otherwise.
func (r *Row) PartitionKey() string {
	if r.internedPartitionKey != "" {
		return r.internedPartitionKey
	}
	return string(r.partitionKey.slice(r.raw))
}

// InternPartitionKey caches in.Intern(PartitionKey) as this row's
// PartitionKey, so every row belonging to the same partition shares one
// backing string allocation rather than each independently re-slicing
// its own raw bytes on every call.
func (r *Row) InternPartitionKey(in *Interner) {
	r.internedPartitionKey = in.Intern(string(r.partitionKey.slice(r.raw)))
}

// RowKey returns a zero-copy slice of the document's RowKey.
func (r *Row) RowKey() string { return string(r.rowKey.slice(r.raw)) }

// TimeStamp returns the document's TimeStamp field, present in master-node
// mode (synthesized at parse time if absent from the input).
func (r *Row) TimeStamp() string {
	if r.timeStamp.empty() {
		return ""
	}
	return string(r.timeStamp.slice(r.raw))
}

// RawSlice returns the row's underlying raw bytes, excluding Expires
// bookkeeping (the raw content is exactly what write_json reconstructs).
func (r *Row) RawSlice() []byte { return r.raw }

// ContentSize is the byte length counted toward a partition's content_size
// accounting (spec §4.4/P1): the length of the row's raw bytes, matching
// db_partition.rs's get_src_as_slice().len(). This is deliberately not
// len(WriteJSON()): WriteJSON can rewrite Expires to a different length
// than what raw already carries (e.g. truncating sub-second precision to
// 19 chars), and P1's invariant is defined over raw, not the rewritten
// form.
func (r *Row) ContentSize() int { return len(r.raw) }

// GetExpires returns the row's current Expires moment, or (0, false) if
// unset. Lock-free: reads a single atomic int64 (E1).
func (r *Row) GetExpires() (microtime.Micros, bool) {
	v := r.expiresValue.Load()
	if v == 0 {
		return 0, false
	}
	return microtime.Micros(v), true
}

// UpdateExpires sets the row's Expires moment (or clears it, when ok is
// false), returning the previous value. Lock-free (E1): callers holding
// only a shared read lock on the owning partition may call this.
func (r *Row) UpdateExpires(expires microtime.Micros, ok bool) (microtime.Micros, bool) {
	var newValue int64
	if ok {
		newValue = int64(expires)
	}
	old := r.expiresValue.Swap(newValue)
	if old == 0 {
		return 0, false
	}
	return microtime.Micros(old), true
}

// GetIDAsStr satisfies expindex.Item: a row is indexed by its RowKey.
func (r *Row) GetIDAsStr() string { return r.RowKey() }

// GetExpirationMoment satisfies expindex.Item.
func (r *Row) GetExpirationMoment() (microtime.Micros, bool) { return r.GetExpires() }

// GetLastReadAccess returns the moment this row was last read.
func (r *Row) GetLastReadAccess() microtime.Micros {
	return microtime.Micros(r.lastReadAccess.Load())
}

// UpdateLastReadAccess stamps the row as read at value.
func (r *Row) UpdateLastReadAccess(value microtime.Micros) {
	r.lastReadAccess.Store(int64(value))
}

// WriteJSON reconstructs the row's JSON representation with its live
// Expires value spliced in, excised, or left untouched, matching
// db_row.rs's write_json exactly:
//   - Expires unset and no Expires member present: raw is returned as-is.
//   - Expires unset but a member is present: the member (and one adjoining
//     comma) is excised.
//   - Expires set and a member is present: the member's value is replaced
//     in place.
//   - Expires set but no member is present: a new member is appended just
//     before the closing brace.
// For read-node rows (masterNode == false) this always returns raw
// unmodified, whatever their Expires member or live value.
func (r *Row) WriteJSON() []byte {
	if !r.masterNode {
		return r.raw
	}

	expiresValue, hasExpires := r.GetExpires()

	if !hasExpires {
		if r.expires == nil {
			return r.raw
		}

		if before, ok := findJSONSeparatorBefore(r.raw, r.expires.KeyStart-1); ok {
			out := make([]byte, 0, len(r.raw))
			out = append(out, r.raw[:before]...)
			out = append(out, r.raw[r.expires.ValueEnd:]...)
			return out
		}

		if after, ok := findJSONSeparatorAfter(r.raw, r.expires.ValueEnd); ok {
			out := make([]byte, 0, len(r.raw))
			out = append(out, r.raw[:r.expires.KeyStart]...)
			out = append(out, r.raw[after:]...)
			return out
		}

		out := make([]byte, 0, len(r.raw))
		out = append(out, r.raw[:r.expires.KeyStart]...)
		out = append(out, r.raw[r.expires.ValueEnd:]...)
		return out
	}

	if r.expires != nil {
		out := make([]byte, 0, len(r.raw)+32)
		out = append(out, r.raw[:r.expires.KeyStart]...)
		out = injectExpires(out, expiresValue)
		out = append(out, r.raw[r.expires.ValueEnd:]...)
		return out
	}

	endOfJSON := getTheEndOfTheJSON(r.raw)
	out := make([]byte, 0, len(r.raw)+40)
	out = append(out, r.raw[:endOfJSON]...)
	out = append(out, ',')
	out = injectExpires(out, expiresValue)
	out = append(out, r.raw[endOfJSON:]...)
	return out
}

func injectExpires(out []byte, value microtime.Micros) []byte {
	out = append(out, `"Expires":"`...)
	out = append(out, value.Format()...)
	out = append(out, '"')
	return out
}

// findJSONSeparatorBefore scans backward from pos over whitespace looking
// for a preceding ',' — mirrors find_json_separator_before exactly.
func findJSONSeparatorBefore(src []byte, pos int) (int, bool) {
	i := pos
	for i > 0 {
		b := src[i]
		if b <= 32 {
			i--
			continue
		}
		if b == ',' {
			return i, true
		}
		break
	}
	return 0, false
}

// findJSONSeparatorAfter scans forward from pos over whitespace looking
// for a following ',' — mirrors find_json_separator_after exactly.
func findJSONSeparatorAfter(src []byte, pos int) (int, bool) {
	i := pos
	for i < len(src) {
		b := src[i]
		if b <= 32 {
			i++
			continue
		}
		if b == ',' {
			return i + 1, true
		}
		break
	}
	return 0, false
}
