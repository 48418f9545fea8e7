package dbtable

// GetTableAsJSONArray renders every row in the table as a single JSON
// array, in partition-then-row order. The buffer is pre-sized from the
// average row size estimate so the common case needs no reallocation,
// mirroring get_table_as_json_array's JsonArrayWriter usage.
func (t *Table) GetTableAsJSONArray() []byte {
	estimate := (t.avgSize.Get() + 2) * t.GetRowsAmount()
	out := make([]byte, 0, estimate+2)
	out = append(out, '[')

	first := true
	for _, p := range t.partitions.all() {
		for _, row := range p.GetAllRows() {
			if first {
				first = false
			} else {
				out = append(out, ',')
			}
			out = append(out, row.WriteJSON()...)
		}
	}

	out = append(out, ']')
	return out
}

// GetPartitionAsJSONArray renders partitionKey's rows as a JSON array, or
// (nil, false) if the partition does not exist.
func (t *Table) GetPartitionAsJSONArray(partitionKey string) ([]byte, bool) {
	p, ok := t.partitions.get(partitionKey)
	if !ok {
		return nil, false
	}

	rows := p.GetAllRows()
	estimate := (t.avgSize.Get() + 2) * len(rows)
	out := make([]byte, 0, estimate+2)
	out = append(out, '[')
	for i, row := range rows {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, row.WriteJSON()...)
	}
	out = append(out, ']')
	return out, true
}
