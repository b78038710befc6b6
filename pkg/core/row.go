package core

// Row is an opaque mapping from storage column name to raw value.
// Rows are produced by drivers and consumed by entity materialization;
// nothing above the driver layer interprets column names.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
