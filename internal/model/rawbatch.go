package model

// RawBatch is the intermediate type produced by connectors and consumed by the sanitizer.
// Values are untyped text exactly as exported by the source.
type RawBatch struct {
	Source string     // provider name (e.g. "file", "influx")
	Header []string   // column names, in export order
	Rows   [][]string // one slice per sample, aligned with Header
}

// Len returns the number of rows in the batch.
func (b RawBatch) Len() int { return len(b.Rows) }

// Column returns the index of the named column, or -1.
func (b RawBatch) Column(name string) int {
	for i, h := range b.Header {
		if h == name {
			return i
		}
	}
	return -1
}
