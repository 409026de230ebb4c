package models

// SourceRow maps a source column name to its raw cell value.
type SourceRow map[string]string

// SourceTable is a parsed upload. Columns keep header order and Rows keep
// file order. It is read-only once produced by the loader.
type SourceTable struct {
	Columns []string    `json:"columns"`
	Rows    []SourceRow `json:"rows"`
}

// HasColumn reports whether name is one of the table's columns.
func (t *SourceTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Preview returns up to n rows as ordered cell slices.
func (t *SourceTable) Preview(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	preview := make([][]string, 0, n)
	for _, row := range t.Rows[:n] {
		cells := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cells[i] = row[c]
		}
		preview = append(preview, cells)
	}
	return preview
}

// ProjectedTable is shaped exactly like the target schema. A nil cell means
// the field is unmapped; a pointer to "" means the mapped source cell was empty.
type ProjectedTable struct {
	Columns []string    `json:"columns"`
	Rows    [][]*string `json:"rows"`
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *ProjectedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (t *ProjectedTable) Len() int {
	return len(t.Rows)
}
