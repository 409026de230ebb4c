package models

import "time"

// Template is a named, persisted snapshot of a field mapping.
// Name is the sanitized key the template is stored under.
type Template struct {
	Name      string        `json:"name"`
	Pairs     []MappingPair `json:"pairs"`
	CreatedAt time.Time     `json:"created_at"`
}

// Mapping returns the template as a FieldMapping value.
func (t *Template) Mapping() FieldMapping {
	return MappingFromPairs(t.Pairs)
}
