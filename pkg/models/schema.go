// Package models contains domain types for cleanlist.
package models

// DefaultIdentifierField is the target field that is required and verified
// when the schema file does not name one.
const DefaultIdentifierField = "Email"

// SchemaField is one column of the target schema.
type SchemaField struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// TargetSchema is the fixed, ordered list of output fields every upload is
// mapped onto. It is immutable after load.
type TargetSchema struct {
	Fields          []SchemaField `json:"fields"`
	IdentifierField string        `json:"identifier_field"`
}

// Names returns the field names in declared order.
func (s *TargetSchema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether name is a field of the schema.
func (s *TargetSchema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// RequiredFields returns the names of required fields in declared order.
func (s *TargetSchema) RequiredFields() []string {
	var required []string
	for _, f := range s.Fields {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return required
}
