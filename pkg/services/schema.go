package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// schemaFile is the on-disk target schema declaration.
//
//	{"columns": ["First Name", "Last Name", "Email"], "identifier": "Email"}
type schemaFile struct {
	Columns    []string `json:"columns" yaml:"columns"`
	Identifier string   `json:"identifier" yaml:"identifier"`
}

// SchemaRegistry holds the target schema loaded once at startup.
type SchemaRegistry struct {
	schema *models.TargetSchema
}

// NewSchemaRegistry validates the given schema and wraps it.
func NewSchemaRegistry(schema *models.TargetSchema) (*SchemaRegistry, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	return &SchemaRegistry{schema: schema}, nil
}

// LoadSchemaRegistry reads the schema declaration at path. JSON and YAML are
// accepted, chosen by extension.
func LoadSchemaRegistry(path string) (*SchemaRegistry, error) {
	schema, err := LoadSchema(path)
	if err != nil {
		return nil, err
	}
	return &SchemaRegistry{schema: schema}, nil
}

// Schema returns the target schema. Callers must not modify it.
func (r *SchemaRegistry) Schema() *models.TargetSchema {
	return r.schema
}

// LoadSchema reads and validates a target schema declaration.
func LoadSchema(path string) (*models.TargetSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", apperrors.ErrSchema, path, err)
	}
	return ParseSchema(data, filepath.Ext(path))
}

// ParseSchema decodes a schema declaration. ext selects YAML (".yaml", ".yml")
// or JSON (anything else).
func ParseSchema(data []byte, ext string) (*models.TargetSchema, error) {
	var decl schemaFile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &decl); err != nil {
			return nil, fmt.Errorf("%w: invalid YAML: %v", apperrors.ErrSchema, err)
		}
	default:
		if err := json.Unmarshal(data, &decl); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", apperrors.ErrSchema, err)
		}
	}

	identifier := strings.TrimSpace(decl.Identifier)
	if identifier == "" {
		identifier = models.DefaultIdentifierField
	}

	schema := &models.TargetSchema{IdentifierField: identifier}
	for _, name := range decl.Columns {
		schema.Fields = append(schema.Fields, models.SchemaField{
			Name:     name,
			Required: name == identifier,
		})
	}

	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func validateSchema(schema *models.TargetSchema) error {
	if schema == nil || len(schema.Fields) == 0 {
		return fmt.Errorf("%w: target schema has no columns", apperrors.ErrSchema)
	}

	seen := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: blank column name", apperrors.ErrSchema)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate column %q", apperrors.ErrSchema, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
