package services

import (
	"fmt"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// Project shapes table like schema using mapping. Columns follow schema order
// and every source row yields exactly one output row. Values are copied
// unchanged; unmapped and ignored fields are nil, while a mapped but empty
// source cell stays an empty string.
func Project(table *models.SourceTable, mapping models.FieldMapping, schema *models.TargetSchema) (*models.ProjectedTable, error) {
	if schema == nil || len(schema.Fields) == 0 {
		return nil, fmt.Errorf("%w: cannot project onto an empty schema", apperrors.ErrSchema)
	}

	columns := schema.Names()
	sources := make([]string, len(columns))
	mapped := make([]bool, len(columns))
	for i, target := range columns {
		sources[i], mapped[i] = mapping.Bound(target)
	}

	projected := &models.ProjectedTable{
		Columns: columns,
		Rows:    make([][]*string, 0, len(table.Rows)),
	}
	for _, row := range table.Rows {
		out := make([]*string, len(columns))
		for i := range columns {
			if !mapped[i] {
				continue
			}
			if value, ok := row[sources[i]]; ok {
				out[i] = &value
			}
		}
		projected.Rows = append(projected.Rows, out)
	}
	return projected, nil
}
