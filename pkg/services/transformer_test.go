package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

func sampleTable() *models.SourceTable {
	return &models.SourceTable{
		Columns: []string{"Mobile", "E-mail Address", "Full Name", "Org"},
		Rows: []models.SourceRow{
			{"Mobile": "555-0100", "E-mail Address": "ada@example.com", "Full Name": "Ada", "Org": ""},
			{"Mobile": "", "E-mail Address": "bad@example", "Full Name": "Bob", "Org": "Acme"},
			{"Mobile": "555-0102", "E-mail Address": "cy@example.com", "Full Name": "Cy", "Org": "Initech"},
		},
	}
}

func cell(t *testing.T, table *models.ProjectedTable, row int, column string) *string {
	t.Helper()
	idx := table.ColumnIndex(column)
	require.GreaterOrEqual(t, idx, 0, "column %q missing", column)
	return table.Rows[row][idx]
}

func TestProject_SchemaOrderAndRowCount(t *testing.T) {
	mapping := models.FieldMapping{"Email": "E-mail Address", "Name": "Full Name"}

	projected, err := Project(sampleTable(), mapping, testSchema())
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Email", "Company", "Phone"}, projected.Columns)
	assert.Equal(t, 3, projected.Len())
	assert.Equal(t, "Ada", *cell(t, projected, 0, "Name"))
	assert.Equal(t, "bad@example", *cell(t, projected, 1, "Email"))
	assert.Nil(t, cell(t, projected, 0, "Company"))
	assert.Nil(t, cell(t, projected, 2, "Phone"))
}

func TestProject_EmptyAndUnmappedAreDistinct(t *testing.T) {
	mapping := models.FieldMapping{
		"Email":   "E-mail Address",
		"Company": "Org",
		"Phone":   models.IgnoreSource,
	}

	projected, err := Project(sampleTable(), mapping, testSchema())
	require.NoError(t, err)

	company := cell(t, projected, 0, "Company")
	require.NotNil(t, company, "mapped-but-empty must not become nil")
	assert.Equal(t, "", *company)
	assert.Nil(t, cell(t, projected, 0, "Phone"), "ignored field projects to nil")
	assert.Nil(t, cell(t, projected, 0, "Name"), "unmapped field projects to nil")
}

func TestProject_NoMappingYieldsNullColumns(t *testing.T) {
	projected, err := Project(sampleTable(), models.FieldMapping{}, testSchema())
	require.NoError(t, err)

	assert.Equal(t, 3, projected.Len())
	for _, row := range projected.Rows {
		for _, v := range row {
			assert.Nil(t, v)
		}
	}
}

func TestProject_EmptyTable(t *testing.T) {
	projected, err := Project(&models.SourceTable{Columns: []string{"a"}}, models.FieldMapping{}, testSchema())
	require.NoError(t, err)
	assert.Equal(t, 0, projected.Len())
	assert.Len(t, projected.Columns, 4)
}

func TestProject_EmptySchema(t *testing.T) {
	_, err := Project(sampleTable(), models.FieldMapping{}, &models.TargetSchema{})
	assert.ErrorIs(t, err, apperrors.ErrSchema)
}

func TestProject_ValuesAreIndependentCopies(t *testing.T) {
	table := sampleTable()
	projected, err := Project(table, models.FieldMapping{"Email": "E-mail Address"}, testSchema())
	require.NoError(t, err)

	*cell(t, projected, 0, "Email") = "changed"
	assert.Equal(t, "ada@example.com", table.Rows[0]["E-mail Address"])
	assert.Equal(t, "cy@example.com", *cell(t, projected, 2, "Email"))
}
