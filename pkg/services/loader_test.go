package services

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
)

func TestDataLoader_BOMAndSemicolon(t *testing.T) {
	loader := NewDataLoader(zap.NewNop())
	raw := []byte("\xEF\xBB\xBFFull Name;E-mail Address;Org\nAda Lovelace;ada@example.com;Analytical\nAlan Turing;alan@example.com;Bletchley\n")

	table, err := loader.Load("leads.csv", raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"Full Name", "E-mail Address", "Org"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "ada@example.com", table.Rows[0]["E-mail Address"])
	assert.Equal(t, "Bletchley", table.Rows[1]["Org"])
}

func TestDataLoader_DelimiterDetection(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		columns []string
	}{
		{"comma", "a,b,c\n1,2,3\n", []string{"a", "b", "c"}},
		{"tab", "a\tb\n1\t2\n", []string{"a", "b"}},
		{"pipe", "a|b\n1|2\n", []string{"a", "b"}},
		{"quoted commas under semicolon", "name;note\n\"Doe, J\";\"x, y, z\"\n", []string{"name", "note"}},
		{"quoted semicolons under comma", "name,note\n\"a;b\",\"c;d;e\"\n", []string{"name", "note"}},
		{"single column", "Email\na@example.com\nb@example.com\n", []string{"Email"}},
		{"header only", "Email,Name\n", []string{"Email", "Name"}},
		{"equal agreement prefers more fields", "a,b;c;d\n1,2;3;4\n", []string{"a,b", "c", "d"}},
	}

	loader := NewDataLoader(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := loader.Load("in.csv", []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.columns, table.Columns)
		})
	}
}

func TestDataLoader_PreservesOrderAndValues(t *testing.T) {
	loader := NewDataLoader(zap.NewNop())
	raw := []byte("z,a,m\n 3 ,,x\n2,b,\n1,c,y\n")

	table, err := loader.Load("in.csv", raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, " 3 ", table.Rows[0]["z"], "cells are not trimmed")
	assert.Equal(t, "", table.Rows[0]["a"])
	assert.Equal(t, "2", table.Rows[1]["z"])
	assert.Equal(t, "1", table.Rows[2]["z"])
}

func TestDataLoader_ShortRowsArePadded(t *testing.T) {
	loader := NewDataLoader(zap.NewNop())
	raw := []byte("a,b,c\n1,2,3\n4,5\n6,7,8\n")

	table, err := loader.Load("in.csv", raw)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)

	value, ok := table.Rows[1]["c"]
	assert.True(t, ok)
	assert.Equal(t, "", value)
}

func TestDataLoader_WideRowNamesLine(t *testing.T) {
	loader := NewDataLoader(zap.NewNop())

	_, err := loader.Load("in.csv", []byte("Name,Email\nA,a@x.com\nB,b@x.com,extra\n"))
	require.ErrorIs(t, err, apperrors.ErrLoad)
	assert.ErrorContains(t, err, "line 3")
}

func TestDataLoader_HeaderNormalization(t *testing.T) {
	loader := NewDataLoader(zap.NewNop())

	table, err := loader.Load("in.csv", []byte("Email,,Email,Email\na,b,c,d\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Email", "Unnamed: 1", "Email.1", "Email.2"}, table.Columns)
	assert.Equal(t, "c", table.Rows[0]["Email.1"])

	tests := []struct {
		header string
		want   []string
	}{
		{"a,a.1,a", []string{"a", "a.1", "a.2"}},
		{"a,a,a.1", []string{"a", "a.1", "a.1.1"}},
		{"a,a.2,a,a,a", []string{"a", "a.2", "a.1", "a.3", "a.4"}},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			table, err := loader.Load("in.csv", []byte(tt.header+rowFor(len(tt.want))))
			require.NoError(t, err)
			assert.Equal(t, tt.want, table.Columns)
			require.Len(t, table.Rows, 1)
			require.Len(t, table.Rows[0], len(tt.want), "no cell is overwritten")
			for i, c := range tt.want {
				assert.Equal(t, strconv.Itoa(i+1), table.Rows[0][c])
			}
		})
	}
}

// rowFor returns a header terminator plus one record "1,2,...,n".
func rowFor(n int) string {
	cells := make([]string, n)
	for i := range cells {
		cells[i] = strconv.Itoa(i + 1)
	}
	return "\n" + strings.Join(cells, ",") + "\n"
}

func TestDataLoader_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", []byte("")},
		{"whitespace only", []byte("  \n\n")},
		{"bom only", []byte("\xEF\xBB\xBF")},
		{"invalid utf-8", []byte("a,b\n\xff\xfe,1\n")},
		{"row wider than header", []byte("a,b\n1,2\n3,4,5\n")},
		{"no consistent delimiter", []byte("a;b\n1;2;3;4\n5\n6,7,8\n9|\n")},
		{"corrupt spreadsheet", []byte("PK\x03\x04not really a zip")},
	}

	loader := NewDataLoader(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load("in.csv", tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrLoad)
		})
	}
}

func TestDataLoader_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)

	for _, values := range [][]string{
		{"Full Name", "E-mail Address"},
		{"Ada Lovelace", "ada@example.com"},
		{"", ""},
		{"Alan Turing", "alan@example.com"},
	} {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := NewDataLoader(zap.NewNop()).Load("leads.xlsx", buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []string{"Full Name", "E-mail Address"}, table.Columns)
	require.Len(t, table.Rows, 2, "blank rows are skipped")
	assert.Equal(t, "alan@example.com", table.Rows[1]["E-mail Address"])
}
