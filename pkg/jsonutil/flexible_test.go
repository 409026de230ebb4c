package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{`"E-mail Address"`, "E-mail Address"},
		{`null`, ""},
		{``, ""},
		{`2024`, "2024"},
		{`1.5`, "1.5"},
		{`true`, "true"},
		{`["a"]`, `["a"]`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FlexibleStringValue(json.RawMessage(tt.raw)), "raw=%s", tt.raw)
	}
}

func TestFlexibleStringMap(t *testing.T) {
	m, err := FlexibleStringMap([]byte(`{"Email": "E-mail Address", "Name": null, "Year": 2024}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"Email": "E-mail Address", "Year": "2024"}, m)
}

func TestFlexibleStringMap_RejectsNonObject(t *testing.T) {
	_, err := FlexibleStringMap([]byte(`["Email"]`))
	require.Error(t, err)
}
