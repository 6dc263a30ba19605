package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMapValueScan(t *testing.T) {
	original := JSONMap{
		"csv_path": "./data/sample.csv",
		"nested":   map[string]interface{}{"depth": float64(2)},
	}

	val, err := original.Value()
	require.NoError(t, err)

	var decoded JSONMap
	require.NoError(t, decoded.Scan(val))
	assert.Equal(t, "./data/sample.csv", decoded["csv_path"])
	assert.Equal(t, float64(2), decoded["nested"].(map[string]interface{})["depth"])
}

func TestJSONMapScanNil(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(nil))
	assert.NotNil(t, m)
	assert.Empty(t, m)
}

func TestJSONMapNilValue(t *testing.T) {
	var m JSONMap
	val, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), val)
}

func TestJSONMapValidate(t *testing.T) {
	valid := JSONMap{
		"rows_read": 42,
		"ok":        true,
		"path":      "x.csv",
		"ratio":     0.5,
		"tags":      []interface{}{"a", "b"},
		"nested":    map[string]interface{}{"k": "v"},
		"absent":    nil,
	}
	assert.NoError(t, valid.Validate())

	invalid := JSONMap{"ch": make(chan int)}
	assert.Error(t, invalid.Validate())

	nestedInvalid := JSONMap{"nested": map[string]interface{}{"f": func() {}}}
	assert.Error(t, nestedInvalid.Validate())
}
