package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMetadata(t *testing.T) {
	out := SanitizeMetadata(map[string]interface{}{
		"name":    "report.pdf",
		"count":   42,
		"ratio":   0.5,
		"flag":    true,
		"off":     false,
		"missing": nil,
		"nested":  map[string]interface{}{"a": 1},
		"list":    []interface{}{"x", "y"},
	})

	assert.Equal(t, "report.pdf", out["name"])
	assert.Equal(t, float64(42), out["count"])
	assert.Equal(t, 0.5, out["ratio"])
	assert.Equal(t, "true", out["flag"])
	assert.Equal(t, "false", out["off"])
	assert.NotContains(t, out, "missing")
	assert.Equal(t, `{"a":1}`, out["nested"])
	assert.Equal(t, `["x","y"]`, out["list"])
}

func TestSanitizeMetadataNil(t *testing.T) {
	out := SanitizeMetadata(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
