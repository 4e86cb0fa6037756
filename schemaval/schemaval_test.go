package schemaval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_TypeMismatch(t *testing.T) {
	err := Validate("not a number", Schema{"type": "integer"})
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "schema_type_mismatch", schemaErr.Code)
}

func TestValidate_IntegerVsNumber(t *testing.T) {
	assert.NoError(t, Validate(float64(3), Schema{"type": "integer"}))
	assert.Error(t, Validate(float64(3.5), Schema{"type": "integer"}))
	assert.NoError(t, Validate(float64(3.5), Schema{"type": "number"}))
}

func TestValidate_MissingRequired(t *testing.T) {
	schema := Schema{
		"type":       "object",
		"properties": map[string]interface{}{"name": Schema{"type": "string"}},
		"required":   []interface{}{"name"},
	}
	err := Validate(map[string]interface{}{}, schema)
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "schema_missing_required", schemaErr.Code)
}

func TestValidate_UnknownFieldRejectedByDefault(t *testing.T) {
	schema := Schema{
		"type":       "object",
		"properties": map[string]interface{}{"name": Schema{"type": "string"}},
	}
	err := Validate(map[string]interface{}{"name": "a", "extra": 1}, schema)
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "schema_unknown_field", schemaErr.Code)
}

func TestValidate_AdditionalPropertiesTrueAllowsUnknownField(t *testing.T) {
	schema := Schema{
		"type":                 "object",
		"properties":           map[string]interface{}{"name": Schema{"type": "string"}},
		"additionalProperties": true,
	}
	assert.NoError(t, Validate(map[string]interface{}{"name": "a", "extra": 1}, schema))
}

func TestValidate_StringLengthBounds(t *testing.T) {
	schema := Schema{"type": "string", "minLength": float64(2), "maxLength": float64(4)}
	assert.Error(t, Validate("a", schema))
	assert.NoError(t, Validate("ab", schema))
	assert.NoError(t, Validate("abcd", schema))
	assert.Error(t, Validate("abcde", schema))
}

func TestValidate_NumberBounds(t *testing.T) {
	schema := Schema{"type": "integer", "minimum": float64(1), "maximum": float64(10)}
	assert.Error(t, Validate(float64(0), schema))
	assert.NoError(t, Validate(float64(5), schema))
	assert.Error(t, Validate(float64(11), schema))
}

func TestValidate_ArrayItemsRecursion(t *testing.T) {
	schema := Schema{
		"type":     "array",
		"minItems": float64(1),
		"items":    Schema{"type": "string"},
	}
	assert.NoError(t, Validate([]interface{}{"a", "b"}, schema))
	assert.Error(t, Validate([]interface{}{}, schema))
	assert.Error(t, Validate([]interface{}{1.0}, schema))
}

func TestValidate_EnumMismatch(t *testing.T) {
	schema := Schema{"type": "string", "enum": []interface{}{"a", "b"}}
	assert.NoError(t, Validate("a", schema))
	err := Validate("c", schema)
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "schema_enum_mismatch", schemaErr.Code)
}

func TestValidate_FormatURIAndDateTime(t *testing.T) {
	assert.NoError(t, Validate("https://example.com", Schema{"type": "string", "format": "uri"}))
	assert.Error(t, Validate("not a uri", Schema{"type": "string", "format": "uri"}))
	assert.NoError(t, Validate("2024-01-01T00:00:00Z", Schema{"type": "string", "format": "date-time"}))
	assert.Error(t, Validate("2024-01-01", Schema{"type": "string", "format": "date-time"}))
}

func TestValidateLabeled_UsesCustomRootLabel(t *testing.T) {
	err := ValidateLabeled(float64(1), Schema{"type": "string"}, "outputs")
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Message, "outputs")
}
