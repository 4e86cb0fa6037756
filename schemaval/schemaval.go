// Package schemaval implements the constrained JSON-Schema subset runtime
// validator used to check skill and op inputs/outputs against their
// declared schemas: type, enum, required, properties, additionalProperties,
// string/number/array bounds, and the uri/date-time formats. It intentionally
// does not pull in a general-purpose JSON Schema library: the accepted
// keyword set is small, fixed, and needs stable, short error codes rather
// than the verbose multi-path reports those libraries produce.
package schemaval

import (
	"fmt"
	"net/url"
	"time"
)

// Error is a single schema validation failure, carrying a stable short
// code (for programmatic handling and audit logs) alongside a
// human-readable message and structured metadata about the violation.
type Error struct {
	Code    string
	Message string
	Meta    map[string]interface{}
}

func (e *Error) Error() string { return e.Message }

func newError(code, message string, meta map[string]interface{}) *Error {
	return &Error{Code: code, Message: message, Meta: meta}
}

// Schema is a JSON-Schema-subset document, represented the same way it is
// stored in a registry entry: a generic map walked recursively.
type Schema = map[string]interface{}

// Validate checks payload against schema, labeling the root of the payload
// "root" in error paths (ValidateLabeled takes a caller-chosen label). It
// returns the first violation encountered; validation order mirrors the
// order keywords are checked in the reference implementation this runtime
// is built from: enum, then type, then (for objects) required, unknown
// fields (additionalProperties), then each declared property,
// then the type-specific constraints (array bounds/items, string format and
// length, number range).
func Validate(payload interface{}, schema Schema) error {
	return validate(payload, schema, "root")
}

// ValidateLabeled is Validate with a caller-chosen root label, used so
// input and output validation failures read as "inputs.foo" / "outputs.bar"
// rather than "root.foo".
func ValidateLabeled(payload interface{}, schema Schema, label string) error {
	return validate(payload, schema, label)
}

func validate(payload interface{}, schema Schema, label string) error {
	if enumValues, ok := schema["enum"].([]interface{}); ok {
		if err := validateEnum(payload, enumValues, label); err != nil {
			return err
		}
	}

	schemaType, _ := schema["type"].(string)
	if schemaType != "" {
		if !matchesType(payload, schemaType) {
			return newError("schema_type_mismatch",
				fmt.Sprintf("%s must be of type %s.", label, schemaType),
				map[string]interface{}{"expected": schemaType})
		}
	}

	switch schemaType {
	case "object":
		if err := validateObject(payload, schema, label); err != nil {
			return err
		}
	case "array":
		if err := validateArrayConstraints(payload, schema, label); err != nil {
			return err
		}
	case "string":
		if format, ok := schema["format"].(string); ok {
			if err := validateFormat(payload, format, label); err != nil {
				return err
			}
		}
		if err := validateStringConstraints(payload, schema, label); err != nil {
			return err
		}
	case "integer", "number":
		if err := validateNumberConstraints(payload, schema, label); err != nil {
			return err
		}
	}
	return nil
}

func matchesType(payload interface{}, schemaType string) bool {
	switch schemaType {
	case "string":
		_, ok := payload.(string)
		return ok
	case "array":
		_, ok := payload.([]interface{})
		return ok
	case "object":
		_, ok := payload.(map[string]interface{})
		return ok
	case "integer":
		n, ok := payload.(float64)
		return ok && n == float64(int64(n))
	case "number":
		_, ok := payload.(float64)
		return ok
	case "boolean":
		_, ok := payload.(bool)
		return ok
	default:
		return true
	}
}

func validateObject(payload interface{}, schema Schema, label string) error {
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return nil // type mismatch already reported above
	}

	required, _ := schema["required"].([]interface{})
	var missing []string
	for _, r := range required {
		key, _ := r.(string)
		if _, present := obj[key]; !present {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return newError("schema_missing_required",
			fmt.Sprintf("Missing required %s fields: %v", label, missing),
			map[string]interface{}{"missing": missing})
	}

	properties, _ := schema["properties"].(map[string]interface{})

	additional, hasAdditional := schema["additionalProperties"]
	allowAdditionalAll := !hasAdditional && len(properties) == 0
	allowAdditionalTrue, additionalIsBool := additional.(bool)
	additionalSchema, additionalIsSchema := additional.(map[string]interface{})

	var unknown []string
	for key := range obj {
		if _, declared := properties[key]; declared {
			continue
		}
		unknown = append(unknown, key)
	}
	if len(unknown) > 0 {
		switch {
		case allowAdditionalAll || (additionalIsBool && allowAdditionalTrue):
			// additional properties permitted, nothing to do
		case additionalIsSchema:
			for _, key := range unknown {
				if err := validate(obj[key], additionalSchema, fmt.Sprintf("%s.%s", label, key)); err != nil {
					return err
				}
			}
		default:
			return newError("schema_unknown_field",
				fmt.Sprintf("Unknown %s fields: %v", label, unknown),
				map[string]interface{}{"unknown": unknown})
		}
	}

	for key, propSchemaRaw := range properties {
		value, present := obj[key]
		if !present {
			continue
		}
		propSchema, _ := propSchemaRaw.(map[string]interface{})
		if err := validate(value, propSchema, fmt.Sprintf("%s.%s", label, key)); err != nil {
			return err
		}
	}
	return nil
}

func validateArrayConstraints(payload interface{}, schema Schema, label string) error {
	items, ok := payload.([]interface{})
	if !ok {
		return nil
	}
	if minItems, ok := numberField(schema, "minItems"); ok && float64(len(items)) < minItems {
		return newError("schema_min_items",
			fmt.Sprintf("%s must include at least %v items.", label, minItems),
			map[string]interface{}{"minItems": minItems})
	}
	if maxItems, ok := numberField(schema, "maxItems"); ok && float64(len(items)) > maxItems {
		return newError("schema_max_items",
			fmt.Sprintf("%s must include at most %v items.", label, maxItems),
			map[string]interface{}{"maxItems": maxItems})
	}
	if itemSchemaRaw, ok := schema["items"]; ok {
		itemSchema, _ := itemSchemaRaw.(map[string]interface{})
		for idx, item := range items {
			if err := validate(item, itemSchema, fmt.Sprintf("%s[%d]", label, idx)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateFormat(payload interface{}, format, label string) error {
	value, ok := payload.(string)
	if !ok {
		return newError("schema_format_type_mismatch",
			fmt.Sprintf("%s must be a string for format %s.", label, format),
			map[string]interface{}{"expected_format": format})
	}
	switch format {
	case "uri":
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return newError("schema_format_invalid",
				fmt.Sprintf("%s must be a valid URI.", label),
				map[string]interface{}{"format": format})
		}
	case "date-time":
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return newError("schema_format_invalid",
				fmt.Sprintf("%s must be a valid date-time.", label),
				map[string]interface{}{"format": format})
		}
	}
	return nil
}

func validateEnum(value interface{}, enumValues []interface{}, label string) error {
	for _, allowed := range enumValues {
		if allowed == value {
			return nil
		}
	}
	return newError("schema_enum_mismatch",
		fmt.Sprintf("%s must be one of %v.", label, enumValues),
		map[string]interface{}{"enum": enumValues})
}

func validateStringConstraints(payload interface{}, schema Schema, label string) error {
	value, ok := payload.(string)
	if !ok {
		return nil
	}
	if minLength, ok := numberField(schema, "minLength"); ok && float64(len([]rune(value))) < minLength {
		return newError("schema_min_length",
			fmt.Sprintf("%s must be at least %v characters.", label, minLength),
			map[string]interface{}{"minLength": minLength})
	}
	if maxLength, ok := numberField(schema, "maxLength"); ok && float64(len([]rune(value))) > maxLength {
		return newError("schema_max_length",
			fmt.Sprintf("%s must be at most %v characters.", label, maxLength),
			map[string]interface{}{"maxLength": maxLength})
	}
	return nil
}

func validateNumberConstraints(payload interface{}, schema Schema, label string) error {
	value, ok := payload.(float64)
	if !ok {
		return nil
	}
	if minimum, ok := numberField(schema, "minimum"); ok && value < minimum {
		return newError("schema_minimum",
			fmt.Sprintf("%s must be >= %v.", label, minimum),
			map[string]interface{}{"minimum": minimum})
	}
	if maximum, ok := numberField(schema, "maximum"); ok && value > maximum {
		return newError("schema_maximum",
			fmt.Sprintf("%s must be <= %v.", label, maximum),
			map[string]interface{}{"maximum": maximum})
	}
	return nil
}

func numberField(schema Schema, key string) (float64, bool) {
	v, ok := schema[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(float64)
	return n, ok
}
