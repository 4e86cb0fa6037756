// Package pipeline statically validates pipeline skill wiring at registry
// load time and interprets pipeline skills at execution time.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sorhq/sor/core"
)

// Target is the minimal view of a resolvable skill or op a pipeline step
// can wire into: its capabilities and declared schemas.
type Target struct {
	Capabilities  []string
	InputsSchema  core.Schema
	OutputsSchema core.Schema
}

// Resolver looks up a step's declared target among the skills and ops
// known at validation time.
type Resolver interface {
	ResolveSkill(name, version string) (*Target, bool)
	ResolveOp(name, version string) (*Target, bool)
}

// ValidationResult is the outcome of statically validating a pipeline
// skill: any wiring errors found, and the capability closure across every
// step's resolved target (registry loading rejects a pipeline whose
// declared capabilities differ from it).
type ValidationResult struct {
	Errors       []string
	Capabilities []string
}

// ValidatePipelineSkill checks every step's input/output wiring against
// its resolved target's schemas and the pipeline's own declared
// inputs/outputs schema, per the structural-compatibility rules in
// ValidateSchemaCompatibility. It never executes anything; it only walks
// schemas.
func ValidatePipelineSkill(skill *core.SkillDefinition, resolver Resolver) ValidationResult {
	var errs []string
	capSet := map[string]bool{}

	pipelineInputs := schemaProperties(skill.InputsSchema)
	outputRequired := stringSet(schemaRequired(skill.OutputsSchema))
	pipelineOutputs := schemaProperties(skill.OutputsSchema)
	mappedOutputs := map[string]bool{}

	stepOutputs := map[string]map[string]core.Schema{}

	for _, step := range skill.Steps {
		var target *Target
		var ok bool
		if step.Target.Kind == core.CallTargetSkill {
			target, ok = resolver.ResolveSkill(step.Target.Name, step.Target.Version)
			if !ok {
				errs = append(errs, fmt.Sprintf("pipeline step %s references unknown skill %s", step.StepID, step.Target.Name))
				continue
			}
		} else {
			target, ok = resolver.ResolveOp(step.Target.Name, step.Target.Version)
			if !ok {
				errs = append(errs, fmt.Sprintf("pipeline step %s references unknown op %s", step.StepID, step.Target.Name))
				continue
			}
		}

		for _, cap := range target.Capabilities {
			capSet[cap] = true
		}

		targetInputProps := schemaProperties(target.InputsSchema)
		targetOutputProps := schemaProperties(target.OutputsSchema)
		requiredInputs := stringSet(schemaRequired(target.InputsSchema))

		mappedInputs := map[string]bool{}
		for name := range step.Inputs {
			mappedInputs[name] = true
		}
		var missingRequired []string
		for name := range requiredInputs {
			if !mappedInputs[name] {
				missingRequired = append(missingRequired, name)
			}
		}
		if len(missingRequired) > 0 {
			sort.Strings(missingRequired)
			errs = append(errs, fmt.Sprintf("pipeline step %s missing required inputs: %v", step.StepID, missingRequired))
		}

		for inputName, source := range step.Inputs {
			targetSchema, declared := targetInputProps[inputName]
			if !declared {
				errs = append(errs, fmt.Sprintf("pipeline step %s maps unknown input %s", step.StepID, inputName))
				continue
			}
			sourceSchema, sourceErrs := resolveSource(step.StepID, source, pipelineInputs, stepOutputs)
			errs = append(errs, sourceErrs...)
			if sourceSchema == nil {
				continue
			}
			errs = append(errs, ValidateSchemaCompatibility(sourceSchema, targetSchema, fmt.Sprintf("pipeline step %s input %s", step.StepID, inputName))...)
		}

		outputFields := map[string]core.Schema{}
		for outputName, destination := range step.Outputs {
			targetSchema, declared := targetOutputProps[outputName]
			if !declared {
				errs = append(errs, fmt.Sprintf("pipeline step %s maps unknown output %s", step.StepID, outputName))
				continue
			}
			outputFields[outputName] = targetSchema
			if strings.HasPrefix(destination, "$outputs.") {
				field := strings.TrimPrefix(destination, "$outputs.")
				mappedOutputs[field] = true
				pipelineFieldSchema, declaredOut := pipelineOutputs[field]
				if !declaredOut {
					errs = append(errs, fmt.Sprintf("pipeline step %s maps to unknown pipeline output %s", step.StepID, field))
				} else {
					errs = append(errs, ValidateSchemaCompatibility(targetSchema, pipelineFieldSchema, fmt.Sprintf("pipeline output %s", field))...)
				}
			}
		}
		stepOutputs[step.StepID] = outputFields
	}

	var missingOutputs []string
	for field := range outputRequired {
		if !mappedOutputs[field] {
			missingOutputs = append(missingOutputs, field)
		}
	}
	if len(missingOutputs) > 0 {
		sort.Strings(missingOutputs)
		errs = append(errs, fmt.Sprintf("pipeline outputs missing required fields: %v", missingOutputs))
	}

	caps := make([]string, 0, len(capSet))
	for cap := range capSet {
		caps = append(caps, cap)
	}
	sort.Strings(caps)
	return ValidationResult{Errors: errs, Capabilities: caps}
}

func resolveSource(stepID, source string, pipelineInputs map[string]core.Schema, stepOutputs map[string]map[string]core.Schema) (core.Schema, []string) {
	if strings.HasPrefix(source, "$inputs.") {
		field := strings.TrimPrefix(source, "$inputs.")
		schema, ok := pipelineInputs[field]
		if !ok {
			return nil, []string{fmt.Sprintf("pipeline step %s references unknown pipeline input %s", stepID, field)}
		}
		return schema, nil
	}
	if strings.HasPrefix(source, "$step.") {
		parts := strings.Split(source, ".")
		if len(parts) < 3 {
			return nil, []string{fmt.Sprintf("pipeline step %s has invalid source %s", stepID, source)}
		}
		refStepID, field := parts[1], parts[2]
		outputs, ok := stepOutputs[refStepID]
		if !ok {
			return nil, []string{fmt.Sprintf("pipeline step %s references unknown step output %s", stepID, refStepID)}
		}
		schema, ok := outputs[field]
		if !ok {
			return nil, []string{fmt.Sprintf("pipeline step %s references unknown output field %s from %s", stepID, field, refStepID)}
		}
		return schema, nil
	}
	return nil, []string{fmt.Sprintf("pipeline step %s has invalid source %s", stepID, source)}
}

// ValidateSchemaCompatibility checks that a source schema (an upstream
// input or a step's output) satisfies a downstream target schema: same
// base type, enum subset, tightened-or-equal min/max bounds, recursive
// array items, and object required/additionalProperties narrowing.
func ValidateSchemaCompatibility(source, target core.Schema, label string) []string {
	var errs []string
	sourceType, _ := source["type"].(string)
	targetType, _ := target["type"].(string)

	if targetType != "" {
		if sourceType == "" {
			return append(errs, fmt.Sprintf("%s missing source type for required %s", label, targetType))
		}
		if sourceType != targetType {
			return append(errs, fmt.Sprintf("%s type %s incompatible with required %s", label, sourceType, targetType))
		}
	}

	if targetEnum, ok := target["enum"].([]interface{}); ok {
		sourceEnum, ok := source["enum"].([]interface{})
		if !ok {
			errs = append(errs, fmt.Sprintf("%s missing source enum constraint", label))
		} else {
			var missing []interface{}
			for _, v := range sourceEnum {
				if !containsValue(targetEnum, v) {
					missing = append(missing, v)
				}
			}
			if len(missing) > 0 {
				errs = append(errs, fmt.Sprintf("%s enum values not allowed: %v", label, missing))
			}
		}
	}

	switch targetType {
	case "string":
		errs = append(errs, validateStringCompat(source, target, label)...)
	case "integer", "number":
		errs = append(errs, validateMinConstraint(source, target, label, "minimum")...)
		errs = append(errs, validateMaxConstraint(source, target, label, "maximum")...)
	case "array":
		errs = append(errs, validateArrayCompat(source, target, label)...)
	case "object":
		errs = append(errs, validateObjectCompat(source, target, label)...)
	}
	return errs
}

func validateStringCompat(source, target core.Schema, label string) []string {
	var errs []string
	if targetFormat, ok := target["format"].(string); ok {
		sourceFormat, ok := source["format"].(string)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s missing source format constraint", label))
		} else if sourceFormat != targetFormat {
			errs = append(errs, fmt.Sprintf("%s format %s incompatible with %s", label, sourceFormat, targetFormat))
		}
	}
	errs = append(errs, validateMinConstraint(source, target, label, "minLength")...)
	errs = append(errs, validateMaxConstraint(source, target, label, "maxLength")...)
	return errs
}

func validateArrayCompat(source, target core.Schema, label string) []string {
	var errs []string
	errs = append(errs, validateMinConstraint(source, target, label, "minItems")...)
	errs = append(errs, validateMaxConstraint(source, target, label, "maxItems")...)
	if targetItems, ok := target["items"].(map[string]interface{}); ok {
		sourceItems, ok := source["items"].(map[string]interface{})
		if !ok {
			errs = append(errs, fmt.Sprintf("%s missing source items schema", label))
		} else {
			errs = append(errs, ValidateSchemaCompatibility(sourceItems, targetItems, label+" items")...)
		}
	}
	return errs
}

func validateObjectCompat(source, target core.Schema, label string) []string {
	var errs []string
	targetRequired := stringSet(schemaRequired(target))
	sourceRequired := stringSet(schemaRequired(source))
	var missingRequired []string
	for field := range targetRequired {
		if !sourceRequired[field] {
			missingRequired = append(missingRequired, field)
		}
	}
	if len(missingRequired) > 0 {
		sort.Strings(missingRequired)
		errs = append(errs, fmt.Sprintf("%s missing required fields %v", label, missingRequired))
	}

	sourceProps := schemaProperties(source)
	targetProps := schemaProperties(target)
	requiredFields := make([]string, 0, len(targetRequired))
	for field := range targetRequired {
		requiredFields = append(requiredFields, field)
	}
	sort.Strings(requiredFields)
	for _, field := range requiredFields {
		targetSchema, ok := targetProps[field]
		if !ok {
			continue
		}
		sourceSchema, ok := sourceProps[field]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s missing property schema for %s", label, field))
			continue
		}
		errs = append(errs, ValidateSchemaCompatibility(sourceSchema, targetSchema, fmt.Sprintf("%s.%s", label, field))...)
	}

	switch targetAdditional := target["additionalProperties"].(type) {
	case bool:
		if !targetAdditional {
			sourceAdditional, ok := source["additionalProperties"].(bool)
			if !ok || sourceAdditional {
				errs = append(errs, fmt.Sprintf("%s allows additional properties not accepted by target", label))
			}
		}
	case map[string]interface{}:
		switch sourceAdditional := source["additionalProperties"].(type) {
		case bool:
			if sourceAdditional {
				errs = append(errs, fmt.Sprintf("%s additional properties are unconstrained", label))
			}
		case map[string]interface{}:
			errs = append(errs, ValidateSchemaCompatibility(sourceAdditional, targetAdditional, label+" additionalProperties")...)
		}
	}
	return errs
}

func validateMinConstraint(source, target core.Schema, label, field string) []string {
	targetValue, ok := numberField(target, field)
	if !ok {
		return nil
	}
	sourceValue, ok := numberField(source, field)
	if !ok {
		return []string{fmt.Sprintf("%s missing source %s constraint", label, field)}
	}
	if sourceValue < targetValue {
		return []string{fmt.Sprintf("%s %s %v below required %v", label, field, sourceValue, targetValue)}
	}
	return nil
}

func validateMaxConstraint(source, target core.Schema, label, field string) []string {
	targetValue, ok := numberField(target, field)
	if !ok {
		return nil
	}
	sourceValue, ok := numberField(source, field)
	if !ok {
		return []string{fmt.Sprintf("%s missing source %s constraint", label, field)}
	}
	if sourceValue > targetValue {
		return []string{fmt.Sprintf("%s %s %v above allowed %v", label, field, sourceValue, targetValue)}
	}
	return nil
}

func numberField(schema core.Schema, key string) (float64, bool) {
	v, ok := schema[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(float64)
	return n, ok
}

func containsValue(values []interface{}, target interface{}) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func schemaProperties(schema core.Schema) map[string]core.Schema {
	props, _ := schema["properties"].(map[string]interface{})
	result := make(map[string]core.Schema, len(props))
	for k, v := range props {
		if m, ok := v.(map[string]interface{}); ok {
			result[k] = m
		}
	}
	return result
}

func schemaRequired(schema core.Schema) []string {
	raw, _ := schema["required"].([]interface{})
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
