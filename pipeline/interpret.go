package pipeline

import (
	"fmt"
	"strings"

	"github.com/sorhq/sor/core"
)

// Interpreter executes a pipeline skill's steps in declaration order,
// resolving each step's inputs from the pipeline's own inputs and prior
// steps' outputs, and projecting declared outputs into the overall
// pipeline output. Each step's context is narrowed to the intersection of
// the pipeline's own allowed capabilities and the step target's declared
// capabilities, the same narrowing a directly-invoked composition target
// gets.
type Interpreter struct {
	Composer core.Executor
	Resolver core.EntryResolver
}

func NewInterpreter(composer core.Executor, resolver core.EntryResolver) *Interpreter {
	return &Interpreter{Composer: composer, Resolver: resolver}
}

// Run executes every step of skill in declaration order and returns the
// pipeline's assembled output.
func (p *Interpreter) Run(skill *core.SkillDefinition, inputs map[string]interface{}, sc core.SkillContext) (map[string]interface{}, error) {
	stepOutputs := map[string]map[string]interface{}{}
	pipelineOutput := map[string]interface{}{}

	for _, step := range skill.Steps {
		stepInputs := map[string]interface{}{}
		for inputName, source := range step.Inputs {
			value, err := resolveValue(step.StepID, source, inputs, stepOutputs)
			if err != nil {
				return nil, err
			}
			stepInputs[inputName] = value
		}

		target, err := p.Resolver.ResolveEntry(step.Target.Kind, step.Target.Name, step.Target.Version)
		if err != nil {
			return nil, err
		}
		childContext := sc.Child(target.EntryCapabilities())

		result, err := p.Composer.Execute(step.Target.Kind, step.Target.Name, step.Target.Version, stepInputs, childContext)
		if err != nil {
			return nil, err
		}

		outputs := map[string]interface{}{}
		for outputName, destination := range step.Outputs {
			value, ok := result.Output[outputName]
			if !ok {
				return nil, core.NewError("pipeline.Run", "pipeline_output_missing",
					fmt.Sprintf("step %s did not produce declared output %s", step.StepID, outputName),
					core.ErrPipeline, map[string]interface{}{"step": step.StepID, "output": outputName})
			}
			outputs[outputName] = value
			if strings.HasPrefix(destination, "$outputs.") {
				field := strings.TrimPrefix(destination, "$outputs.")
				pipelineOutput[field] = value
			}
		}
		stepOutputs[step.StepID] = outputs
	}

	return pipelineOutput, nil
}

func resolveValue(stepID, source string, inputs map[string]interface{}, stepOutputs map[string]map[string]interface{}) (interface{}, error) {
	if strings.HasPrefix(source, "$inputs.") {
		field := strings.TrimPrefix(source, "$inputs.")
		value, ok := inputs[field]
		if !ok {
			return nil, core.NewError("pipeline.Run", "pipeline_source_missing_input",
				fmt.Sprintf("step %s references unknown pipeline input %s", stepID, field),
				core.ErrPipeline, map[string]interface{}{"step": stepID, "field": field})
		}
		return value, nil
	}
	if strings.HasPrefix(source, "$step.") {
		parts := strings.Split(source, ".")
		if len(parts) < 3 {
			return nil, core.NewError("pipeline.Run", "pipeline_source_invalid",
				fmt.Sprintf("step %s has invalid source %s", stepID, source),
				core.ErrPipeline, map[string]interface{}{"step": stepID, "source": source})
		}
		refStepID, field := parts[1], parts[2]
		outputs, ok := stepOutputs[refStepID]
		if !ok {
			return nil, core.NewError("pipeline.Run", "pipeline_source_unknown_step",
				fmt.Sprintf("step %s references unknown step output %s", stepID, refStepID),
				core.ErrPipeline, map[string]interface{}{"step": stepID, "ref_step": refStepID})
		}
		value, ok := outputs[field]
		if !ok {
			return nil, core.NewError("pipeline.Run", "pipeline_source_unknown_field",
				fmt.Sprintf("step %s references unknown output field %s from %s", stepID, field, refStepID),
				core.ErrPipeline, map[string]interface{}{"step": stepID, "ref_step": refStepID, "field": field})
		}
		return value, nil
	}
	return nil, core.NewError("pipeline.Run", "pipeline_source_invalid",
		fmt.Sprintf("step %s has invalid source %s", stepID, source),
		core.ErrPipeline, map[string]interface{}{"step": stepID, "source": source})
}
