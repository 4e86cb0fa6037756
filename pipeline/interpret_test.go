package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorhq/sor/core"
)

type stubEntry struct {
	capabilities []string
}

func (s stubEntry) EntryKind() core.CallTargetKind      { return core.CallTargetOp }
func (s stubEntry) EntryName() string                   { return "format_greeting" }
func (s stubEntry) EntryVersion() string                { return "1.0.0" }
func (s stubEntry) EntryStatus() core.Status            { return core.StatusEnabled }
func (s stubEntry) EntryAutonomy() core.AutonomyLevel   { return core.AutonomyL0 }
func (s stubEntry) EntryCapabilities() []string         { return s.capabilities }
func (s stubEntry) EntrySideEffects() []string          { return nil }
func (s stubEntry) EntryPolicyTags() []string           { return nil }
func (s stubEntry) EntryRateLimit() *core.RateLimit     { return nil }
func (s stubEntry) EntryChannels() *core.ChannelPolicy  { return nil }
func (s stubEntry) EntryActors() *core.ActorPolicy      { return nil }
func (s stubEntry) EntryRedaction() *core.Redaction     { return nil }
func (s stubEntry) EntryInputsSchema() core.Schema      { return nil }
func (s stubEntry) EntryOutputsSchema() core.Schema     { return nil }
func (s stubEntry) FailureModeList() []core.FailureMode { return nil }

type stubEntryResolver struct {
	entry core.Entry
	err   error
}

func (r *stubEntryResolver) ResolveEntry(kind core.CallTargetKind, name, version string) (core.Entry, error) {
	return r.entry, r.err
}

type recordingExecutor struct {
	calls   []string
	outputs map[string]map[string]interface{}
	err     error
}

func (e *recordingExecutor) Execute(kind core.CallTargetKind, name, version string, inputs map[string]interface{}, sc core.SkillContext) (*core.ExecutionResult, error) {
	e.calls = append(e.calls, name)
	if e.err != nil {
		return nil, e.err
	}
	return &core.ExecutionResult{Output: e.outputs[name]}, nil
}

func TestInterpreter_Run_SingleStepResolvesPipelineOutput(t *testing.T) {
	skill := formatGreetingSkill()
	resolver := &stubEntryResolver{entry: stubEntry{capabilities: []string{"greeting.format"}}}
	executor := &recordingExecutor{outputs: map[string]map[string]interface{}{
		"format_greeting": {"greeting": "Hello, Ada!"},
	}}
	interp := NewInterpreter(executor, resolver)

	output, err := interp.Run(skill, map[string]interface{}{"customer_name": "Ada"}, core.SkillContext{
		AllowedCapabilities: map[string]bool{"greeting.format": true},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", output["greeting"])
	assert.Equal(t, []string{"format_greeting"}, executor.calls)
}

func TestInterpreter_Run_MissingPipelineInputFails(t *testing.T) {
	skill := formatGreetingSkill()
	resolver := &stubEntryResolver{entry: stubEntry{capabilities: []string{"greeting.format"}}}
	executor := &recordingExecutor{}
	interp := NewInterpreter(executor, resolver)

	_, err := interp.Run(skill, map[string]interface{}{}, core.SkillContext{})

	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, "pipeline_source_missing_input", coreErr.Code)
}

func TestInterpreter_Run_UnresolvableTargetFails(t *testing.T) {
	skill := formatGreetingSkill()
	resolver := &stubEntryResolver{err: core.NewError("resolve", "not_found", "missing", core.ErrNotFound, nil)}
	executor := &recordingExecutor{}
	interp := NewInterpreter(executor, resolver)

	_, err := interp.Run(skill, map[string]interface{}{"customer_name": "Ada"}, core.SkillContext{})
	assert.Error(t, err)
}

func TestInterpreter_Run_MissingDeclaredOutputFails(t *testing.T) {
	skill := formatGreetingSkill()
	resolver := &stubEntryResolver{entry: stubEntry{capabilities: []string{"greeting.format"}}}
	executor := &recordingExecutor{outputs: map[string]map[string]interface{}{
		"format_greeting": {},
	}}
	interp := NewInterpreter(executor, resolver)

	_, err := interp.Run(skill, map[string]interface{}{"customer_name": "Ada"}, core.SkillContext{
		AllowedCapabilities: map[string]bool{"greeting.format": true},
	})

	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, "pipeline_output_missing", coreErr.Code)
}

func TestInterpreter_Run_ChainedStepsFeedPriorOutputs(t *testing.T) {
	skill := &core.SkillDefinition{
		Steps: []core.PipelineStep{
			{StepID: "first", Target: core.CallTargetRef{Kind: core.CallTargetOp, Name: "format_greeting"},
				Inputs: map[string]string{"name": "$inputs.customer_name"}, Outputs: map[string]string{"greeting": "$step.first.greeting"}},
			{StepID: "second", Target: core.CallTargetRef{Kind: core.CallTargetOp, Name: "format_greeting"},
				Inputs: map[string]string{"name": "$step.first.greeting"}, Outputs: map[string]string{"greeting": "$outputs.greeting"}},
		},
	}
	resolver := &stubEntryResolver{entry: stubEntry{capabilities: []string{"greeting.format"}}}
	executor := &recordingExecutor{outputs: map[string]map[string]interface{}{
		"format_greeting": {"greeting": "Hello, Ada!"},
	}}
	interp := NewInterpreter(executor, resolver)

	output, err := interp.Run(skill, map[string]interface{}{"customer_name": "Ada"}, core.SkillContext{
		AllowedCapabilities: map[string]bool{"greeting.format": true},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", output["greeting"])
	assert.Len(t, executor.calls, 2)
}
