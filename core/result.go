package core

// ExecutionResult is the payload an execution runtime returns on success:
// the validated output and the wall-clock duration of the call.
type ExecutionResult struct {
	Output     map[string]interface{}
	DurationMs int64
}

// Executor dispatches a single invocation of a named skill or op and is
// the shared shape the composition gate and pipeline interpreter invoke
// nested work through, regardless of whether the target is a skill or an
// op or whether it ultimately runs as a logic skill or a pipeline.
type Executor interface {
	Execute(kind CallTargetKind, name, version string, inputs map[string]interface{}, sc SkillContext) (*ExecutionResult, error)
}

// EntryResolver looks up a registry entry by kind, name, and optional
// version. The composition gate uses it to narrow a child invocation's
// capabilities before dispatch, without depending on the registry package
// directly.
type EntryResolver interface {
	ResolveEntry(kind CallTargetKind, name, version string) (Entry, error)
}
