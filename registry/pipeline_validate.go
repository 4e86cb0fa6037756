package registry

import (
	"fmt"

	"github.com/sorhq/sor/core"
	"github.com/sorhq/sor/pipeline"
)

// snapshotResolver adapts a Snapshot to pipeline.Resolver so pipeline
// skills can be statically validated against the rest of the registry
// loaded alongside them.
type snapshotResolver struct {
	snapshot *Snapshot
}

func (r *snapshotResolver) ResolveSkill(name, version string) (*pipeline.Target, bool) {
	var matches []*SkillEntry
	for _, s := range r.snapshot.Skills {
		if s.Definition.Name != name {
			continue
		}
		if version != "" && s.Definition.Version != version {
			continue
		}
		matches = append(matches, s)
	}
	if len(matches) != 1 {
		return nil, false
	}
	d := matches[0].Definition
	return &pipeline.Target{Capabilities: d.Capabilities, InputsSchema: d.InputsSchema, OutputsSchema: d.OutputsSchema}, true
}

func (r *snapshotResolver) ResolveOp(name, version string) (*pipeline.Target, bool) {
	var matches []*OpEntry
	for _, o := range r.snapshot.Ops {
		if o.Definition.Name != name {
			continue
		}
		if version != "" && o.Definition.Version != version {
			continue
		}
		matches = append(matches, o)
	}
	if len(matches) != 1 {
		return nil, false
	}
	d := matches[0].Definition
	return &pipeline.Target{Capabilities: d.Capabilities, InputsSchema: d.InputsSchema, OutputsSchema: d.OutputsSchema}, true
}

// ValidatePipelines statically validates every pipeline skill in snapshot
// against the rest of the snapshot's skills and ops, per the step-wiring,
// schema-compatibility and capability-closure rules a pipeline must
// satisfy at load time. It
// returns one error per pipeline skill that fails validation; a clean
// snapshot returns nil.
func ValidatePipelines(snapshot *Snapshot) []error {
	resolver := &snapshotResolver{snapshot: snapshot}
	var errs []error
	for _, s := range snapshot.Skills {
		if s.Definition.Kind != core.SkillKindPipeline {
			continue
		}
		result := pipeline.ValidatePipelineSkill(s.Definition, resolver)
		if len(result.Errors) == 0 {
			declared := map[string]bool{}
			for _, c := range s.Definition.Capabilities {
				declared[c] = true
			}
			mismatch := len(declared) != len(result.Capabilities)
			for _, c := range result.Capabilities {
				mismatch = mismatch || !declared[c]
			}
			if mismatch {
				result.Errors = append(result.Errors, fmt.Sprintf("declared capabilities %v differ from step capability closure %v", s.Definition.Capabilities, result.Capabilities))
			}
		}
		if len(result.Errors) > 0 {
			errs = append(errs, fmt.Errorf("pipeline %s@%s: %v", s.Definition.Name, s.Definition.Version, result.Errors))
		}
	}
	return errs
}
