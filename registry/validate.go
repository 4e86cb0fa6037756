package registry

import (
	"fmt"

	"github.com/sorhq/sor/core"
)

// ValidationError collects every constraint violated by a single registry
// file load, so a bad file is reported all at once rather than one error
// at a time.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0]
	}
	return fmt.Sprintf("%d registry validation errors, first: %s", len(e.Violations), e.Violations[0])
}

type violationCollector struct {
	violations []string
}

func (c *violationCollector) add(format string, args ...interface{}) {
	c.violations = append(c.violations, fmt.Sprintf(format, args...))
}

func (c *violationCollector) err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: c.violations}
}

// ValidateSkillDefinition enforces the invariants of §4.1 against a single
// skill definition: identifier formats, capability-id formats, entrypoint
// completeness for its runtime, side_effects as a subset of capabilities,
// deprecated status requiring deprecation metadata, and unique failure
// mode codes.
func ValidateSkillDefinition(d *core.SkillDefinition) error {
	c := &violationCollector{}
	validateName(c, d.Name)
	validateVersion(c, d.Name, d.Version)
	validateCapabilityList(c, d.Name, "capabilities", d.Capabilities)
	validateCapabilityList(c, d.Name, "side_effects", d.SideEffects)
	if len(d.Capabilities) == 0 {
		c.add("skill %s: capabilities must be non-empty", d.Name)
	}
	if !d.Autonomy.Valid() {
		c.add("skill %s: invalid autonomy level %q", d.Name, d.Autonomy)
	}

	switch d.Kind {
	case core.SkillKindLogic:
		if d.Entrypoint == nil {
			c.add("skill %s: logic skills require an entrypoint", d.Name)
		} else {
			validateEntrypoint(c, d.Name, d.Entrypoint)
		}
		if len(d.Steps) != 0 {
			c.add("skill %s: logic skills must not declare steps", d.Name)
		}
	case core.SkillKindPipeline:
		if len(d.Steps) == 0 {
			c.add("skill %s: pipeline skills require at least one step", d.Name)
		}
		if d.Entrypoint != nil {
			c.add("skill %s: pipeline skills must not declare an entrypoint", d.Name)
		}
		validatePipelineSteps(c, d.Name, d.Steps)
	default:
		c.add("skill %s: unknown kind %q", d.Name, d.Kind)
	}

	validateSideEffectsSubset(c, d.Name, d.Capabilities, d.SideEffects)
	validateDeprecation(c, d.Name, d.Status, d.Deprecation)
	validateFailureModes(c, d.Name, d.FailureModes)
	return c.err()
}

// ValidateOpDefinition enforces the invariants of §4.1 against a single op
// definition. Ops share every constraint a logic skill has except
// composition (no call_targets, no steps).
func ValidateOpDefinition(d *core.OpDefinition) error {
	c := &violationCollector{}
	validateName(c, d.Name)
	validateVersion(c, d.Name, d.Version)
	validateCapabilityList(c, d.Name, "capabilities", d.Capabilities)
	validateCapabilityList(c, d.Name, "side_effects", d.SideEffects)
	if len(d.Capabilities) == 0 {
		c.add("op %s: capabilities must be non-empty", d.Name)
	}
	if !d.Autonomy.Valid() {
		c.add("op %s: invalid autonomy level %q", d.Name, d.Autonomy)
	}
	validateEntrypoint(c, d.Name, &core.Entrypoint{
		Runtime: d.Runtime, Module: d.Module, Handler: d.Handler,
		Tool: d.Tool, URL: d.URL, Command: d.Command,
	})
	validateSideEffectsSubset(c, d.Name, d.Capabilities, d.SideEffects)
	validateDeprecation(c, d.Name, d.Status, d.Deprecation)
	validateFailureModes(c, d.Name, d.FailureModes)
	return c.err()
}

func validateName(c *violationCollector, name string) {
	if !core.IsSnakeCase(name) {
		c.add("name %q must be snake_case", name)
	}
}

func validateVersion(c *violationCollector, name, version string) {
	if !core.IsSemver(version) {
		c.add("%s: version %q must be semver", name, version)
	}
}

func validateCapabilityList(c *violationCollector, name, field string, ids []string) {
	for _, id := range ids {
		if !core.IsValidCapabilityID(id) {
			c.add("%s: invalid capability id in %s: %q", name, field, id)
		}
	}
}

func validateSideEffectsSubset(c *violationCollector, name string, capabilities, sideEffects []string) {
	if len(sideEffects) == 0 {
		return
	}
	allowed := make(map[string]bool, len(capabilities))
	for _, cap := range capabilities {
		allowed[cap] = true
	}
	for _, se := range sideEffects {
		if !allowed[se] {
			c.add("%s: side_effects must be a subset of capabilities, got %q", name, se)
		}
	}
}

func validateDeprecation(c *violationCollector, name string, status core.Status, dep *core.Deprecation) {
	if status == core.StatusDeprecated && dep == nil {
		c.add("%s: deprecated entries must include deprecation metadata", name)
	}
	if dep != nil && dep.RemovalVersion != "" && !core.IsSemver(dep.RemovalVersion) {
		c.add("%s: deprecation.removal_version %q must be semver", name, dep.RemovalVersion)
	}
}

func validateFailureModes(c *violationCollector, name string, modes []core.FailureMode) {
	if len(modes) == 0 {
		c.add("%s: failure_modes must be non-empty", name)
	}
	seen := make(map[string]bool, len(modes))
	for _, mode := range modes {
		if !core.IsSnakeCase(mode.Code) {
			c.add("%s: failure mode code %q must be snake_case", name, mode.Code)
		}
		if seen[mode.Code] {
			c.add("%s: duplicate failure mode code %q", name, mode.Code)
		}
		seen[mode.Code] = true
	}
}

func validateEntrypoint(c *violationCollector, name string, e *core.Entrypoint) {
	switch e.Runtime {
	case core.RuntimePython:
		if e.Module == "" || e.Handler == "" {
			c.add("%s: python entrypoints require module and handler", name)
		}
	case core.RuntimeMCP:
		if e.Tool == "" {
			c.add("%s: mcp entrypoints require tool", name)
		}
	case core.RuntimeHTTP:
		if e.URL == "" {
			c.add("%s: http entrypoints require url", name)
		}
	case core.RuntimeScript:
		if e.Command == "" {
			c.add("%s: script entrypoints require command", name)
		}
	default:
		c.add("%s: unknown entrypoint runtime %q", name, e.Runtime)
	}
}

func validatePipelineSteps(c *violationCollector, name string, steps []core.PipelineStep) {
	seen := make(map[string]bool, len(steps))
	for _, step := range steps {
		if step.StepID == "" {
			c.add("%s: pipeline step missing step_id", name)
			continue
		}
		if seen[step.StepID] {
			c.add("%s: duplicate pipeline step_id %q", name, step.StepID)
		}
		seen[step.StepID] = true
		if step.Target.Name == "" {
			c.add("%s: pipeline step %q missing target name", name, step.StepID)
		}
	}
}
