// Package composition gates nested skill/op invocation: a logic skill may
// only call what it has statically declared as a call target, and a child
// invocation's allowed capabilities are narrowed to the intersection of
// the parent's and the target's.
package composition

import (
	"fmt"

	"github.com/sorhq/sor/core"
)

// Composer enforces declared call targets before handing a nested
// invocation to the shared Executor, narrowing the child's capabilities
// to the intersection of the parent's and the resolved target's.
type Composer struct {
	Executor core.Executor
	Resolver core.EntryResolver
}

func NewComposer(executor core.Executor, resolver core.EntryResolver) *Composer {
	return &Composer{Executor: executor, Resolver: resolver}
}

// Invoke dispatches (kind, name, version?) on behalf of parentDefinition's
// call_targets, narrowing parentContext's capabilities to the target's
// declared set before executing.
func (c *Composer) Invoke(parentDefinition *core.SkillDefinition, parentContext core.SkillContext, kind core.CallTargetKind, name, version string, inputs map[string]interface{}) (*core.ExecutionResult, error) {
	if !callTargetDeclared(parentDefinition.CallTargets, kind, name, version) {
		return nil, core.NewError("composition.Invoke", "call_target_not_allowed",
			fmt.Sprintf("call target %s:%s@%s not declared", kind, name, displayVersion(version)),
			core.ErrComposition, map[string]interface{}{"kind": kind, "name": name, "version": version})
	}
	target, err := c.Resolver.ResolveEntry(kind, name, version)
	if err != nil {
		return nil, err
	}
	childContext := parentContext.Child(target.EntryCapabilities())
	return c.Executor.Execute(kind, name, version, inputs, childContext)
}

func callTargetDeclared(targets []core.CallTargetRef, kind core.CallTargetKind, name, version string) bool {
	for _, t := range targets {
		if t.Kind != kind || t.Name != name {
			continue
		}
		if version == "" {
			return true
		}
		if t.Version == "" || t.Version == version {
			return true
		}
	}
	return false
}

func displayVersion(version string) string {
	if version == "" {
		return "*"
	}
	return version
}

// Invocation is a bound handle a logic skill's handler uses to call
// exactly the targets it declared, without re-stating its own identity
// and context on every call.
type Invocation struct {
	composer           *Composer
	parentDefinition    *core.SkillDefinition
	parentContext       core.SkillContext
}

// NewInvocation binds a Composer to one parent skill and context.
func NewInvocation(composer *Composer, parentDefinition *core.SkillDefinition, parentContext core.SkillContext) *Invocation {
	return &Invocation{composer: composer, parentDefinition: parentDefinition, parentContext: parentContext}
}

// InvokeSkill calls a declared downstream skill.
func (i *Invocation) InvokeSkill(name string, inputs map[string]interface{}, version string) (*core.ExecutionResult, error) {
	return i.composer.Invoke(i.parentDefinition, i.parentContext, core.CallTargetSkill, name, version, inputs)
}

// InvokeOp calls a declared downstream op.
func (i *Invocation) InvokeOp(name string, inputs map[string]interface{}, version string) (*core.ExecutionResult, error) {
	return i.composer.Invoke(i.parentDefinition, i.parentContext, core.CallTargetOp, name, version, inputs)
}
