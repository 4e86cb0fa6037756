// Package registry loads skill and op registry files, merges YAML policy
// overlays on top of them, validates cross-references, and exposes a
// hot-reloading query API over the resulting immutable snapshot.
package registry

import "github.com/sorhq/sor/core"

// SkillEntry is a skill definition merged with overlay-derived policy
// overrides. It implements core.Entry so policy/approval/composition code
// can treat skills and ops uniformly.
type SkillEntry struct {
	Definition *core.SkillDefinition
	Status     core.Status
	Autonomy   core.AutonomyLevel
	RateLimit  *core.RateLimit
	Channels   *core.ChannelPolicy
	Actors     *core.ActorPolicy
}

func (e *SkillEntry) EntryKind() core.CallTargetKind      { return core.CallTargetSkill }
func (e *SkillEntry) EntryName() string                   { return e.Definition.Name }
func (e *SkillEntry) EntryVersion() string                { return e.Definition.Version }
func (e *SkillEntry) EntryStatus() core.Status             { return e.Status }
func (e *SkillEntry) EntryAutonomy() core.AutonomyLevel    { return e.Autonomy }
func (e *SkillEntry) EntryCapabilities() []string          { return e.Definition.Capabilities }
func (e *SkillEntry) EntrySideEffects() []string           { return e.Definition.SideEffects }
func (e *SkillEntry) EntryPolicyTags() []string            { return e.Definition.PolicyTags }
func (e *SkillEntry) EntryRateLimit() *core.RateLimit       { return e.RateLimit }
func (e *SkillEntry) EntryChannels() *core.ChannelPolicy    { return e.Channels }
func (e *SkillEntry) EntryActors() *core.ActorPolicy        { return e.Actors }
func (e *SkillEntry) EntryRedaction() *core.Redaction       { return e.Definition.Redaction }
func (e *SkillEntry) EntryInputsSchema() core.Schema        { return e.Definition.InputsSchema }
func (e *SkillEntry) EntryOutputsSchema() core.Schema       { return e.Definition.OutputsSchema }
func (e *SkillEntry) FailureModeList() []core.FailureMode  { return e.Definition.FailureModes }

// OpEntry is an op definition merged with overlay-derived policy overrides.
type OpEntry struct {
	Definition *core.OpDefinition
	Status     core.Status
	Autonomy   core.AutonomyLevel
	RateLimit  *core.RateLimit
	Channels   *core.ChannelPolicy
	Actors     *core.ActorPolicy
}

func (e *OpEntry) EntryKind() core.CallTargetKind     { return core.CallTargetOp }
func (e *OpEntry) EntryName() string                  { return e.Definition.Name }
func (e *OpEntry) EntryVersion() string               { return e.Definition.Version }
func (e *OpEntry) EntryStatus() core.Status            { return e.Status }
func (e *OpEntry) EntryAutonomy() core.AutonomyLevel   { return e.Autonomy }
func (e *OpEntry) EntryCapabilities() []string         { return e.Definition.Capabilities }
func (e *OpEntry) EntrySideEffects() []string          { return e.Definition.SideEffects }
func (e *OpEntry) EntryPolicyTags() []string           { return e.Definition.PolicyTags }
func (e *OpEntry) EntryRateLimit() *core.RateLimit      { return e.RateLimit }
func (e *OpEntry) EntryChannels() *core.ChannelPolicy   { return e.Channels }
func (e *OpEntry) EntryActors() *core.ActorPolicy       { return e.Actors }
func (e *OpEntry) EntryRedaction() *core.Redaction      { return e.Definition.Redaction }
func (e *OpEntry) EntryInputsSchema() core.Schema       { return e.Definition.InputsSchema }
func (e *OpEntry) EntryOutputsSchema() core.Schema      { return e.Definition.OutputsSchema }
func (e *OpEntry) FailureModeList() []core.FailureMode { return e.Definition.FailureModes }
