package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCapabilityID(t *testing.T) {
	assert.True(t, IsValidCapabilityID("greeting.send"))
	assert.True(t, IsValidCapabilityID("ledger.post"))
	assert.False(t, IsValidCapabilityID("Greeting.Send"))
	assert.False(t, IsValidCapabilityID("greeting"))
	assert.False(t, IsValidCapabilityID(".send"))
}

func TestIsSnakeCase(t *testing.T) {
	assert.True(t, IsSnakeCase("format_greeting"))
	assert.True(t, IsSnakeCase("a"))
	assert.False(t, IsSnakeCase("FormatGreeting"))
	assert.False(t, IsSnakeCase("format-greeting"))
}

func TestIsSemver(t *testing.T) {
	assert.True(t, IsSemver("1.0.0"))
	assert.True(t, IsSemver("1.2.3-beta.1"))
	assert.False(t, IsSemver("1.0"))
	assert.False(t, IsSemver("v1.0.0"))
}

func TestAutonomyLevel_Exceeds(t *testing.T) {
	assert.True(t, AutonomyL2.Exceeds(AutonomyL1))
	assert.False(t, AutonomyL1.Exceeds(AutonomyL2))
	assert.False(t, AutonomyL1.Exceeds(AutonomyL1))
}

func TestAutonomyLevel_Valid(t *testing.T) {
	assert.True(t, AutonomyL0.Valid())
	assert.False(t, AutonomyLevel("L9").Valid())
}

func TestCallTargetRef_Matches(t *testing.T) {
	ref := CallTargetRef{Kind: CallTargetOp, Name: "format_greeting", Version: "1.0.0"}
	assert.True(t, ref.Matches(CallTargetOp, "format_greeting", "1.0.0"))
	assert.True(t, ref.Matches(CallTargetOp, "format_greeting", ""))
	assert.False(t, ref.Matches(CallTargetOp, "format_greeting", "2.0.0"))
	assert.False(t, ref.Matches(CallTargetSkill, "format_greeting", "1.0.0"))
	assert.False(t, ref.Matches(CallTargetOp, "other_op", "1.0.0"))
}

func TestCallTargetRef_Matches_UnversionedDeclaration(t *testing.T) {
	ref := CallTargetRef{Kind: CallTargetOp, Name: "format_greeting"}
	assert.True(t, ref.Matches(CallTargetOp, "format_greeting", "3.1.0"))
}

type stubEntry struct {
	autonomy   AutonomyLevel
	policyTags []string
}

func (s stubEntry) EntryKind() CallTargetKind      { return CallTargetOp }
func (s stubEntry) EntryName() string              { return "stub" }
func (s stubEntry) EntryVersion() string           { return "1.0.0" }
func (s stubEntry) EntryStatus() Status            { return StatusEnabled }
func (s stubEntry) EntryAutonomy() AutonomyLevel   { return s.autonomy }
func (s stubEntry) EntryCapabilities() []string    { return nil }
func (s stubEntry) EntrySideEffects() []string     { return nil }
func (s stubEntry) EntryPolicyTags() []string      { return s.policyTags }
func (s stubEntry) EntryRateLimit() *RateLimit     { return nil }
func (s stubEntry) EntryChannels() *ChannelPolicy  { return nil }
func (s stubEntry) EntryActors() *ActorPolicy      { return nil }
func (s stubEntry) EntryRedaction() *Redaction     { return nil }
func (s stubEntry) EntryInputsSchema() Schema      { return nil }
func (s stubEntry) EntryOutputsSchema() Schema     { return nil }
func (s stubEntry) FailureModeList() []FailureMode { return nil }

func TestRequiresApproval_L1AlwaysRequiresApproval(t *testing.T) {
	assert.True(t, RequiresApproval(stubEntry{autonomy: AutonomyL1}))
}

func TestRequiresApproval_ReviewTagRequiresApproval(t *testing.T) {
	assert.True(t, RequiresApproval(stubEntry{autonomy: AutonomyL0, policyTags: []string{"requires_review"}}))
}

func TestRequiresApproval_L0WithoutReviewTagDoesNotRequireApproval(t *testing.T) {
	assert.False(t, RequiresApproval(stubEntry{autonomy: AutonomyL0}))
}

func TestOpDefinition_EntrypointView(t *testing.T) {
	d := &OpDefinition{Runtime: RuntimeHTTP, URL: "https://example.com/op"}
	view := d.EntrypointView()
	assert.Equal(t, RuntimeHTTP, view.Runtime)
	assert.Equal(t, "https://example.com/op", view.URL)
}
