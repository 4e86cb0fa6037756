package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkillContext_HasCapability(t *testing.T) {
	sc := SkillContext{AllowedCapabilities: map[string]bool{"greeting.send": true}}
	assert.True(t, sc.HasCapability("greeting.send"))
	assert.False(t, sc.HasCapability("ledger.post"))
}

func TestSkillContext_Child_NarrowsToIntersection(t *testing.T) {
	parent := SkillContext{
		AllowedCapabilities: map[string]bool{"greeting.send": true, "greeting.format": true},
		InvocationID:        "parent-invocation",
	}
	child := parent.Child([]string{"greeting.format", "ledger.post"})

	assert.True(t, child.HasCapability("greeting.format"))
	assert.False(t, child.HasCapability("greeting.send"))
	assert.False(t, child.HasCapability("ledger.post"))
}

func TestSkillContext_Child_SetsParentInvocationAndFreshID(t *testing.T) {
	parent := SkillContext{InvocationID: "parent-invocation"}
	child := parent.Child(nil)

	assert.Equal(t, "parent-invocation", child.ParentInvocationID)
	assert.NotEqual(t, "parent-invocation", child.InvocationID)
	assert.NotEmpty(t, child.InvocationID)
}

func TestSkillContext_Child_DoesNotMutateParent(t *testing.T) {
	parent := SkillContext{AllowedCapabilities: map[string]bool{"greeting.send": true}}
	_ = parent.Child([]string{})
	assert.True(t, parent.HasCapability("greeting.send"))
}

func TestSkillContext_WithApproval(t *testing.T) {
	sc := SkillContext{Actor: "demo-user"}
	approved := sc.WithApproval("token-abc", true)

	assert.Equal(t, "token-abc", approved.ApprovalToken)
	assert.True(t, approved.Confirmed)
	assert.Equal(t, "demo-user", approved.Actor)
	assert.False(t, sc.Confirmed, "original context must stay unmodified")
}
