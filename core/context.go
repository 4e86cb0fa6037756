package core

// SkillContext is the immutable per-invocation context threaded through a
// request. A child context narrows allowed capabilities to the intersection
// with a target's declared capabilities and inherits everything else.
type SkillContext struct {
	AllowedCapabilities map[string]bool
	Actor               string
	Channel             string
	MaxAutonomy         AutonomyLevel
	HasMaxAutonomy      bool
	Confirmed           bool
	ApprovalToken       string
	TraceID             string
	InvocationID        string
	ParentInvocationID  string
}

// HasCapability reports whether cap is present in the allowed set.
func (c SkillContext) HasCapability(cap string) bool {
	return c.AllowedCapabilities[cap]
}

// Child derives a narrowed context for a nested invocation. allowedCaps
// is typically the target entry's declared capability list; the result's
// allowed set is the intersection with the parent's.
func (c SkillContext) Child(allowedCaps []string) SkillContext {
	narrowed := make(map[string]bool, len(allowedCaps))
	for _, cap := range allowedCaps {
		if c.AllowedCapabilities[cap] {
			narrowed[cap] = true
		}
	}
	child := c
	child.AllowedCapabilities = narrowed
	child.ParentInvocationID = c.InvocationID
	child.InvocationID = NewInvocationID()
	return child
}

// WithApproval returns a copy of c carrying an approval token and confirmed
// flag, used by callers resuming a previously-denied request.
func (c SkillContext) WithApproval(token string, confirmed bool) SkillContext {
	c.ApprovalToken = token
	c.Confirmed = confirmed
	return c
}
