// Package policy evaluates whether an invocation context may proceed
// against a registry entry's declared channel/actor restrictions, capability
// scope, autonomy ceiling, review requirement, rate limit, and approval
// token — in that fixed order, so the first-met denial reasons are always
// reproducible from the same inputs.
package policy

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sorhq/sor/core"
)

// Limiter is the rate-limiting backend an Evaluator consults. RateLimiter
// is the in-process implementation; a Redis-backed one lets replicas share
// a single window.
type Limiter interface {
	Allow(key string, maxPerMinute int) bool
}

// Context is the request-derived input to policy evaluation: everything
// the rules in §4.5 read, plus the proposal id and approval token carried
// over from the approval subsystem.
type Context struct {
	Actor               string
	Channel             string
	AllowedCapabilities map[string]bool
	MaxAutonomy         core.AutonomyLevel
	HasMaxAutonomy      bool
	Confirmed           bool
	ProposalID          string
	ApprovalToken       string
}

// FromSkillContext derives a policy Context from a per-invocation
// SkillContext and the deterministic proposal id computed for this
// request.
func FromSkillContext(sc core.SkillContext, proposalID string) Context {
	return Context{
		Actor:               sc.Actor,
		Channel:             sc.Channel,
		AllowedCapabilities: sc.AllowedCapabilities,
		MaxAutonomy:         sc.MaxAutonomy,
		HasMaxAutonomy:      sc.HasMaxAutonomy,
		Confirmed:           sc.Confirmed,
		ProposalID:          proposalID,
		ApprovalToken:       sc.ApprovalToken,
	}
}

// Decision is the outcome of evaluating a Context against an entry: the
// ordered list of denial reasons (empty means allowed) plus a flat
// metadata map suitable for audit logging.
type Decision struct {
	Allowed  bool
	Reasons  []string
	Metadata map[string]string
}

// ApprovalReasons is the set of reasons that the approval path may clear
// with a valid token or that gate proposal construction, per §4.6.
var ApprovalReasons = map[string]bool{
	"approval_required": true,
	"review_required":   true,
}

// Evaluator runs the fixed §4.5 rule sequence against entries.
type Evaluator struct {
	RateLimiter    Limiter
	TokenValidator core.ApprovalTokenValidator
	Logger         core.Logger

	denialCounter metric.Int64Counter
}

// NewEvaluator constructs an Evaluator with the given rate limiter and
// approval token validator. A nil validator defaults to rejecting every
// token, matching a closed-by-default approval gate.
func NewEvaluator(limiter Limiter, validator core.ApprovalTokenValidator, logger core.Logger) *Evaluator {
	if limiter == nil {
		limiter = NewRateLimiter()
	}
	if validator == nil {
		validator = core.NullApprovalTokenValidator{}
	}
	if logger == nil {
		logger = core.NoopLogger{}
	}
	e := &Evaluator{RateLimiter: limiter, TokenValidator: validator, Logger: logger}
	e.denialCounter, _ = otel.Meter("github.com/sorhq/sor/policy").Int64Counter("sor.policy.denials",
		metric.WithDescription("Count of policy denials by reason code."))
	return e
}

// Evaluate runs every rule against entry for ctx, in the fixed §4.5 order.
func (e *Evaluator) Evaluate(entry core.Entry, ctx Context) Decision {
	var reasons []string
	metadata := map[string]string{
		"actor":   ctx.Actor,
		"channel": ctx.Channel,
	}

	if channels := entry.EntryChannels(); channels != nil {
		if channels.Deny[ctx.Channel] {
			reasons = append(reasons, "channel_denied")
		}
		if len(channels.Allow) > 0 && !channels.Allow[ctx.Channel] {
			reasons = append(reasons, "channel_not_allowed")
		}
	}

	if actors := entry.EntryActors(); actors != nil {
		if actors.Deny[ctx.Actor] {
			reasons = append(reasons, "actor_denied")
		}
		if len(actors.Allow) > 0 && !actors.Allow[ctx.Actor] {
			reasons = append(reasons, "actor_not_allowed")
		}
	}

	if ctx.AllowedCapabilities != nil {
		for _, cap := range entry.EntryCapabilities() {
			if !ctx.AllowedCapabilities[cap] {
				reasons = append(reasons, fmt.Sprintf("capability_not_allowed:%s", cap))
			}
		}
	}

	if ctx.HasMaxAutonomy && entry.EntryAutonomy().Exceeds(ctx.MaxAutonomy) {
		reasons = append(reasons, "autonomy_exceeds_limit")
	}

	requiresReview := false
	for _, tag := range entry.EntryPolicyTags() {
		if tag == "requires_review" {
			requiresReview = true
			break
		}
	}
	reviewIndex := -1
	if requiresReview && !ctx.Confirmed {
		reasons = append(reasons, "review_required")
		reviewIndex = len(reasons) - 1
	}

	if rl := entry.EntryRateLimit(); rl != nil {
		key := fmt.Sprintf("%s@%s", entry.EntryName(), entry.EntryVersion())
		if !e.RateLimiter.Allow(key, rl.MaxPerMinute) {
			reasons = append(reasons, "rate_limit_exceeded")
		}
	}

	if core.RequiresApproval(entry) && ctx.ApprovalToken != "" {
		validation := e.TokenValidator.Validate(ctx.ApprovalToken, ctx.Actor, ctx.ProposalID)
		status := tokenStatus(validation)
		metadata["policy.approval.token_status"] = status
		if validation.Valid {
			if reviewIndex >= 0 {
				reasons = append(reasons[:reviewIndex], reasons[reviewIndex+1:]...)
			}
		} else {
			reasons = append(reasons, fmt.Sprintf("approval_token_%s", status))
		}
	}

	decision := Decision{Allowed: len(reasons) == 0, Reasons: reasons, Metadata: metadata}
	if e.denialCounter != nil {
		for _, reason := range reasons {
			e.denialCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
		}
	}
	e.Logger.Info("policy decision", map[string]interface{}{
		"name":    entry.EntryName(),
		"version": entry.EntryVersion(),
		"allowed": decision.Allowed,
		"reasons": decision.Reasons,
	})
	return decision
}

// tokenStatus normalizes a raw validation reason to the public
// {valid, expired, invalid} vocabulary exposed in policy metadata.
func tokenStatus(v core.ApprovalTokenValidation) string {
	if v.Valid {
		return "valid"
	}
	if v.Reason == "expired" {
		return "expired"
	}
	return "invalid"
}

// RuleExplanation pairs one denial reason with the §4.5 rule number that
// produced it, so a caller can render a human-readable explanation instead
// of a bare reason code.
type RuleExplanation struct {
	Rule   int
	Reason string
}

// ruleForReason maps a reason code to its rule number in the fixed §4.5
// sequence: 1 channel, 2 actor, 3 capability, 4 autonomy, 5 review,
// 6 rate-limit, 7 approval-token.
func ruleForReason(reason string) int {
	switch {
	case reason == "channel_denied" || reason == "channel_not_allowed":
		return 1
	case reason == "actor_denied" || reason == "actor_not_allowed":
		return 2
	case strings.HasPrefix(reason, "capability_not_allowed:"):
		return 3
	case reason == "autonomy_exceeds_limit":
		return 4
	case reason == "review_required":
		return 5
	case reason == "rate_limit_exceeded":
		return 6
	case strings.HasPrefix(reason, "approval_token_"):
		return 7
	default:
		return 0
	}
}

// Explain runs the same evaluation as Evaluate but additionally tags every
// reason with the rule number that produced it, for callers that want to
// render a human-readable denial explanation rather than bare reason codes.
func (e *Evaluator) Explain(entry core.Entry, ctx Context) (Decision, []RuleExplanation) {
	decision := e.Evaluate(entry, ctx)
	explanations := make([]RuleExplanation, 0, len(decision.Reasons))
	for _, reason := range decision.Reasons {
		explanations = append(explanations, RuleExplanation{Rule: ruleForReason(reason), Reason: reason})
	}
	return decision, explanations
}

// ApprovalDenialReason returns the reason to use when constructing an
// approval proposal, or "" if the denial reason set isn't approval-shaped.
func ApprovalDenialReason(reasons []string) string {
	for _, r := range reasons {
		if ApprovalReasons[r] {
			return r
		}
	}
	return ""
}

// IsApprovalOnlyDenial reports whether every reason in reasons is one that
// the approval path is allowed to act on (§4.6: a subset of
// {approval_required, review_required}, modulo approval_token_* reasons
// which are produced by attempting and failing token validation, not by
// the absence of approval).
func IsApprovalOnlyDenial(reasons []string) bool {
	if len(reasons) == 0 {
		return false
	}
	for _, r := range reasons {
		if ApprovalReasons[r] || strings.HasPrefix(r, "approval_token_") {
			continue
		}
		return false
	}
	return true
}
