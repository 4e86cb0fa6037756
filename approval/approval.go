// Package approval builds deterministic approval proposals for actions a
// policy decision has blocked, and provides the token issuance/validation
// and proposal/decision recording interfaces the execution runtime and
// policy evaluator depend on.
package approval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/sorhq/sor/core"
)

const (
	ProposalVersion    = "1.0"
	DefaultTTLSeconds  = 3600
	redactedPlaceholder = "<redacted>"
)

// ProposalContext is the execution context captured on a proposal.
type ProposalContext struct {
	Actor        string `json:"actor"`
	Channel      string `json:"channel"`
	TraceID      string `json:"trace_id"`
	InvocationID string `json:"invocation_id"`
}

// Proposal is the artifact routed to a human reviewer and persisted by a
// Recorder when a policy decision requires approval.
type Proposal struct {
	ProposalVersion       string              `json:"proposal_version"`
	ProposalID            string              `json:"proposal_id"`
	ActionKind            core.CallTargetKind `json:"action_kind"`
	ActionName            string              `json:"action_name"`
	ActionVersion         string              `json:"action_version"`
	Autonomy              core.AutonomyLevel  `json:"autonomy"`
	RequiredCapabilities  []string            `json:"required_capabilities"`
	PolicyTags            []string            `json:"policy_tags"`
	ReasonForReview       string              `json:"reason_for_review"`
	Context               ProposalContext     `json:"context"`
	RedactedInputFields   []string            `json:"redacted_input_fields"`
	CreatedAt             time.Time           `json:"created_at"`
	ExpiresAt             time.Time           `json:"expires_at"`
}

// Decision is a record of how a proposal was resolved.
type Decision struct {
	ProposalID string
	Actor      string
	Decision   string // "approved", "rejected", "expired"
	DecidedAt  time.Time
	Reason     string
	TokenUsed  bool
}

// Token is an issued approval token scoped to one proposal and actor.
type Token struct {
	Token      string
	Actor      string
	ProposalID string
	ExpiresAt  time.Time
}

// Recorder persists proposals and decisions for later audit.
type Recorder interface {
	RecordProposal(p Proposal)
	RecordDecision(d Decision)
}

// AttentionRouter hands a proposal to an external human-facing channel.
// Routing failures are fatal only to the request that produced them.
type AttentionRouter interface {
	Route(ctx context.Context, p Proposal, sc core.SkillContext) error
}

// NullRecorder discards everything; useful where no persistent store is
// configured.
type NullRecorder struct{}

func (NullRecorder) RecordProposal(Proposal) {}
func (NullRecorder) RecordDecision(Decision) {}

// InMemoryRecorder keeps every proposal and decision in memory. Intended
// for tests and single-process deployments; production recorders back
// onto a durable store.
type InMemoryRecorder struct {
	mu        sync.Mutex
	Proposals []Proposal
	Decisions []Decision
}

func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

func (r *InMemoryRecorder) RecordProposal(p Proposal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Proposals = append(r.Proposals, p)
}

func (r *InMemoryRecorder) RecordDecision(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Decisions = append(r.Decisions, d)
}

// InMemoryTokenStore issues and validates approval tokens, enforcing TTL,
// actor scope, and proposal scope. It implements core.ApprovalTokenValidator
// so the policy evaluator can consume it directly.
type InMemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]Token
	now    func() time.Time
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]Token), now: time.Now}
}

// Issue mints a token bound to (actor, proposalID) with the given TTL.
func (s *InMemoryTokenStore) Issue(actor, proposalID string, ttlSeconds int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := core.NewInvocationID()
	s.tokens[token] = Token{
		Token:      token,
		Actor:      actor,
		ProposalID: proposalID,
		ExpiresAt:  s.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return token
}

// Validate implements core.ApprovalTokenValidator.
func (s *InMemoryTokenStore) Validate(token, actor, proposalID string) core.ApprovalTokenValidation {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tokens[token]
	if !ok {
		return core.ApprovalTokenValidation{Valid: false, Reason: "unknown"}
	}
	if !s.now().Before(record.ExpiresAt) {
		return core.ApprovalTokenValidation{Valid: false, Reason: "expired"}
	}
	if record.Actor != actor {
		return core.ApprovalTokenValidation{Valid: false, Reason: "actor_mismatch"}
	}
	if record.ProposalID != proposalID {
		return core.ApprovalTokenValidation{Valid: false, Reason: "proposal_mismatch"}
	}
	return core.ApprovalTokenValidation{Valid: true}
}

// BuildProposalID computes the deterministic SHA-256 proposal id for an
// action instance: a stable JSON serialization of the action identity,
// invocation context, and redacted inputs.
func BuildProposalID(entry core.Entry, sc core.SkillContext, inputs map[string]interface{}) string {
	payload := map[string]interface{}{
		"action": map[string]interface{}{
			"kind":     string(entry.EntryKind()),
			"name":     entry.EntryName(),
			"version":  entry.EntryVersion(),
			"autonomy": string(entry.EntryAutonomy()),
		},
		"context": map[string]interface{}{
			"actor":         sc.Actor,
			"channel":       sc.Channel,
			"trace_id":      sc.TraceID,
			"invocation_id": sc.InvocationID,
		},
		"inputs": redactInputs(inputs, entry.EntryRedaction()),
	}
	digest := sha256.Sum256([]byte(stableJSON(payload)))
	return hex.EncodeToString(digest[:])
}

// BuildProposal constructs the full proposal artifact for a denied
// request, given the reason selected by policy.ApprovalDenialReason.
func BuildProposal(entry core.Entry, sc core.SkillContext, inputs map[string]interface{}, reason string, ttlSeconds int) Proposal {
	now := time.Now().UTC()
	var redactedFields []string
	if r := entry.EntryRedaction(); r != nil {
		redactedFields = append(redactedFields, r.Inputs...)
	}
	return Proposal{
		ProposalVersion:      ProposalVersion,
		ProposalID:           BuildProposalID(entry, sc, inputs),
		ActionKind:           entry.EntryKind(),
		ActionName:           entry.EntryName(),
		ActionVersion:        entry.EntryVersion(),
		Autonomy:             entry.EntryAutonomy(),
		RequiredCapabilities: entry.EntryCapabilities(),
		PolicyTags:           entry.EntryPolicyTags(),
		ReasonForReview:      reason,
		Context: ProposalContext{
			Actor: sc.Actor, Channel: sc.Channel,
			TraceID: sc.TraceID, InvocationID: sc.InvocationID,
		},
		RedactedInputFields: redactedFields,
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(ttlSeconds) * time.Second),
	}
}

func redactInputs(inputs map[string]interface{}, redaction *core.Redaction) map[string]interface{} {
	if redaction == nil || len(redaction.Inputs) == 0 {
		return inputs
	}
	masked := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		masked[k] = v
	}
	for _, field := range redaction.Inputs {
		if _, ok := masked[field]; ok {
			masked[field] = redactedPlaceholder
		}
	}
	return masked
}

// stableJSON renders v as compact JSON with object keys sorted, the layout
// of Python's json.dumps(sort_keys=True, separators=(",", ":")). Scalars are
// encoded by encoding/json, so the bytes can differ from Python's: "<", ">"
// and "&" are escaped and whole floats print without ".0".
func stableJSON(v interface{}) string {
	buf, _ := marshalSorted(v)
	return string(buf)
}

func marshalSorted(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			keyJSON, _ := json.Marshal(k)
			out = append(out, keyJSON...)
			out = append(out, ':')
			childJSON, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, childJSON...)
		}
		out = append(out, '}')
		return out, nil
	case []interface{}:
		out := []byte("[")
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			itemJSON, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			out = append(out, itemJSON...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(val)
	}
}
