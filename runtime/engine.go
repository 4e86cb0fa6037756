// Package runtime provides the unified execution orchestrator for skills
// (logic and pipeline) and ops: status checks, schema validation, policy
// evaluation, approval routing, adapter/pipeline dispatch, and audit.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sorhq/sor/approval"
	"github.com/sorhq/sor/audit"
	"github.com/sorhq/sor/composition"
	"github.com/sorhq/sor/core"
	"github.com/sorhq/sor/pipeline"
	"github.com/sorhq/sor/policy"
	"github.com/sorhq/sor/registry"
	"github.com/sorhq/sor/schemaval"
)

// RoutingHook previews an invocation to an external attention-routing
// collaborator before policy evaluation. It is best-effort: the engine
// logs and continues on error rather than failing the request.
type RoutingHook func(entry core.Entry, sc core.SkillContext, inputs map[string]interface{}) error

func noopRoutingHook(core.Entry, core.SkillContext, map[string]interface{}) error { return nil }

// Engine wires the registry, policy evaluator, composition gate, pipeline
// interpreter, approval subsystem, and audit logger into the single
// execute() path every skill and op invocation runs through.
type Engine struct {
	Registry        *registry.Loader
	Policy          *policy.Evaluator
	Adapters        map[core.EntrypointRuntime]Adapter
	Recorder        approval.Recorder
	AttentionRouter approval.AttentionRouter
	Audit           *audit.Logger
	RoutingHook     RoutingHook
	AdapterTimeout  time.Duration
	Logger          core.Logger

	tracer trace.Tracer
	meter  metric.Meter
	counter metric.Int64Counter
}

// NewEngine constructs an Engine. A nil Recorder defaults to discarding
// proposals/decisions; the RoutingHook field starts as a no-op.
func NewEngine(reg *registry.Loader, pol *policy.Evaluator, adapters map[core.EntrypointRuntime]Adapter, recorder approval.Recorder, auditLogger *audit.Logger, logger core.Logger) *Engine {
	if recorder == nil {
		recorder = approval.NullRecorder{}
	}
	if logger == nil {
		logger = core.NoopLogger{}
	}
	e := &Engine{
		Registry:       reg,
		Policy:         pol,
		Adapters:       adapters,
		Recorder:       recorder,
		Audit:          auditLogger,
		RoutingHook:    noopRoutingHook,
		AdapterTimeout: DefaultAdapterTimeout,
		Logger:         logger,
		tracer:         otel.Tracer("github.com/sorhq/sor/runtime"),
		meter:          otel.Meter("github.com/sorhq/sor/runtime"),
	}
	e.counter, _ = e.meter.Int64Counter("sor.executions",
		metric.WithDescription("Count of skill and op executions by name and terminal status."))
	return e
}

// Execute implements core.Executor: resolve (kind, name, version), then
// run it end-to-end.
func (e *Engine) Execute(kind core.CallTargetKind, name, version string, inputs map[string]interface{}, sc core.SkillContext) (*core.ExecutionResult, error) {
	switch kind {
	case core.CallTargetSkill:
		entry, err := e.Registry.GetSkill(name, version)
		if err != nil {
			return nil, err
		}
		return e.executeSkill(entry, inputs, sc)
	case core.CallTargetOp:
		entry, err := e.Registry.GetOp(name, version)
		if err != nil {
			return nil, err
		}
		return e.executeOp(entry, inputs, sc)
	default:
		return nil, core.NewError("runtime.Execute", "unknown_kind", fmt.Sprintf("unknown call target kind %q", kind), core.ErrValidation, nil)
	}
}

// ResolveEntry implements core.EntryResolver for the composition gate and
// pipeline interpreter.
func (e *Engine) ResolveEntry(kind core.CallTargetKind, name, version string) (core.Entry, error) {
	switch kind {
	case core.CallTargetSkill:
		entry, err := e.Registry.GetSkill(name, version)
		if err != nil {
			return nil, err
		}
		return entry, nil
	case core.CallTargetOp:
		entry, err := e.Registry.GetOp(name, version)
		if err != nil {
			return nil, err
		}
		return entry, nil
	default:
		return nil, core.NewError("runtime.ResolveEntry", "unknown_kind", fmt.Sprintf("unknown call target kind %q", kind), core.ErrValidation, nil)
	}
}

// ExecuteSkill runs a skill by name/version, exposed separately from
// Execute so callers that already know they want a skill (the HTTP/MCP
// front door, tests) don't need to spell out the kind.
func (e *Engine) ExecuteSkill(name, version string, inputs map[string]interface{}, sc core.SkillContext) (*core.ExecutionResult, error) {
	return e.Execute(core.CallTargetSkill, name, version, inputs, sc)
}

// ExecuteOp mirrors ExecuteSkill for ops.
func (e *Engine) ExecuteOp(name, version string, inputs map[string]interface{}, sc core.SkillContext) (*core.ExecutionResult, error) {
	return e.Execute(core.CallTargetOp, name, version, inputs, sc)
}

func (e *Engine) executeSkill(entry *registry.SkillEntry, inputs map[string]interface{}, sc core.SkillContext) (*core.ExecutionResult, error) {
	return e.executeEntry(entry, inputs, sc, func(ctx context.Context) (map[string]interface{}, error) {
		if entry.Definition.Kind == core.SkillKindPipeline {
			interpreter := pipeline.NewInterpreter(e, e)
			return interpreter.Run(entry.Definition, inputs, sc)
		}
		adapter, ok := e.Adapters[entry.Definition.Entrypoint.Runtime]
		if !ok {
			return nil, core.NewError("runtime.executeSkill", "adapter_missing",
				fmt.Sprintf("no adapter for runtime %s", entry.Definition.Entrypoint.Runtime), core.ErrAdapter, nil)
		}
		composer := composition.NewComposer(e, e)
		invocation := composition.NewInvocation(composer, entry.Definition, sc)
		return adapter.Execute(ctx, *entry.Definition.Entrypoint, inputs, sc, invocation)
	})
}

func (e *Engine) executeOp(entry *registry.OpEntry, inputs map[string]interface{}, sc core.SkillContext) (*core.ExecutionResult, error) {
	return e.executeEntry(entry, inputs, sc, func(ctx context.Context) (map[string]interface{}, error) {
		adapter, ok := e.Adapters[entry.Definition.Runtime]
		if !ok {
			return nil, core.NewError("runtime.executeOp", "adapter_missing",
				fmt.Sprintf("no adapter for runtime %s", entry.Definition.Runtime), core.ErrAdapter, nil)
		}
		entrypoint := entry.Definition.EntrypointView()
		return adapter.Execute(ctx, entrypoint, inputs, sc, nil)
	})
}

// executeEntry is the shared orchestration sequence for skills and ops:
// status check, input validation, routing preview, policy evaluation,
// approval proposal on denial, dispatch (via dispatch), output
// validation, and audit — matching the fixed pipeline pseudocode this
// runtime is built from.
func (e *Engine) executeEntry(entry core.Entry, inputs map[string]interface{}, sc core.SkillContext, dispatch func(ctx context.Context) (map[string]interface{}, error)) (*core.ExecutionResult, error) {
	start := time.Now()
	spanCtx, span := e.tracer.Start(context.Background(), fmt.Sprintf("sor.execute.%s", entry.EntryName()),
		trace.WithAttributes(
			attribute.String("sor.kind", string(entry.EntryKind())),
			attribute.String("sor.name", entry.EntryName()),
			attribute.String("sor.version", entry.EntryVersion()),
		))
	defer span.End()

	if entry.EntryStatus() != core.StatusEnabled {
		e.recordAudit(entry, sc, audit.StatusDenied, nil, inputs, nil, fmt.Sprintf("entry_%s", entry.EntryStatus()), nil, nil)
		e.countExecution(entry, "denied")
		return nil, core.NewError("runtime.execute", "entry_unavailable",
			fmt.Sprintf("%s %s is %s", entry.EntryKind(), entry.EntryName(), entry.EntryStatus()), core.ErrPolicy,
			map[string]interface{}{"status": entry.EntryStatus()})
	}

	if err := schemaval.ValidateLabeled(toInterfaceMap(inputs), entry.EntryInputsSchema(), "inputs"); err != nil {
		e.recordAudit(entry, sc, audit.StatusFailed, nil, inputs, nil, err.Error(), nil, nil)
		e.countExecution(entry, "failed")
		return nil, core.NewError("runtime.execute", "input_validation_failed", err.Error(), core.ErrValidation, nil)
	}

	if err := e.RoutingHook(entry, sc, inputs); err != nil {
		e.Logger.Warn("attention routing preview failed", map[string]interface{}{"name": entry.EntryName(), "error": err.Error()})
	}

	proposalID := approval.BuildProposalID(entry, sc, inputs)
	policyCtx := policy.FromSkillContext(sc, proposalID)
	decision := e.Policy.Evaluate(entry, policyCtx)

	if !decision.Allowed {
		if core.RequiresApproval(entry) && policy.IsApprovalOnlyDenial(decision.Reasons) {
			reason := policy.ApprovalDenialReason(decision.Reasons)
			if reason == "" {
				reason = "review_required"
			}
			proposal := approval.BuildProposal(entry, sc, inputs, reason, approval.DefaultTTLSeconds)
			e.Recorder.RecordProposal(proposal)
			if e.AttentionRouter != nil {
				if err := e.AttentionRouter.Route(spanCtx, proposal, sc); err != nil {
					e.Logger.Error("attention routing failed", map[string]interface{}{"proposal_id": proposal.ProposalID, "error": err.Error()})
				}
			}
		}
		e.recordApprovalDecision(entry, sc, proposalID, decision)
		e.recordAudit(entry, sc, audit.StatusDenied, nil, inputs, nil, strings.Join(decision.Reasons, "; "), decision.Reasons, decision.Metadata)
		e.countExecution(entry, "denied")
		return nil, core.NewError("runtime.execute", "policy_denied", "invocation denied by policy", core.ErrPolicy,
			map[string]interface{}{"reasons": decision.Reasons})
	}
	e.recordApprovalDecision(entry, sc, proposalID, decision)

	ctx := spanCtx
	var cancel context.CancelFunc
	timeout := e.AdapterTimeout
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := dispatch(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = core.NewError("runtime.execute", "timeout",
				fmt.Sprintf("%s %s exceeded adapter timeout %s: %v", entry.EntryKind(), entry.EntryName(), timeout, err), core.ErrAdapter,
				map[string]interface{}{"timeout_ms": timeout.Milliseconds()})
		}
		e.recordAudit(entry, sc, audit.StatusFailed, nil, inputs, nil, err.Error(), decision.Reasons, decision.Metadata)
		e.countExecution(entry, "failed")
		return nil, err
	}

	if err := schemaval.ValidateLabeled(toInterfaceMap(output), entry.EntryOutputsSchema(), "outputs"); err != nil {
		e.recordAudit(entry, sc, audit.StatusFailed, nil, inputs, output, err.Error(), decision.Reasons, decision.Metadata)
		e.countExecution(entry, "failed")
		return nil, core.NewError("runtime.execute", "output_validation_failed", err.Error(), core.ErrValidation, nil)
	}

	durationMs := time.Since(start).Milliseconds()
	e.recordAudit(entry, sc, audit.StatusSuccess, &durationMs, inputs, output, "", decision.Reasons, decision.Metadata)
	e.countExecution(entry, "success")
	return &core.ExecutionResult{Output: output, DurationMs: durationMs}, nil
}

func (e *Engine) recordAudit(entry core.Entry, sc core.SkillContext, status audit.Status, durationMs *int64, inputs, outputs map[string]interface{}, errText string, reasons []string, metadata map[string]string) {
	if e.Audit == nil {
		return
	}
	audit.Record(e.Audit, entry, sc, status, durationMs, inputs, outputs, errText, reasons, metadata)
}

func (e *Engine) countExecution(entry core.Entry, status string) {
	if e.counter == nil {
		return
	}
	e.counter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("sor.name", entry.EntryName()),
		attribute.String("sor.status", status),
	))
}

// recordApprovalDecision persists a decision record whenever an entry
// requiring approval was resolved one way or another: a presented token
// (valid, expired, or otherwise rejected) or an operator's confirmed flag
// standing in for one.
func (e *Engine) recordApprovalDecision(entry core.Entry, sc core.SkillContext, proposalID string, decision policy.Decision) {
	if !core.RequiresApproval(entry) {
		return
	}
	now := time.Now().UTC()
	if status, ok := decision.Metadata["policy.approval.token_status"]; ok {
		outcome := "rejected"
		switch status {
		case "valid":
			outcome = "approved"
		case "expired":
			outcome = "expired"
		}
		e.Recorder.RecordDecision(approval.Decision{ProposalID: proposalID, Actor: sc.Actor, Decision: outcome, DecidedAt: now, TokenUsed: true})
		return
	}
	if decision.Allowed && sc.Confirmed {
		e.Recorder.RecordDecision(approval.Decision{ProposalID: proposalID, Actor: sc.Actor, Decision: "approved", DecidedAt: now, TokenUsed: false})
	}
}

func toInterfaceMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
