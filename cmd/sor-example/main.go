// Command sor-example wires the registry loader, policy evaluator,
// approval subsystem, and execution engine together against the sample
// registry in config/, then runs one allowed invocation and one denied
// (approval-gated) invocation to demonstrate the full request path.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sorhq/sor/approval"
	"github.com/sorhq/sor/audit"
	"github.com/sorhq/sor/composition"
	"github.com/sorhq/sor/core"
	"github.com/sorhq/sor/policy"
	"github.com/sorhq/sor/registry"
	"github.com/sorhq/sor/runtime"
)

func main() {
	cfg, err := core.NewConfig(
		core.WithSkillsPath("config/skills.json"),
		core.WithOpsPath("config/ops.json"),
		core.WithCapabilitiesPath("config/capabilities.json"),
	)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	loader := registry.NewLoader(cfg.SkillsPath, cfg.OpsPath, cfg.CapabilitiesPath, cfg.OverlayPaths, logger)
	if _, err := loader.Load(); err != nil {
		log.Fatalf("registry load: %v", err)
	}

	tokenStore := approval.NewInMemoryTokenStore()
	recorder := approval.NewInMemoryRecorder()
	evaluator := policy.NewEvaluator(policy.NewRateLimiter(), tokenStore, logger)
	auditLogger := audit.NewLogger(logger)

	handlers := runtime.NewHandlerAdapter()
	registerSampleHandlers(handlers)

	engine := runtime.NewEngine(loader, evaluator, map[core.EntrypointRuntime]runtime.Adapter{
		core.RuntimePython: handlers,
		core.RuntimeHTTP:   runtime.NewHTTPAdapter(cfg.AdapterTimeout),
		core.RuntimeScript: runtime.NewScriptAdapter(),
	}, recorder, auditLogger, logger)
	engine.AdapterTimeout = cfg.AdapterTimeout

	demoAllowedInvocation(engine)
	demoApprovalFlow(engine, evaluator, tokenStore, recorder)
}

// registerSampleHandlers binds the in-process handlers the sample registry
// names under entrypoint.module/entrypoint.handler.
func registerSampleHandlers(handlers *runtime.HandlerAdapter) {
	handlers.Register("greetings", "format", func(ctx context.Context, inputs map[string]interface{}, sc core.SkillContext, invocation *composition.Invocation) (map[string]interface{}, error) {
		name, _ := inputs["name"].(string)
		return map[string]interface{}{"greeting": fmt.Sprintf("Hello, %s!", strings.TrimSpace(name))}, nil
	})
	handlers.Register("greetings_skill", "handle", func(ctx context.Context, inputs map[string]interface{}, sc core.SkillContext, invocation *composition.Invocation) (map[string]interface{}, error) {
		result, err := invocation.InvokeOp("format_greeting", inputs, "")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"message": result.Output["greeting"]}, nil
	})
	handlers.Register("ledger", "post", func(ctx context.Context, inputs map[string]interface{}, sc core.SkillContext, invocation *composition.Invocation) (map[string]interface{}, error) {
		return map[string]interface{}{"entry_id": core.NewInvocationID()}, nil
	})
}

func demoAllowedInvocation(engine *runtime.Engine) {
	sc := core.SkillContext{
		Actor:               "demo-user",
		Channel:             "cli",
		AllowedCapabilities: map[string]bool{"greeting.format": true, "greeting.send": true},
		TraceID:             core.NewTraceID(),
		InvocationID:        core.NewInvocationID(),
	}
	result, err := engine.ExecuteSkill("send_greeting", "", map[string]interface{}{"name": "Ada"}, sc)
	if err != nil {
		log.Printf("send_greeting failed: %v", err)
		return
	}
	log.Printf("send_greeting output: %v (took %dms)", result.Output, result.DurationMs)
}

func demoApprovalFlow(engine *runtime.Engine, evaluator *policy.Evaluator, tokenStore *approval.InMemoryTokenStore, recorder *approval.InMemoryRecorder) {
	sc := core.SkillContext{
		Actor:               "demo-user",
		Channel:             "cli",
		AllowedCapabilities: map[string]bool{"ledger.post": true, "ledger.read": true},
		TraceID:             core.NewTraceID(),
		InvocationID:        core.NewInvocationID(),
	}
	inputs := map[string]interface{}{"account": "acct-123", "amount_cents": float64(500)}

	_, err := engine.ExecuteOp("post_ledger_entry", "", inputs, sc)
	if err == nil {
		log.Printf("expected post_ledger_entry to require approval on first attempt")
		return
	}
	log.Printf("post_ledger_entry denied as expected: %v", err)
	if len(recorder.Proposals) == 0 {
		log.Printf("no proposal was recorded")
		return
	}
	proposal := recorder.Proposals[len(recorder.Proposals)-1]
	token := tokenStore.Issue(sc.Actor, proposal.ProposalID, approval.DefaultTTLSeconds)

	sc = sc.WithApproval(token, true)
	result, err := engine.ExecuteOp("post_ledger_entry", "", inputs, sc)
	if err != nil {
		log.Printf("post_ledger_entry failed even with approval token: %v", err)
		return
	}
	log.Printf("post_ledger_entry output: %v", result.Output)
}
