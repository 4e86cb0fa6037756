package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/sorhq/sor/composition"
	"github.com/sorhq/sor/core"
)

// Handler is an in-process function registered under a module+handler
// pair, the native dispatch target for a "python" runtime entrypoint. It
// stands in for the original runtime's in-process module call: instead of
// importing a module at a path, a Go deployment registers a function at
// the same (module, handler) coordinates the registry already names.
type Handler func(ctx context.Context, inputs map[string]interface{}, sc core.SkillContext, invocation *composition.Invocation) (map[string]interface{}, error)

// HandlerAdapter dispatches "python"-runtime entrypoints to registered
// in-process Handlers, keyed by "module.handler".
type HandlerAdapter struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerAdapter constructs an empty HandlerAdapter; register handlers
// with Register before it can dispatch anything.
func NewHandlerAdapter() *HandlerAdapter {
	return &HandlerAdapter{handlers: make(map[string]Handler)}
}

// Register binds fn to (module, handler). Re-registering the same pair
// replaces the previous binding.
func (a *HandlerAdapter) Register(module, handler string, fn Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[handlerKey(module, handler)] = fn
}

func (a *HandlerAdapter) Execute(ctx context.Context, entrypoint core.Entrypoint, inputs map[string]interface{}, sc core.SkillContext, invocation *composition.Invocation) (map[string]interface{}, error) {
	a.mu.RLock()
	fn, ok := a.handlers[handlerKey(entrypoint.Module, entrypoint.Handler)]
	a.mu.RUnlock()
	if !ok {
		return nil, core.NewError("runtime.HandlerAdapter", "handler_not_registered",
			fmt.Sprintf("no handler registered for %s.%s", entrypoint.Module, entrypoint.Handler), core.ErrAdapter,
			map[string]interface{}{"module": entrypoint.Module, "handler": entrypoint.Handler})
	}
	return fn(ctx, inputs, sc, invocation)
}

func handlerKey(module, handler string) string {
	return module + "." + handler
}

// ScriptAdapter dispatches "script"-runtime entrypoints to a subprocess:
// inputs are marshaled to JSON on the child's stdin, and the child's
// stdout is expected to be exactly one JSON object.
type ScriptAdapter struct{}

func NewScriptAdapter() *ScriptAdapter { return &ScriptAdapter{} }

func (a *ScriptAdapter) Execute(ctx context.Context, entrypoint core.Entrypoint, inputs map[string]interface{}, sc core.SkillContext, _ *composition.Invocation) (map[string]interface{}, error) {
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, core.NewError("runtime.ScriptAdapter", "adapter_marshal_failed", err.Error(), core.ErrAdapter, nil)
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", entrypoint.Command)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(cmd.Env,
		"SOR_TRACE_ID="+sc.TraceID,
		"SOR_INVOCATION_ID="+sc.InvocationID,
		"SOR_ACTOR="+sc.Actor,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, core.NewError("runtime.ScriptAdapter", "adapter_process_failed",
			fmt.Sprintf("%v: %s", err, stderr.String()), core.ErrAdapter, nil)
	}

	var output map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, core.NewError("runtime.ScriptAdapter", "adapter_response_invalid", err.Error(), core.ErrAdapter, nil)
	}
	return output, nil
}
