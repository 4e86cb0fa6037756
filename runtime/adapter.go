package runtime

import (
	"context"
	"time"

	"github.com/sorhq/sor/composition"
	"github.com/sorhq/sor/core"
)

// DefaultAdapterTimeout bounds how long a single adapter dispatch may run
// before the engine cancels it and reports a failure with code "timeout".
const DefaultAdapterTimeout = 30 * time.Second

// Adapter dispatches a logic skill or op to its runtime-specific backend:
// an in-process handler table, an HTTP client, an MCP/tool transport, or a
// subprocess launcher. invocation is non-nil only for logic skills, which
// may use it to call their declared downstream targets.
type Adapter interface {
	Execute(ctx context.Context, entrypoint core.Entrypoint, inputs map[string]interface{}, sc core.SkillContext, invocation *composition.Invocation) (map[string]interface{}, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, entrypoint core.Entrypoint, inputs map[string]interface{}, sc core.SkillContext, invocation *composition.Invocation) (map[string]interface{}, error)

func (f AdapterFunc) Execute(ctx context.Context, entrypoint core.Entrypoint, inputs map[string]interface{}, sc core.SkillContext, invocation *composition.Invocation) (map[string]interface{}, error) {
	return f(ctx, entrypoint, inputs, sc, invocation)
}
