package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sorhq/sor/composition"
	"github.com/sorhq/sor/core"
)

// HTTPAdapter dispatches a logic skill or op whose entrypoint.runtime is
// "http" as a JSON POST against entrypoint.url, the way a WorkflowExecutor
// calls a discovered agent's action endpoint.
type HTTPAdapter struct {
	Client *http.Client
}

// NewHTTPAdapter constructs an HTTPAdapter with the given per-request
// timeout. A zero timeout falls back to DefaultAdapterTimeout.
func NewHTTPAdapter(timeout time.Duration) *HTTPAdapter {
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	return &HTTPAdapter{Client: &http.Client{Timeout: timeout}}
}

func (a *HTTPAdapter) Execute(ctx context.Context, entrypoint core.Entrypoint, inputs map[string]interface{}, sc core.SkillContext, _ *composition.Invocation) (map[string]interface{}, error) {
	body, err := json.Marshal(inputs)
	if err != nil {
		return nil, core.NewError("runtime.HTTPAdapter", "adapter_marshal_failed", err.Error(), core.ErrAdapter, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, entrypoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, core.NewError("runtime.HTTPAdapter", "adapter_request_failed", err.Error(), core.ErrAdapter, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sor-Trace-Id", sc.TraceID)
	req.Header.Set("X-Sor-Invocation-Id", sc.InvocationID)
	req.Header.Set("X-Sor-Actor", sc.Actor)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, core.NewError("runtime.HTTPAdapter", "adapter_call_failed", err.Error(), core.ErrAdapter, nil)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError("runtime.HTTPAdapter", "adapter_response_read_failed", err.Error(), core.ErrAdapter, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewError("runtime.HTTPAdapter", "adapter_bad_status",
			fmt.Sprintf("entrypoint returned status %d: %s", resp.StatusCode, string(respBody)), core.ErrAdapter,
			map[string]interface{}{"status": resp.StatusCode})
	}

	var output map[string]interface{}
	if err := json.Unmarshal(respBody, &output); err != nil {
		return nil, core.NewError("runtime.HTTPAdapter", "adapter_response_invalid", err.Error(), core.ErrAdapter, nil)
	}
	return output, nil
}
