package transport

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sagekit/sagekit/pkg/models"
)

// ToolCall invokes tool_call and decodes the typed envelope. A response whose
// output carries an error is returned as a BackendError alongside the decoded
// envelope, so callers can still inspect usage.
func ToolCall[T any](ctx context.Context, t Transport, input models.ToolInput) (*models.ToolOutput[T], error) {
	raw, err := t.Call(ctx, CmdToolCall, map[string]any{"input": input})
	if err != nil {
		return nil, err
	}

	var out models.ToolOutput[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode tool_call output")
	}

	if out.Output.Error != "" {
		op := input.Name
		if margs, ok := input.Args.(models.MemoryArgs); ok {
			op = margs.Type
		}
		return &out, &BackendError{Op: op, Reason: out.Output.Error}
	}
	return &out, nil
}

// MemoryCall is ToolCall against the memory_api tool.
func MemoryCall[T any](ctx context.Context, t Transport, args models.MemoryArgs) (*models.ToolOutput[T], error) {
	return ToolCall[T](ctx, t, models.ToolInput{Name: models.MemoryToolName, Args: args})
}

// AgentRun invokes agent_run. A failed_reason in the output is the engine's
// concern, not a transport error.
func AgentRun(ctx context.Context, t Transport, input models.AgentInput) (*models.AgentOutput, error) {
	raw, err := t.Call(ctx, CmdAgentRun, map[string]any{"input": input})
	if err != nil {
		return nil, err
	}

	var out models.AgentOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode agent_run output")
	}
	return &out, nil
}
