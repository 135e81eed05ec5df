package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

// roleImpl binds one conversational specialty to its fixed instruction set
// and granted tools. It never mutates the state it reads; dispatching the
// returned invocations is the orchestrator's job.
type roleImpl struct {
	id           statex.RoleID
	instructions string
	tools        []contractx.ToolDefinition
	model        contractx.ModelClient
}

func newRole(
	id statex.RoleID,
	instructions string,
	tools []contractx.ToolDefinition,
	model contractx.ModelClient,
) (*roleImpl, error) {
	if strings.TrimSpace(instructions) == "" {
		return nil, fmt.Errorf("%w: role %s", contractx.ErrPromptMissing, id)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: model client is required", contractx.ErrValidation)
	}
	return &roleImpl{
		id:           id,
		instructions: instructions,
		tools:        tools,
		model:        model,
	}, nil
}

func (r *roleImpl) ProduceTurn(ctx context.Context, st *statex.ConversationState) (contractx.RoleResponse, error) {
	if st == nil {
		return contractx.RoleResponse{}, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}

	resp, err := r.model.Complete(ctx, contractx.CompletionRequest{
		Instructions: r.instructions,
		History:      st.History,
		Tools:        r.tools,
	})
	if err != nil {
		if errors.Is(err, contractx.ErrModelUnavailable) {
			return contractx.RoleResponse{}, err
		}
		log.Error().Err(err).Str("role", string(r.id)).Msg("model completion failed")
		return contractx.RoleResponse{}, fmt.Errorf("%w: role %s: %v", contractx.ErrModelUnavailable, r.id, err)
	}

	message := strings.TrimSpace(resp.Message)
	invocations := normalizeInvocations(resp.Invocations)
	if message == "" && len(invocations) == 0 {
		// A blank completion with nothing to do is indistinguishable from a
		// broken model for the caller.
		return contractx.RoleResponse{}, fmt.Errorf("%w: role %s returned an empty completion", contractx.ErrModelUnavailable, r.id)
	}

	return contractx.RoleResponse{
		Message:     message,
		Invocations: invocations,
	}, nil
}

func normalizeInvocations(calls []statex.ToolCall) []statex.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]statex.ToolCall, 0, len(calls))
	for _, call := range calls {
		call.Name = strings.TrimSpace(call.Name)
		if call.Name == "" {
			continue
		}
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		if call.Args == nil {
			call.Args = map[string]any{}
		}
		out = append(out, call)
	}
	return out
}
