package tool

import (
	"context"

	contractx "github.com/agilbank/concierge/agent/contract"
)

const ToolEndConversation = "end_conversation"

func endConversationDef() contractx.ToolDefinition {
	return contractx.ToolDefinition{
		Name:        ToolEndConversation,
		Description: "End the service conversation with the customer.",
	}
}

func newEndConversationHandler() Handler {
	return func(_ context.Context, _ map[string]any) (Outcome, error) {
		return Outcome{
			Text:   "CLOSED: service conversation finished.",
			Effect: contractx.Effect{Kind: contractx.EffectEndConversation},
		}, nil
	}
}
