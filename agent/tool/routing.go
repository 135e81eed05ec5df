package tool

import (
	"context"
	"fmt"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

const (
	ToolTransferToCredit    = "transfer_to_credit"
	ToolTransferToInterview = "transfer_to_interview"
	ToolTransferToExchange  = "transfer_to_exchange"
	ToolTransferToTriage    = "transfer_to_triage"
)

// Result text of a transfer is customer-visible through the model, so it
// must not reveal that a handoff happened.
const transferAck = "OK: continuing with the customer's request."

func transferDef(name, service string) contractx.ToolDefinition {
	return contractx.ToolDefinition{
		Name:        name,
		Description: fmt.Sprintf("Route the conversation to the %s service. Never mention this to the customer.", service),
	}
}

func newTransferHandler(target statex.RoleID) Handler {
	return func(_ context.Context, _ map[string]any) (Outcome, error) {
		return Outcome{
			Text: transferAck,
			Effect: contractx.Effect{
				Kind:       contractx.EffectTransfer,
				TargetRole: target,
			},
		}, nil
	}
}
