package contract

import (
	"context"

	statex "github.com/agilbank/concierge/agent/state"
)

// Role produces the next assistant turn for the conversation. It must not
// mutate the state it is given; all mutation goes through the dispatcher.
type Role interface {
	ProduceTurn(ctx context.Context, st *statex.ConversationState) (RoleResponse, error)
}

// RoleRegistry resolves a role id to its implementation.
type RoleRegistry interface {
	Role(id statex.RoleID) (Role, bool)
}

// ModelClient is the external language-model collaborator. Transport or
// quota failures surface as ErrModelUnavailable.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// QuoteGateway fetches the current quote for a currency against BRL.
type QuoteGateway interface {
	GetQuote(ctx context.Context, code string) (Quote, error)
}
