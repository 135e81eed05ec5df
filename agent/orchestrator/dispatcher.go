package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
	toolx "github.com/agilbank/concierge/agent/tool"
)

const (
	unknownToolText = "ERROR: tool %q is not available."
	toolFailureText = "SYSTEM_ERROR: this operation failed. Please try again later."
	gatewayDownText = "SYSTEM_ERROR: the service backing this operation is unavailable. Please try again later."
)

// Dispatcher executes a role's pending tool invocations in order and folds
// each result into the conversation state according to the tool's effect
// kind. One dispatch cycle is the unit of atomicity: it works on a scratch
// clone and commits only when every invocation has been processed.
type Dispatcher struct {
	registry *toolx.Registry
	now      func() time.Time
}

func NewDispatcher(registry *toolx.Registry) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	return &Dispatcher{registry: registry, now: time.Now}, nil
}

// Dispatch runs every invocation against a scratch copy of st and commits
// atomically. A returned error means nothing was committed and the
// conversation cannot safely continue.
func (d *Dispatcher) Dispatch(ctx context.Context, st *statex.ConversationState, invocations []statex.ToolCall) error {
	if st == nil {
		return fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}

	scratch := st.Clone()

	// Invocations are attributed to the role that was active when the turn
	// started; a mid-batch transfer must not widen the grant set.
	requester := st.ActiveRole

	for _, call := range invocations {
		binding, ok := d.registry.Lookup(call.Name)
		if !ok || !d.registry.AllowedFor(requester, call.Name) {
			log.Warn().Str("tool", call.Name).Str("role", string(requester)).Msg("tool not available to role")
			scratch.AppendToolResult(call, fmt.Sprintf(unknownToolText, call.Name), d.now())
			continue
		}

		outcome, err := binding.Handler(ctx, call.Args)
		if err != nil {
			if errors.Is(err, contractx.ErrMissingCustomerRecord) {
				return err
			}
			log.Error().Err(err).Str("tool", call.Name).Msg("tool handler failed")
			text := toolFailureText
			if errors.Is(err, contractx.ErrGatewayUnavailable) {
				text = gatewayDownText
			}
			scratch.AppendToolResult(call, text, d.now())
			continue
		}

		scratch.AppendToolResult(call, outcome.Text, d.now())

		if err := d.applyEffect(scratch, outcome.Effect); err != nil {
			return err
		}
	}

	if err := scratch.Validate(); err != nil {
		return fmt.Errorf("dispatch produced invalid state: %w", err)
	}
	return st.CommitFrom(scratch)
}

func (d *Dispatcher) applyEffect(st *statex.ConversationState, effect contractx.Effect) error {
	switch effect.Kind {
	case contractx.EffectNone, "":
		return nil

	case contractx.EffectAuthenticate:
		if effect.AuthOK {
			if effect.Customer == nil {
				return fmt.Errorf("%w: authenticate effect without customer data", contractx.ErrValidation)
			}
			st.MarkAuthenticated(*effect.Customer, d.now())
			return nil
		}
		if lockedOut := st.RecordAuthFailure(d.now()); lockedOut {
			// Third consecutive failure: the conversation terminates rather
			// than allowing further attempts.
			st.ShouldEnd = true
			log.Warn().Int("attempts", st.AuthAttempts).Msg("authentication locked out")
		}
		return nil

	case contractx.EffectTransfer:
		if !statex.KnownRole(effect.TargetRole) {
			return fmt.Errorf("%w: transfer to unknown role %q", contractx.ErrValidation, effect.TargetRole)
		}
		st.ActiveRole = effect.TargetRole
		return nil

	case contractx.EffectEndConversation:
		st.ShouldEnd = true
		return nil

	case contractx.EffectUpdateScore:
		if st.Customer == nil {
			return fmt.Errorf("%w: update score effect", contractx.ErrMissingCustomerRecord)
		}
		st.Customer.Score = effect.Score
		return nil

	case contractx.EffectUpdateLimit:
		if st.Customer == nil {
			return fmt.Errorf("%w: update limit effect", contractx.ErrMissingCustomerRecord)
		}
		st.Customer.CreditLimit = effect.Limit
		return nil

	default:
		return fmt.Errorf("%w: unknown effect kind %q", contractx.ErrValidation, effect.Kind)
	}
}
