package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

// defaultMaxCycles bounds the number of role-turn/dispatch rounds a single
// customer message may trigger. A healthy turn needs at most a handful
// (authenticate, transfer, respond); anything beyond that is a model loop.
const defaultMaxCycles = 8

// ErrCycleBudgetExceeded reports a turn that kept requesting tools without
// ever producing a customer-facing reply.
var ErrCycleBudgetExceeded = errors.New("turn exceeded tool cycle budget")

const (
	apologyMessage  = "I am sorry, but I am having technical difficulties right now. Please try again in a few moments."
	farewellMessage = "Thank you for contacting Agil Bank. If you need anything else, just start a new conversation. Goodbye!"
	lockoutMessage  = "For security reasons, this conversation has been closed after three failed identification attempts. Please visit a branch with an identity document to regain access."
)

// Loop drives one conversation: it invokes the active role, hands tool
// invocations to the dispatcher, and repeats until a role answers the
// customer in plain text or the conversation terminates.
type Loop struct {
	state      *statex.ConversationState
	roles      contractx.RoleRegistry
	dispatcher *Dispatcher
	store      statex.Store
	maxCycles  int
	now        func() time.Time
}

type LoopOption func(*Loop)

// WithMaxCycles overrides the per-turn cycle budget.
func WithMaxCycles(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxCycles = n
		}
	}
}

// WithClock overrides the loop's time source.
func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithState resumes an existing conversation instead of starting a new one.
func WithState(st *statex.ConversationState) LoopOption {
	return func(l *Loop) {
		if st != nil {
			l.state = st
		}
	}
}

func NewLoop(roles contractx.RoleRegistry, dispatcher *Dispatcher, store statex.Store, opts ...LoopOption) (*Loop, error) {
	if roles == nil {
		return nil, errors.New("role registry is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	l := &Loop{
		roles:      roles,
		dispatcher: dispatcher,
		store:      store,
		maxCycles:  defaultMaxCycles,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.state == nil {
		l.state = statex.NewConversationState(l.now())
	}
	if err := l.state.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// State returns a snapshot of the conversation state.
func (l *Loop) State() *statex.ConversationState {
	return l.state.Clone()
}

// Terminated reports whether the conversation has ended.
func (l *Loop) Terminated() bool {
	return l.state.Terminated()
}

// Start produces the opening assistant greeting. The triage role owns the
// first turn without any customer input.
func (l *Loop) Start(ctx context.Context) (string, error) {
	if l.state.Terminated() {
		return "", l.endedErr()
	}
	return l.runCycles(ctx)
}

// HandleMessage appends the customer's message and runs role turns until a
// plain-text reply or termination. The returned string is what the customer
// should see.
func (l *Loop) HandleMessage(ctx context.Context, text string) (string, error) {
	if l.state.Terminated() {
		return "", l.endedErr()
	}
	l.state.AppendCustomer(text, l.now())
	return l.runCycles(ctx)
}

func (l *Loop) runCycles(ctx context.Context) (string, error) {
	for cycle := 0; cycle < l.maxCycles; cycle++ {
		l.state.Phase = statex.PhaseRoleTurn

		role, ok := l.roles.Role(l.state.ActiveRole)
		if !ok {
			return "", fmt.Errorf("%w: %q", statex.ErrUnknownRole, l.state.ActiveRole)
		}

		resp, err := role.ProduceTurn(ctx, l.state)
		if err != nil {
			if errors.Is(err, contractx.ErrModelUnavailable) {
				// Recoverable: apologize and wait for the next message. No
				// tool effects were applied, so the state is otherwise
				// untouched.
				log.Error().Err(err).Str("role", string(l.state.ActiveRole)).Msg("model unavailable")
				l.state.AppendAssistant(apologyMessage, nil, l.now())
				l.state.Phase = statex.PhaseAwaitingInput
				return apologyMessage, nil
			}
			return "", err
		}

		l.state.AppendAssistant(resp.Message, resp.Invocations, l.now())

		if !HasPendingToolCalls(resp) {
			l.state.Phase = statex.PhaseAwaitingInput
			return resp.Message, nil
		}

		l.state.Phase = statex.PhaseDispatching
		if err := l.dispatcher.Dispatch(ctx, l.state, resp.Invocations); err != nil {
			l.terminate(ctx)
			return "", err
		}

		if _, stop := NextRole(l.state); stop {
			closing := farewellMessage
			if l.lockedOut() {
				closing = lockoutMessage
			}
			l.state.AppendAssistant(closing, nil, l.now())
			l.terminate(ctx)
			return closing, nil
		}
	}

	l.terminate(ctx)
	return "", fmt.Errorf("%w: %d cycles", ErrCycleBudgetExceeded, l.maxCycles)
}

func (l *Loop) lockedOut() bool {
	return !l.state.Authenticated && l.state.AuthAttempts >= statex.MaxAuthAttempts
}

// endedErr distinguishes a security lockout from an ordinary goodbye so
// callers can tell the customer why the session is closed.
func (l *Loop) endedErr() error {
	if l.lockedOut() {
		return fmt.Errorf("%w: %w", contractx.ErrConversationEnded, contractx.ErrAuthLockout)
	}
	return contractx.ErrConversationEnded
}

// terminate flips the conversation into its final phase and archives it.
// Archiving is best effort: a storage failure must not mask the reply.
func (l *Loop) terminate(ctx context.Context) {
	l.state.Phase = statex.PhaseTerminated
	l.state.Touch(l.now())
	if l.store == nil {
		return
	}
	if err := l.store.Save(ctx, l.state); err != nil {
		log.Error().Err(err).Str("conversation_id", l.state.ConversationID).Msg("failed to archive conversation")
	}
}
