package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RoleID string

const (
	RoleTriage    RoleID = "triage"
	RoleCredit    RoleID = "credit"
	RoleInterview RoleID = "interview"
	RoleExchange  RoleID = "exchange"
)

// KnownRole reports whether id is a member of the fixed role set.
func KnownRole(id RoleID) bool {
	switch id {
	case RoleTriage, RoleCredit, RoleInterview, RoleExchange:
		return true
	}
	return false
}

type MessageKind string

const (
	MessageCustomer  MessageKind = "customer"
	MessageAssistant MessageKind = "assistant"
	MessageTool      MessageKind = "tool"
)

// ToolCall is a structured tool request carried on an assistant message.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is one entry in the conversation history. Tool-result messages
// carry the name and call id of the invocation they answer.
type Message struct {
	ID         string      `json:"id"`
	Kind       MessageKind `json:"kind"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolName   string      `json:"tool_name,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	At         time.Time   `json:"at"`
}

// CustomerRecord is the authenticated customer's data snapshot. ID never
// changes once set; CreditLimit and Score may be rewritten by effects.
type CustomerRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	BirthDate   string  `json:"birth_date"`
	CreditLimit float64 `json:"credit_limit"`
	Score       int     `json:"score"`
}

type Phase string

const (
	PhaseAwaitingInput Phase = "awaiting_input"
	PhaseRoleTurn      Phase = "role_turn"
	PhaseDispatching   Phase = "dispatching"
	PhaseTerminated    Phase = "terminated"
)

const MaxAuthAttempts = 3

var (
	ErrInvalidConversation = errors.New("conversation id is empty")
	ErrHistoryTruncated    = errors.New("history may not shrink")
	ErrUnknownRole         = errors.New("unknown role id")
	ErrRecordMismatch      = errors.New("customer record does not match authentication flag")
)

// ConversationState is the single shared mutable record threaded through
// every turn of one customer session. It is owned by exactly one loop and
// never shared across sessions.
type ConversationState struct {
	ConversationID string    `json:"conversation_id"`
	History        []Message `json:"history"`

	ActiveRole    RoleID          `json:"active_role"`
	Customer      *CustomerRecord `json:"customer,omitempty"`
	AuthAttempts  int             `json:"auth_attempts"`
	Authenticated bool            `json:"authenticated"`
	ShouldEnd     bool            `json:"should_end"`

	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversationState(now time.Time) *ConversationState {
	return &ConversationState{
		ConversationID: uuid.NewString(),
		ActiveRole:     RoleTriage,
		Phase:          PhaseAwaitingInput,
		StartedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// AppendCustomer appends a customer message and returns it.
func (s *ConversationState) AppendCustomer(text string, now time.Time) Message {
	msg := Message{
		ID:      uuid.NewString(),
		Kind:    MessageCustomer,
		Content: text,
		At:      now.UTC(),
	}
	s.History = append(s.History, msg)
	s.Touch(now)
	return msg
}

// AppendAssistant appends an assistant message, optionally carrying the
// tool calls the role requested.
func (s *ConversationState) AppendAssistant(text string, calls []ToolCall, now time.Time) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Kind:      MessageAssistant,
		Content:   text,
		ToolCalls: calls,
		At:        now.UTC(),
	}
	s.History = append(s.History, msg)
	s.Touch(now)
	return msg
}

// AppendToolResult appends a tool-result message answering the given call.
func (s *ConversationState) AppendToolResult(call ToolCall, text string, now time.Time) Message {
	msg := Message{
		ID:         uuid.NewString(),
		Kind:       MessageTool,
		Content:    text,
		ToolName:   call.Name,
		ToolCallID: call.ID,
		At:         now.UTC(),
	}
	s.History = append(s.History, msg)
	s.Touch(now)
	return msg
}

// MarkAuthenticated records a successful authentication: it populates the
// customer record and resets the failure counter. The flag never reverts.
func (s *ConversationState) MarkAuthenticated(rec CustomerRecord, now time.Time) {
	copied := rec
	s.Customer = &copied
	s.Authenticated = true
	s.AuthAttempts = 0
	s.Touch(now)
}

// RecordAuthFailure increments the failure counter and reports whether the
// lockout threshold has been reached.
func (s *ConversationState) RecordAuthFailure(now time.Time) (lockedOut bool) {
	s.AuthAttempts++
	s.Touch(now)
	return s.AuthAttempts >= MaxAuthAttempts
}

func (s *ConversationState) Terminated() bool {
	return s.Phase == PhaseTerminated
}

// Clone deep-copies the state so a dispatch cycle can work on a scratch
// copy and commit atomically.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make([]Message, len(s.History))
	for i, msg := range s.History {
		copied := msg
		if len(msg.ToolCalls) > 0 {
			copied.ToolCalls = make([]ToolCall, len(msg.ToolCalls))
			for j, call := range msg.ToolCalls {
				callCopy := call
				if len(call.Args) > 0 {
					callCopy.Args = make(map[string]any, len(call.Args))
					for k, v := range call.Args {
						callCopy.Args[k] = v
					}
				}
				copied.ToolCalls[j] = callCopy
			}
		}
		out.History[i] = copied
	}
	if s.Customer != nil {
		rec := *s.Customer
		out.Customer = &rec
	}
	return &out
}

// CommitFrom replaces the receiver's contents with a scratch copy produced
// by Clone. It guards against a shrunken history slipping through.
func (s *ConversationState) CommitFrom(scratch *ConversationState) error {
	if scratch == nil {
		return errors.New("nil scratch state")
	}
	if len(scratch.History) < len(s.History) {
		return ErrHistoryTruncated
	}
	*s = *scratch
	return nil
}

// Validate checks the cross-field invariants the rest of the pipeline
// relies on.
func (s *ConversationState) Validate() error {
	if s.ConversationID == "" {
		return ErrInvalidConversation
	}
	if !KnownRole(s.ActiveRole) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, s.ActiveRole)
	}
	if s.Authenticated != (s.Customer != nil) {
		return ErrRecordMismatch
	}
	if s.AuthAttempts < 0 || s.AuthAttempts > MaxAuthAttempts {
		return fmt.Errorf("auth attempts out of range: %d", s.AuthAttempts)
	}
	return nil
}
