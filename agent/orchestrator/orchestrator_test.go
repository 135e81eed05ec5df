package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
	toolx "github.com/agilbank/concierge/agent/tool"
)

func testTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

type step struct {
	resp contractx.RoleResponse
	err  error
}

// scriptedRole replays a fixed sequence of turns.
type scriptedRole struct {
	steps []step
	calls int
}

func (r *scriptedRole) ProduceTurn(_ context.Context, _ *statex.ConversationState) (contractx.RoleResponse, error) {
	if r.calls >= len(r.steps) {
		return contractx.RoleResponse{}, errors.New("scripted role exhausted")
	}
	s := r.steps[r.calls]
	r.calls++
	return s.resp, s.err
}

type roleMap map[statex.RoleID]contractx.Role

func (m roleMap) Role(id statex.RoleID) (contractx.Role, bool) {
	r, ok := m[id]
	return r, ok
}

func outcomeBinding(name string, outcome toolx.Outcome, err error) toolx.Binding {
	return toolx.Binding{
		Def: contractx.ToolDefinition{Name: name, Description: name},
		Handler: func(_ context.Context, _ map[string]any) (toolx.Outcome, error) {
			return outcome, err
		},
	}
}

var allRoles = []statex.RoleID{statex.RoleTriage, statex.RoleCredit, statex.RoleInterview, statex.RoleExchange}

// buildRegistry registers each binding and grants it to every role; tests
// that exercise the grant boundary build their registry by hand.
func buildRegistry(t *testing.T, bindings ...toolx.Binding) *toolx.Registry {
	t.Helper()
	r := toolx.NewRegistry()
	for _, b := range bindings {
		if err := r.Register(b); err != nil {
			t.Fatalf("register %s: %v", b.Def.Name, err)
		}
		for _, role := range allRoles {
			if err := r.Grant(role, b.Def.Name); err != nil {
				t.Fatalf("grant %s to %s: %v", b.Def.Name, role, err)
			}
		}
	}
	return r
}

func buildLoop(t *testing.T, roles roleMap, registry *toolx.Registry, opts ...LoopOption) *Loop {
	t.Helper()
	dispatcher, err := NewDispatcher(registry)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	opts = append(opts, WithClock(testTime))
	loop, err := NewLoop(roles, dispatcher, statex.NewMemoryStore(), opts...)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	return loop
}

func TestLoopPlainReply(t *testing.T) {
	t.Parallel()

	roles := roleMap{
		statex.RoleTriage: &scriptedRole{steps: []step{
			{resp: contractx.RoleResponse{Message: "Welcome to Agil Bank. How can I help?"}},
		}},
	}
	loop := buildLoop(t, roles, buildRegistry(t))

	reply, err := loop.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if reply != "Welcome to Agil Bank. How can I help?" {
		t.Fatalf("unexpected reply: %s", reply)
	}

	st := loop.State()
	if st.Phase != statex.PhaseAwaitingInput {
		t.Fatalf("unexpected phase: %s", st.Phase)
	}
	if len(st.History) != 1 || st.History[0].Kind != statex.MessageAssistant {
		t.Fatalf("unexpected history: %+v", st.History)
	}
}

func TestLoopEndConversation(t *testing.T) {
	t.Parallel()

	registry := buildRegistry(t, outcomeBinding("end_conversation", toolx.Outcome{
		Text:   "CLOSED: service conversation finished.",
		Effect: contractx.Effect{Kind: contractx.EffectEndConversation},
	}, nil))

	roles := roleMap{
		statex.RoleTriage: &scriptedRole{steps: []step{
			{resp: contractx.RoleResponse{Invocations: []statex.ToolCall{{ID: "c1", Name: "end_conversation"}}}},
		}},
	}
	loop := buildLoop(t, roles, registry)

	reply, err := loop.HandleMessage(context.Background(), "bye")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply != farewellMessage {
		t.Fatalf("unexpected closing reply: %s", reply)
	}
	if !loop.Terminated() {
		t.Fatal("conversation must be terminated")
	}

	if _, err := loop.HandleMessage(context.Background(), "hello?"); !errors.Is(err, contractx.ErrConversationEnded) {
		t.Fatalf("expected ErrConversationEnded, got %v", err)
	}
}

func TestLoopAuthLockoutTerminates(t *testing.T) {
	t.Parallel()

	registry := buildRegistry(t, outcomeBinding("authenticate_customer", toolx.Outcome{
		Text:   "FAILED: customer id or birth date does not match any registered customer.",
		Effect: contractx.Effect{Kind: contractx.EffectAuthenticate, AuthOK: false},
	}, nil))

	attempt := step{resp: contractx.RoleResponse{Invocations: []statex.ToolCall{{ID: "c", Name: "authenticate_customer"}}}}
	retryPrompt := step{resp: contractx.RoleResponse{Message: "That did not match. Could you check your details?"}}

	roles := roleMap{
		statex.RoleTriage: &scriptedRole{steps: []step{
			attempt, retryPrompt,
			attempt, retryPrompt,
			attempt,
		}},
	}
	loop := buildLoop(t, roles, registry)

	for i := 0; i < 2; i++ {
		reply, err := loop.HandleMessage(context.Background(), "id 123, born 01/01/2000")
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if reply == lockoutMessage {
			t.Fatalf("locked out too early on attempt %d", i+1)
		}
	}

	reply, err := loop.HandleMessage(context.Background(), "id 123, born 01/01/2000")
	if err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if reply != lockoutMessage {
		t.Fatalf("expected lockout message, got %q", reply)
	}
	if !loop.Terminated() {
		t.Fatal("lockout must terminate the conversation")
	}

	st := loop.State()
	if st.Authenticated || st.AuthAttempts != statex.MaxAuthAttempts {
		t.Fatalf("unexpected auth state: attempts=%d authenticated=%v", st.AuthAttempts, st.Authenticated)
	}

	_, err = loop.HandleMessage(context.Background(), "hello?")
	if !errors.Is(err, contractx.ErrConversationEnded) {
		t.Fatalf("expected conversation-ended error after lockout, got %v", err)
	}
	if !errors.Is(err, contractx.ErrAuthLockout) {
		t.Fatalf("expected lockout error after lockout, got %v", err)
	}
}

func TestLoopTransferIsInvisible(t *testing.T) {
	t.Parallel()

	registry := buildRegistry(t, outcomeBinding("transfer_to_credit", toolx.Outcome{
		Text:   "OK: continuing with the customer's request.",
		Effect: contractx.Effect{Kind: contractx.EffectTransfer, TargetRole: statex.RoleCredit},
	}, nil))

	roles := roleMap{
		statex.RoleTriage: &scriptedRole{steps: []step{
			{resp: contractx.RoleResponse{Invocations: []statex.ToolCall{{ID: "c1", Name: "transfer_to_credit"}}}},
		}},
		statex.RoleCredit: &scriptedRole{steps: []step{
			{resp: contractx.RoleResponse{Message: "Your current credit limit is R$ 5000.00."}},
		}},
	}
	loop := buildLoop(t, roles, registry)

	reply, err := loop.HandleMessage(context.Background(), "what is my credit limit?")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply != "Your current credit limit is R$ 5000.00." {
		t.Fatalf("expected the credit role's reply, got %q", reply)
	}

	st := loop.State()
	if st.ActiveRole != statex.RoleCredit {
		t.Fatalf("active role must be credit after transfer, got %s", st.ActiveRole)
	}
	for _, msg := range st.History {
		if msg.Kind != statex.MessageAssistant {
			continue
		}
		lower := strings.ToLower(msg.Content)
		for _, banned := range []string{"transfer", "redirect", "specialist", "agent"} {
			if strings.Contains(lower, banned) {
				t.Fatalf("customer-visible text reveals the handoff: %q", msg.Content)
			}
		}
	}
}

func TestLoopModelUnavailableApology(t *testing.T) {
	t.Parallel()

	roles := roleMap{
		statex.RoleTriage: &scriptedRole{steps: []step{
			{err: contractx.ErrModelUnavailable},
		}},
	}
	loop := buildLoop(t, roles, buildRegistry(t))

	reply, err := loop.HandleMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply != apologyMessage {
		t.Fatalf("expected apology, got %q", reply)
	}

	st := loop.State()
	if st.Terminated() {
		t.Fatal("apology must not terminate the conversation")
	}
	if st.ActiveRole != statex.RoleTriage || st.Authenticated || st.AuthAttempts != 0 {
		t.Fatalf("model failure must leave control state untouched: %+v", st)
	}
	if len(st.History) != 2 {
		t.Fatalf("expected customer message plus apology, got %d messages", len(st.History))
	}
}

func TestLoopUnknownToolSynthesizesResult(t *testing.T) {
	t.Parallel()

	roles := roleMap{
		statex.RoleTriage: &scriptedRole{steps: []step{
			{resp: contractx.RoleResponse{Invocations: []statex.ToolCall{{ID: "c1", Name: "warp_drive"}}}},
			{resp: contractx.RoleResponse{Message: "Sorry, I could not do that."}},
		}},
	}
	loop := buildLoop(t, roles, buildRegistry(t))

	reply, err := loop.HandleMessage(context.Background(), "engage")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply != "Sorry, I could not do that." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	var sawToolError bool
	for _, msg := range loop.State().History {
		if msg.Kind == statex.MessageTool && strings.Contains(msg.Content, "not available") {
			sawToolError = true
		}
	}
	if !sawToolError {
		t.Fatal("unknown tool must leave a synthesized tool result in history")
	}
}

func TestLoopCycleBudget(t *testing.T) {
	t.Parallel()

	registry := buildRegistry(t, outcomeBinding("noop", toolx.Outcome{
		Text:   "OK.",
		Effect: contractx.Effect{Kind: contractx.EffectNone},
	}, nil))

	spin := step{resp: contractx.RoleResponse{Invocations: []statex.ToolCall{{ID: "c", Name: "noop"}}}}
	roles := roleMap{
		statex.RoleTriage: &scriptedRole{steps: []step{spin, spin, spin, spin}},
	}
	loop := buildLoop(t, roles, registry, WithMaxCycles(3))

	_, err := loop.HandleMessage(context.Background(), "loop forever")
	if !errors.Is(err, ErrCycleBudgetExceeded) {
		t.Fatalf("expected ErrCycleBudgetExceeded, got %v", err)
	}
	if !loop.Terminated() {
		t.Fatal("blown cycle budget must terminate the conversation")
	}
}

func TestDispatchAtomicOnFatalError(t *testing.T) {
	t.Parallel()

	registry := buildRegistry(t,
		outcomeBinding("first", toolx.Outcome{Text: "OK.", Effect: contractx.Effect{Kind: contractx.EffectNone}}, nil),
		outcomeBinding("second", toolx.Outcome{}, contractx.ErrMissingCustomerRecord),
	)
	dispatcher, err := NewDispatcher(registry)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	st := statex.NewConversationState(testTime())
	st.AppendCustomer("hi", testTime())
	before := len(st.History)

	err = dispatcher.Dispatch(context.Background(), st, []statex.ToolCall{
		{ID: "c1", Name: "first"},
		{ID: "c2", Name: "second"},
	})
	if !errors.Is(err, contractx.ErrMissingCustomerRecord) {
		t.Fatalf("expected ErrMissingCustomerRecord, got %v", err)
	}
	if len(st.History) != before {
		t.Fatal("failed dispatch must not commit partial results")
	}
}

func TestDispatchRecoversFromGatewayError(t *testing.T) {
	t.Parallel()

	registry := buildRegistry(t,
		outcomeBinding("flaky", toolx.Outcome{}, contractx.ErrGatewayUnavailable),
	)
	dispatcher, err := NewDispatcher(registry)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	st := statex.NewConversationState(testTime())
	if err := dispatcher.Dispatch(context.Background(), st, []statex.ToolCall{{ID: "c1", Name: "flaky"}}); err != nil {
		t.Fatalf("gateway errors must be absorbed into a tool message: %v", err)
	}
	if len(st.History) != 1 || st.History[0].Kind != statex.MessageTool {
		t.Fatalf("expected one synthesized tool message: %+v", st.History)
	}
	if !strings.HasPrefix(st.History[0].Content, "SYSTEM_ERROR:") {
		t.Fatalf("unexpected tool message: %s", st.History[0].Content)
	}
}

func TestDispatchAppliesEffectsInOrder(t *testing.T) {
	t.Parallel()

	rec := statex.CustomerRecord{ID: "12345678901", Name: "Joao", Score: 650, CreditLimit: 5000}
	registry := buildRegistry(t,
		outcomeBinding("authenticate_customer", toolx.Outcome{
			Text:   "SUCCESS: customer authenticated.",
			Effect: contractx.Effect{Kind: contractx.EffectAuthenticate, AuthOK: true, Customer: &rec},
		}, nil),
		outcomeBinding("update_customer_score", toolx.Outcome{
			Text:   "UPDATED: customer score updated.",
			Effect: contractx.Effect{Kind: contractx.EffectUpdateScore, Score: 720},
		}, nil),
	)
	dispatcher, err := NewDispatcher(registry)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	st := statex.NewConversationState(testTime())
	err = dispatcher.Dispatch(context.Background(), st, []statex.ToolCall{
		{ID: "c1", Name: "authenticate_customer"},
		{ID: "c2", Name: "update_customer_score"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !st.Authenticated || st.Customer == nil {
		t.Fatal("authentication effect was not applied")
	}
	if st.Customer.Score != 720 {
		t.Fatalf("score update must land on the authenticated record, got %d", st.Customer.Score)
	}
}

func TestDispatchDeniesToolOutsideRoleGrant(t *testing.T) {
	t.Parallel()

	r := toolx.NewRegistry()
	quote := outcomeBinding("get_exchange_rate", toolx.Outcome{
		Text:   "QUOTE: US Dollar (USD/BRL). Buy: R$ 5.4300.",
		Effect: contractx.Effect{Kind: contractx.EffectNone},
	}, nil)
	if err := r.Register(quote); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Grant(statex.RoleExchange, quote.Def.Name); err != nil {
		t.Fatalf("grant: %v", err)
	}
	dispatcher, err := NewDispatcher(r)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	// The registry knows the tool, but triage was never granted it.
	st := statex.NewConversationState(testTime())
	if err := dispatcher.Dispatch(context.Background(), st, []statex.ToolCall{{ID: "c1", Name: "get_exchange_rate"}}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(st.History) != 1 || st.History[0].Kind != statex.MessageTool {
		t.Fatalf("expected one synthesized tool message: %+v", st.History)
	}
	if strings.Contains(st.History[0].Content, "QUOTE:") {
		t.Fatal("handler must not execute for an ungranted role")
	}
	if !strings.Contains(st.History[0].Content, "not available") {
		t.Fatalf("unexpected tool message: %s", st.History[0].Content)
	}
}

func TestDispatchGrantFollowsRequesterAcrossTransfer(t *testing.T) {
	t.Parallel()

	r := toolx.NewRegistry()
	transfer := outcomeBinding("transfer_to_credit", toolx.Outcome{
		Text:   "OK: continuing with the customer's request.",
		Effect: contractx.Effect{Kind: contractx.EffectTransfer, TargetRole: statex.RoleCredit},
	}, nil)
	limit := outcomeBinding("get_credit_limit", toolx.Outcome{
		Text:   "LIMIT: Customer Joao Silva.",
		Effect: contractx.Effect{Kind: contractx.EffectNone},
	}, nil)
	for _, b := range []toolx.Binding{transfer, limit} {
		if err := r.Register(b); err != nil {
			t.Fatalf("register %s: %v", b.Def.Name, err)
		}
	}
	if err := r.Grant(statex.RoleTriage, transfer.Def.Name); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := r.Grant(statex.RoleCredit, limit.Def.Name); err != nil {
		t.Fatalf("grant: %v", err)
	}
	dispatcher, err := NewDispatcher(r)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	// Triage transfers mid-batch; the second call was still requested by
	// triage and must not gain the credit role's grants.
	st := statex.NewConversationState(testTime())
	err = dispatcher.Dispatch(context.Background(), st, []statex.ToolCall{
		{ID: "c1", Name: "transfer_to_credit"},
		{ID: "c2", Name: "get_credit_limit"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if st.ActiveRole != statex.RoleCredit {
		t.Fatalf("transfer effect not applied: %s", st.ActiveRole)
	}
	if len(st.History) != 2 {
		t.Fatalf("expected two tool messages: %+v", st.History)
	}
	if !strings.Contains(st.History[1].Content, "not available") {
		t.Fatalf("second call must be denied for the requesting role: %s", st.History[1].Content)
	}
}

func TestDispatchScoreUpdateWithoutRecordIsFatal(t *testing.T) {
	t.Parallel()

	registry := buildRegistry(t, outcomeBinding("update_customer_score", toolx.Outcome{
		Text:   "UPDATED: customer score updated.",
		Effect: contractx.Effect{Kind: contractx.EffectUpdateScore, Score: 720},
	}, nil))
	dispatcher, err := NewDispatcher(registry)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	st := statex.NewConversationState(testTime())
	err = dispatcher.Dispatch(context.Background(), st, []statex.ToolCall{{ID: "c1", Name: "update_customer_score"}})
	if !errors.Is(err, contractx.ErrMissingCustomerRecord) {
		t.Fatalf("expected ErrMissingCustomerRecord, got %v", err)
	}
}
