package orchestrator

import (
	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

// NextRole decides who owns the next turn. It is a pure read of the state:
// termination when the conversation was flagged to end, otherwise the active
// role. Transfers have already rewritten ActiveRole during dispatch, so a
// mid-turn handoff is invisible here.
func NextRole(st *statex.ConversationState) (statex.RoleID, bool) {
	if st.ShouldEnd {
		return st.ActiveRole, true
	}
	return st.ActiveRole, false
}

// HasPendingToolCalls reports whether a role turn requested tool execution.
func HasPendingToolCalls(resp contractx.RoleResponse) bool {
	return len(resp.Invocations) > 0
}
