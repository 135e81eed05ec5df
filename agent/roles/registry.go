package roles

import (
	contractx "github.com/agilbank/concierge/agent/contract"
	promptx "github.com/agilbank/concierge/agent/prompt"
	statex "github.com/agilbank/concierge/agent/state"
	toolx "github.com/agilbank/concierge/agent/tool"
)

type registryImpl struct {
	byID map[statex.RoleID]contractx.Role
}

func (r *registryImpl) Role(id statex.RoleID) (contractx.Role, bool) {
	role, ok := r.byID[id]
	return role, ok
}

// NewRegistry builds the four roles from the embedded prompts and the tool
// catalog's per-role grants, all sharing one model client.
func NewRegistry(model contractx.ModelClient, catalog *toolx.Registry) (contractx.RoleRegistry, error) {
	prompts := promptx.LoadPromptSet()

	specs := []struct {
		id           statex.RoleID
		instructions string
	}{
		{statex.RoleTriage, prompts.Triage},
		{statex.RoleCredit, prompts.Credit},
		{statex.RoleInterview, prompts.Interview},
		{statex.RoleExchange, prompts.Exchange},
	}

	byID := make(map[statex.RoleID]contractx.Role, len(specs))
	for _, spec := range specs {
		role, err := newRole(spec.id, spec.instructions, catalog.DefinitionsFor(spec.id), model)
		if err != nil {
			return nil, err
		}
		byID[spec.id] = role
	}

	return &registryImpl{byID: byID}, nil
}
