// Package tool holds the startup-built registry mapping tool names to
// handlers and effect kinds, plus the built-in tool implementations.
package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

// Outcome is what a handler produces: the customer-visible result text and
// the tagged effect the dispatcher folds into the conversation state.
type Outcome struct {
	Text   string
	Effect contractx.Effect
}

type Handler func(ctx context.Context, args map[string]any) (Outcome, error)

// Binding ties a model-facing tool definition to its handler.
type Binding struct {
	Def     contractx.ToolDefinition
	Handler Handler
}

// Registry is the fixed tool table, built once at startup. Tool names are
// globally unique; each role is granted a subset.
type Registry struct {
	byName map[string]Binding
	grants map[statex.RoleID][]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Binding),
		grants: make(map[statex.RoleID][]string),
	}
}

// Register adds a tool to the global table. Registering a name twice is a
// startup configuration error.
func (r *Registry) Register(b Binding) error {
	name := strings.TrimSpace(b.Def.Name)
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	if b.Handler == nil {
		return fmt.Errorf("%w: tool %q has no handler", contractx.ErrValidation, name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %q", contractx.ErrDuplicateTool, name)
	}
	b.Def.Name = name
	r.byName[name] = b
	return nil
}

// Grant makes registered tools available to a role. Shared tools (end,
// transfers) are granted to several roles without re-registering.
func (r *Registry) Grant(role statex.RoleID, names ...string) error {
	if !statex.KnownRole(role) {
		return fmt.Errorf("%w: role %q", contractx.ErrValidation, role)
	}
	for _, name := range names {
		if _, ok := r.byName[name]; !ok {
			return fmt.Errorf("%w: grant of unregistered tool %q", contractx.ErrToolNotFound, name)
		}
		r.grants[role] = append(r.grants[role], name)
	}
	return nil
}

// Lookup resolves a tool by name.
func (r *Registry) Lookup(name string) (Binding, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// DefinitionsFor returns the tool definitions granted to a role, in grant
// order, for binding to the model.
func (r *Registry) DefinitionsFor(role statex.RoleID) []contractx.ToolDefinition {
	names := r.grants[role]
	defs := make([]contractx.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.byName[name].Def)
	}
	return defs
}

// AllowedFor reports whether a role may call the named tool.
func (r *Registry) AllowedFor(role statex.RoleID, name string) bool {
	for _, granted := range r.grants[role] {
		if granted == name {
			return true
		}
	}
	return false
}
