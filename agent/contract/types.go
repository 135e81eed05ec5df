package contract

import (
	statex "github.com/agilbank/concierge/agent/state"
)

// RoleResponse is what a role produces for one turn: a message to append to
// history plus the ordered (possibly empty) invocations to dispatch.
type RoleResponse struct {
	Message     string            `json:"message"`
	Invocations []statex.ToolCall `json:"invocations,omitempty"`
}

type EffectKind string

const (
	EffectNone            EffectKind = "none"
	EffectAuthenticate    EffectKind = "authenticate"
	EffectTransfer        EffectKind = "transfer"
	EffectEndConversation EffectKind = "end_conversation"
	EffectUpdateScore     EffectKind = "update_score"
	EffectUpdateLimit     EffectKind = "update_limit"
)

// Effect is the tagged state mutation a tool's execution requests. The
// dispatcher applies it by matching on Kind; fields beyond Kind are only
// meaningful for the kinds that declare them.
type Effect struct {
	Kind       EffectKind             `json:"kind"`
	TargetRole statex.RoleID          `json:"target_role,omitempty"` // Transfer
	AuthOK     bool                   `json:"auth_ok,omitempty"`     // Authenticate
	Customer   *statex.CustomerRecord `json:"customer,omitempty"`    // Authenticate success
	Score      int                    `json:"score,omitempty"`       // UpdateScore
	Limit      float64                `json:"limit,omitempty"`       // UpdateLimit
}

// ParameterType narrows tool argument declarations to what the model
// transport supports.
type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamNumber  ParameterType = "number"
	ParamInteger ParameterType = "integer"
)

type ParameterInfo struct {
	Type        ParameterType `json:"type"`
	Description string        `json:"description"`
	Required    bool          `json:"required"`
}

// ToolDefinition is the model-facing declaration of a tool.
type ToolDefinition struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Params      map[string]ParameterInfo `json:"params,omitempty"`
}

// CompletionRequest is the payload handed to the external model collaborator.
type CompletionRequest struct {
	Instructions string           `json:"instructions"`
	History      []statex.Message `json:"history"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

type CompletionResponse struct {
	Message     string            `json:"message"`
	Invocations []statex.ToolCall `json:"invocations,omitempty"`
}

// Quote is the currency pair snapshot returned by the quote gateway.
type Quote struct {
	Code         string  `json:"code"`
	Buy          float64 `json:"buy"`
	Sell         float64 `json:"sell"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	VariationPct float64 `json:"variation_pct"`
}
