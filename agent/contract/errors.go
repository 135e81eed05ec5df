package contract

import "errors"

var (
	ErrModelUnavailable      = errors.New("model collaborator unavailable")
	ErrGatewayUnavailable    = errors.New("data gateway unavailable")
	ErrToolNotFound          = errors.New("tool not found")
	ErrDuplicateTool         = errors.New("duplicate tool name")
	ErrMissingCustomerRecord = errors.New("customer record is missing")
	ErrAuthLockout           = errors.New("authentication locked out")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrUnknownCurrency       = errors.New("unknown currency code")
	ErrConversationEnded     = errors.New("conversation has ended")
	ErrPromptMissing         = errors.New("required prompt is missing")
	ErrValidation            = errors.New("validation failed")
)
