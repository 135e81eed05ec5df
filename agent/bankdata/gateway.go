// Package bankdata is the data access gateway for customer records, the
// score-to-limit band table, and the limit request log.
package bankdata

import (
	"context"
	"time"

	statex "github.com/agilbank/concierge/agent/state"
)

// LimitRequest is one audit entry appended for every limit increase
// request, approved or not.
type LimitRequest struct {
	CustomerID     string    `json:"customer_id"`
	RequestedAt    time.Time `json:"requested_at"`
	CurrentLimit   float64   `json:"current_limit"`
	RequestedLimit float64   `json:"requested_limit"`
	Status         string    `json:"status"`
}

const (
	LimitRequestApproved = "approved"
	LimitRequestRejected = "rejected"
)

// Gateway is the read/write contract the tool handlers depend on. Lookup
// failures return contract.ErrCustomerNotFound; IO failures wrap
// contract.ErrGatewayUnavailable.
type Gateway interface {
	GetCustomer(ctx context.Context, id string) (statex.CustomerRecord, error)
	// MaxLimitForScore resolves the score band table; ok is false when no
	// band covers the score.
	MaxLimitForScore(ctx context.Context, score int) (limit float64, ok bool, err error)
	PutCustomer(ctx context.Context, rec statex.CustomerRecord) error
	AppendLimitRequest(ctx context.Context, req LimitRequest) error
}
