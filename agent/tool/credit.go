package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	bankdatax "github.com/agilbank/concierge/agent/bankdata"
	contractx "github.com/agilbank/concierge/agent/contract"
)

const (
	ToolGetCreditLimit       = "get_credit_limit"
	ToolRequestLimitIncrease = "request_limit_increase"
)

func getCreditLimitDef() contractx.ToolDefinition {
	return contractx.ToolDefinition{
		Name:        ToolGetCreditLimit,
		Description: "Look up the customer's current credit limit and score by customer id.",
		Params: map[string]contractx.ParameterInfo{
			"customer_id": {Type: contractx.ParamString, Description: "Customer id, 11 digits", Required: true},
		},
	}
}

func newGetCreditLimitHandler(gw bankdatax.Gateway) Handler {
	return func(ctx context.Context, args map[string]any) (Outcome, error) {
		id, err := stringArg(args, "customer_id")
		if err != nil {
			return Outcome{Text: "ERROR: " + err.Error() + ".", Effect: noEffect()}, nil
		}
		cleaned, _ := normalizeCustomerID(id)

		rec, err := gw.GetCustomer(ctx, cleaned)
		if errors.Is(err, contractx.ErrCustomerNotFound) {
			return Outcome{Text: "ERROR: customer not found in the customer base.", Effect: noEffect()}, nil
		}
		if err != nil {
			log.Error().Err(err).Msg("credit limit: customer lookup failed")
			return Outcome{}, err
		}

		return Outcome{
			Text: fmt.Sprintf(
				"LIMIT: Customer %s (ID: %s). Current credit limit: R$ %.2f. Score: %d.",
				rec.Name, rec.ID, rec.CreditLimit, rec.Score,
			),
			Effect: noEffect(),
		}, nil
	}
}

func requestLimitIncreaseDef() contractx.ToolDefinition {
	return contractx.ToolDefinition{
		Name: ToolRequestLimitIncrease,
		Description: "Request a credit limit increase. The score band table decides approval; " +
			"every request is logged.",
		Params: map[string]contractx.ParameterInfo{
			"customer_id": {Type: contractx.ParamString, Description: "Customer id, 11 digits", Required: true},
			"new_limit":   {Type: contractx.ParamNumber, Description: "Desired new credit limit", Required: true},
		},
	}
}

func newRequestLimitIncreaseHandler(gw bankdatax.Gateway, now func() time.Time) Handler {
	return func(ctx context.Context, args map[string]any) (Outcome, error) {
		id, err := stringArg(args, "customer_id")
		if err != nil {
			return Outcome{Text: "ERROR: " + err.Error() + ".", Effect: noEffect()}, nil
		}
		newLimit, err := floatArg(args, "new_limit")
		if err != nil {
			return Outcome{Text: "ERROR: " + err.Error() + ".", Effect: noEffect()}, nil
		}
		cleaned, _ := normalizeCustomerID(id)

		rec, err := gw.GetCustomer(ctx, cleaned)
		if errors.Is(err, contractx.ErrCustomerNotFound) {
			return Outcome{Text: "ERROR: customer not found in the customer base.", Effect: noEffect()}, nil
		}
		if err != nil {
			log.Error().Err(err).Msg("limit increase: customer lookup failed")
			return Outcome{}, err
		}

		if newLimit <= rec.CreditLimit {
			return Outcome{
				Text: fmt.Sprintf(
					"INFO: the requested limit (R$ %.2f) is lower than or equal to the current limit (R$ %.2f). No increase is needed.",
					newLimit, rec.CreditLimit,
				),
				Effect: noEffect(),
			}, nil
		}

		maxAllowed, ok, err := gw.MaxLimitForScore(ctx, rec.Score)
		if err != nil {
			log.Error().Err(err).Msg("limit increase: score band lookup failed")
			return Outcome{}, err
		}
		if !ok {
			return Outcome{}, fmt.Errorf("%w: no score band covers score %d", contractx.ErrGatewayUnavailable, rec.Score)
		}

		status := bankdatax.LimitRequestRejected
		if newLimit <= maxAllowed {
			status = bankdatax.LimitRequestApproved
		}

		if err := gw.AppendLimitRequest(ctx, bankdatax.LimitRequest{
			CustomerID:     rec.ID,
			RequestedAt:    now(),
			CurrentLimit:   rec.CreditLimit,
			RequestedLimit: newLimit,
			Status:         status,
		}); err != nil {
			log.Error().Err(err).Msg("limit increase: request log append failed")
			return Outcome{}, err
		}

		if status == bankdatax.LimitRequestRejected {
			return Outcome{
				Text: fmt.Sprintf(
					"REJECTED: limit increase request rejected. Current limit: R$ %.2f. Requested limit: R$ %.2f. "+
						"Maximum limit allowed for score %d: R$ %.2f. "+
						"The customer may take a credit interview to try to improve the score.",
					rec.CreditLimit, newLimit, rec.Score, maxAllowed,
				),
				Effect: noEffect(),
			}, nil
		}

		previous := rec.CreditLimit
		rec.CreditLimit = newLimit
		if err := gw.PutCustomer(ctx, rec); err != nil {
			log.Error().Err(err).Msg("limit increase: persisting new limit failed")
			return Outcome{
				Text: fmt.Sprintf(
					"APPROVED: request approved, but updating the customer base failed. Previous limit: R$ %.2f. Requested limit: R$ %.2f.",
					previous, newLimit,
				),
				Effect: noEffect(),
			}, nil
		}

		return Outcome{
			Text: fmt.Sprintf(
				"APPROVED: limit increase approved. Previous limit: R$ %.2f. New limit: R$ %.2f. Current score: %d.",
				previous, newLimit, rec.Score,
			),
			Effect: contractx.Effect{Kind: contractx.EffectUpdateLimit, Limit: newLimit},
		}, nil
	}
}

func noEffect() contractx.Effect {
	return contractx.Effect{Kind: contractx.EffectNone}
}
