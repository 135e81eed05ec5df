package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	bankdatax "github.com/agilbank/concierge/agent/bankdata"
	contractx "github.com/agilbank/concierge/agent/contract"
)

const ToolAuthenticateCustomer = "authenticate_customer"

func authenticateDef() contractx.ToolDefinition {
	return contractx.ToolDefinition{
		Name:        ToolAuthenticateCustomer,
		Description: "Authenticate a customer by id and birth date against the customer base.",
		Params: map[string]contractx.ParameterInfo{
			"customer_id": {Type: contractx.ParamString, Description: "Customer id, 11 digits", Required: true},
			"birth_date":  {Type: contractx.ParamString, Description: "Birth date, DD/MM/YYYY", Required: true},
		},
	}
}

func newAuthenticateHandler(gw bankdatax.Gateway) Handler {
	return func(ctx context.Context, args map[string]any) (Outcome, error) {
		id, err := stringArg(args, "customer_id")
		if err != nil {
			return authFailure("FAILED: " + err.Error() + "."), nil
		}
		birthDate, err := stringArg(args, "birth_date")
		if err != nil {
			return authFailure("FAILED: " + err.Error() + "."), nil
		}

		cleaned, ok := normalizeCustomerID(id)
		if !ok {
			return authFailure("FAILED: invalid customer id. It must contain exactly 11 digits."), nil
		}

		rec, err := gw.GetCustomer(ctx, cleaned)
		if errors.Is(err, contractx.ErrCustomerNotFound) {
			return authFailure("FAILED: customer id or birth date does not match any registered customer."), nil
		}
		if err != nil {
			log.Error().Err(err).Msg("authenticate: customer lookup failed")
			return Outcome{}, err
		}

		if rec.BirthDate != birthDate {
			return authFailure("FAILED: customer id or birth date does not match any registered customer."), nil
		}

		return Outcome{
			Text: fmt.Sprintf(
				"SUCCESS: customer authenticated. Name: %s, ID: %s, Credit limit: R$ %.2f, Score: %d",
				rec.Name, rec.ID, rec.CreditLimit, rec.Score,
			),
			Effect: contractx.Effect{
				Kind:     contractx.EffectAuthenticate,
				AuthOK:   true,
				Customer: &rec,
			},
		}, nil
	}
}

func authFailure(text string) Outcome {
	return Outcome{
		Text:   text,
		Effect: contractx.Effect{Kind: contractx.EffectAuthenticate, AuthOK: false},
	}
}
