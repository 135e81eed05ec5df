package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/agilbank/concierge/agent/contract"
)

const ToolGetExchangeRate = "get_exchange_rate"

// Friendly names for common currency codes; unknown codes fall back to the
// code itself.
var currencyNames = map[string]string{
	"USD": "US Dollar",
	"EUR": "Euro",
	"GBP": "Pound Sterling",
	"ARS": "Argentine Peso",
	"CAD": "Canadian Dollar",
	"AUD": "Australian Dollar",
	"JPY": "Japanese Yen",
	"CNY": "Chinese Yuan",
	"BTC": "Bitcoin",
}

func exchangeRateDef() contractx.ToolDefinition {
	return contractx.ToolDefinition{
		Name:        ToolGetExchangeRate,
		Description: "Fetch the current quote of a foreign currency against the Brazilian Real (BRL).",
		Params: map[string]contractx.ParameterInfo{
			"currency_code": {Type: contractx.ParamString, Description: "Currency code, e.g. USD, EUR, GBP, BTC", Required: true},
		},
	}
}

func newExchangeRateHandler(quotes contractx.QuoteGateway) Handler {
	return func(ctx context.Context, args map[string]any) (Outcome, error) {
		rawCode, err := stringArg(args, "currency_code")
		if err != nil {
			return Outcome{Text: "ERROR: " + err.Error() + ".", Effect: noEffect()}, nil
		}

		code := strings.ToUpper(rawCode)
		if !validCurrencyCode(code) {
			return Outcome{
				Text:   "ERROR: invalid currency code. Use codes such as USD, EUR, GBP, ARS, BTC.",
				Effect: noEffect(),
			}, nil
		}

		quote, err := quotes.GetQuote(ctx, code)
		if errors.Is(err, contractx.ErrUnknownCurrency) {
			return Outcome{
				Text:   fmt.Sprintf("ERROR: currency %q not found. Valid examples: USD, EUR, GBP, ARS, BTC.", code),
				Effect: noEffect(),
			}, nil
		}
		if err != nil {
			return Outcome{}, err
		}

		name := currencyNames[code]
		if name == "" {
			name = code
		}

		return Outcome{
			Text: fmt.Sprintf(
				"QUOTE: %s (%s/BRL). Buy: R$ %.4f. Sell: R$ %.4f. Day high: R$ %.4f. Day low: R$ %.4f. Variation: %+.2f%%.",
				name, code, quote.Buy, quote.Sell, quote.High, quote.Low, quote.VariationPct,
			),
			Effect: noEffect(),
		}, nil
	}
}

func validCurrencyCode(code string) bool {
	if len(code) < 2 || len(code) > 5 {
		return false
	}
	for _, ch := range code {
		if ch < 'A' || ch > 'Z' {
			return false
		}
	}
	return true
}
