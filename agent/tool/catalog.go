package tool

import (
	"time"

	bankdatax "github.com/agilbank/concierge/agent/bankdata"
	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

// NewCatalog builds the full tool registry once at startup: every tool the
// four roles contribute, wired to the data and quote gateways, with each
// role granted its own subset. A duplicate name anywhere aborts startup.
func NewCatalog(gw bankdatax.Gateway, quotes contractx.QuoteGateway) (*Registry, error) {
	return NewCatalogAt(gw, quotes, time.Now)
}

// NewCatalogAt lets tests pin the clock used for limit request timestamps.
func NewCatalogAt(gw bankdatax.Gateway, quotes contractx.QuoteGateway, now func() time.Time) (*Registry, error) {
	r := NewRegistry()

	bindings := []Binding{
		{Def: authenticateDef(), Handler: newAuthenticateHandler(gw)},
		{Def: getCreditLimitDef(), Handler: newGetCreditLimitHandler(gw)},
		{Def: requestLimitIncreaseDef(), Handler: newRequestLimitIncreaseHandler(gw, now)},
		{Def: calculateScoreDef(), Handler: newCalculateScoreHandler()},
		{Def: updateScoreDef(), Handler: newUpdateScoreHandler(gw)},
		{Def: exchangeRateDef(), Handler: newExchangeRateHandler(quotes)},
		{Def: endConversationDef(), Handler: newEndConversationHandler()},
		{Def: transferDef(ToolTransferToCredit, "credit"), Handler: newTransferHandler(statex.RoleCredit)},
		{Def: transferDef(ToolTransferToInterview, "credit interview"), Handler: newTransferHandler(statex.RoleInterview)},
		{Def: transferDef(ToolTransferToExchange, "currency exchange"), Handler: newTransferHandler(statex.RoleExchange)},
		{Def: transferDef(ToolTransferToTriage, "front desk"), Handler: newTransferHandler(statex.RoleTriage)},
	}
	for _, b := range bindings {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}

	grants := map[statex.RoleID][]string{
		statex.RoleTriage: {
			ToolAuthenticateCustomer,
			ToolEndConversation,
			ToolTransferToCredit,
			ToolTransferToExchange,
		},
		statex.RoleCredit: {
			ToolGetCreditLimit,
			ToolRequestLimitIncrease,
			ToolEndConversation,
			ToolTransferToInterview,
			ToolTransferToTriage,
		},
		statex.RoleInterview: {
			ToolCalculateCreditScore,
			ToolUpdateCustomerScore,
			ToolEndConversation,
			ToolTransferToCredit,
			ToolTransferToTriage,
		},
		statex.RoleExchange: {
			ToolGetExchangeRate,
			ToolEndConversation,
			ToolTransferToTriage,
		},
	}
	for role, names := range grants {
		if err := r.Grant(role, names...); err != nil {
			return nil, err
		}
	}

	return r, nil
}
