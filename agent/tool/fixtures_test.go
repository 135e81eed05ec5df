package tool

import (
	"context"
	"fmt"
	"time"

	bankdatax "github.com/agilbank/concierge/agent/bankdata"
	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

// fakeGateway serves a fixed customer base from memory and records writes.
type fakeGateway struct {
	customers map[string]statex.CustomerRecord
	bands     [][3]float64 // min, max, limit

	requests []bankdatax.LimitRequest
	puts     []statex.CustomerRecord

	getErr  error
	putErr  error
	bandErr error
	logErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customers: map[string]statex.CustomerRecord{
			"12345678901": {
				ID:          "12345678901",
				Name:        "Joao Silva",
				BirthDate:   "15/03/1990",
				CreditLimit: 5000,
				Score:       650,
			},
			"98765432100": {
				ID:          "98765432100",
				Name:        "Maria Santos",
				BirthDate:   "22/07/1985",
				CreditLimit: 8000,
				Score:       780,
			},
		},
		bands: [][3]float64{
			{0, 399, 2000},
			{400, 549, 3500},
			{550, 649, 5000},
			{650, 749, 8000},
			{750, 849, 12000},
			{850, 1000, 20000},
		},
	}
}

func (g *fakeGateway) GetCustomer(_ context.Context, id string) (statex.CustomerRecord, error) {
	if g.getErr != nil {
		return statex.CustomerRecord{}, g.getErr
	}
	rec, ok := g.customers[id]
	if !ok {
		return statex.CustomerRecord{}, contractx.ErrCustomerNotFound
	}
	return rec, nil
}

func (g *fakeGateway) MaxLimitForScore(_ context.Context, score int) (float64, bool, error) {
	if g.bandErr != nil {
		return 0, false, g.bandErr
	}
	for _, b := range g.bands {
		if float64(score) >= b[0] && float64(score) <= b[1] {
			return b[2], true, nil
		}
	}
	return 0, false, nil
}

func (g *fakeGateway) PutCustomer(_ context.Context, rec statex.CustomerRecord) error {
	if g.putErr != nil {
		return g.putErr
	}
	g.puts = append(g.puts, rec)
	g.customers[rec.ID] = rec
	return nil
}

func (g *fakeGateway) AppendLimitRequest(_ context.Context, req bankdatax.LimitRequest) error {
	if g.logErr != nil {
		return g.logErr
	}
	g.requests = append(g.requests, req)
	return nil
}

// fakeQuotes returns canned quotes for USD and rejects everything else.
type fakeQuotes struct {
	err error
}

func (q *fakeQuotes) GetQuote(_ context.Context, code string) (contractx.Quote, error) {
	if q.err != nil {
		return contractx.Quote{}, q.err
	}
	if code != "USD" {
		return contractx.Quote{}, fmt.Errorf("%w: %s", contractx.ErrUnknownCurrency, code)
	}
	return contractx.Quote{
		Code:         "USD",
		Buy:          5.4321,
		Sell:         5.4421,
		High:         5.5,
		Low:          5.39,
		VariationPct: -0.42,
	}, nil
}

func testCatalog(gw bankdatax.Gateway, quotes contractx.QuoteGateway) (*Registry, error) {
	return NewCatalogAt(gw, quotes, func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
}
