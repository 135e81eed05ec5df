// Package awesomeapi fetches currency quotes against BRL from the
// AwesomeAPI public endpoint.
package awesomeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	contractx "github.com/agilbank/concierge/agent/contract"
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://economia.awesomeapi.com.br/json/last"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("awesomeapi base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid awesomeapi url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type quotePayload struct {
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	High      string `json:"high"`
	Low       string `json:"low"`
	PctChange string `json:"pctChange"`
}

// GetQuote fetches the latest quote for code against BRL. The API keys the
// payload by the concatenated pair, e.g. "USDBRL".
func (c *Client) GetQuote(ctx context.Context, code string) (contractx.Quote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return contractx.Quote{}, fmt.Errorf("%w: currency code is empty", contractx.ErrValidation)
	}

	endpoint := fmt.Sprintf("%s/%s-BRL", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return contractx.Quote{}, fmt.Errorf("build quote request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return contractx.Quote{}, fmt.Errorf("%w: quote request: %v", contractx.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return contractx.Quote{}, fmt.Errorf("%w: read quote response: %v", contractx.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return contractx.Quote{}, fmt.Errorf("%w: currency %q", contractx.ErrUnknownCurrency, code)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return contractx.Quote{}, fmt.Errorf("%w: quote http status=%d", contractx.ErrGatewayUnavailable, resp.StatusCode)
	}

	var payload map[string]quotePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return contractx.Quote{}, fmt.Errorf("%w: decode quote response: %v", contractx.ErrGatewayUnavailable, err)
	}

	entry, ok := payload[code+"BRL"]
	if !ok {
		return contractx.Quote{}, fmt.Errorf("%w: currency %q", contractx.ErrUnknownCurrency, code)
	}

	quote := contractx.Quote{Code: code}
	fields := []struct {
		raw string
		dst *float64
	}{
		{entry.Bid, &quote.Buy},
		{entry.Ask, &quote.Sell},
		{entry.High, &quote.High},
		{entry.Low, &quote.Low},
		{entry.PctChange, &quote.VariationPct},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return contractx.Quote{}, fmt.Errorf("%w: malformed quote field %q", contractx.ErrGatewayUnavailable, f.raw)
		}
		*f.dst = v
	}

	return quote, nil
}
