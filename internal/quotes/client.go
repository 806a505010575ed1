package quotes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"portfolio-tracker-go/internal/config"
)

// Quote is the ephemeral market data for one symbol. PrevClose is nil
// when the provider did not report a previous close.
type Quote struct {
	Price     float64
	PrevClose *float64
}

// Client defines the interface for fetching market quotes.
type Client interface {
	FetchQuotes(ctx context.Context, symbols []string) map[string]Quote
}

// RestClient fetches quotes over HTTP from the configured provider.
// Requests are strictly sequential and gated by a fixed-interval rate
// limiter, so a batch of N symbols takes at least (N-1) intervals.
// It implements the Client interface.
type RestClient struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure RestClient implements the interface
var _ Client = (*RestClient)(nil)

// quoteResponse mirrors the provider's quote payload. Numeric fields
// arrive as strings.
type quoteResponse struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	PrevClose string `json:"previousClose,omitempty"`
}

// NewRestClient creates a quote client for the configured provider.
func NewRestClient(cfg *config.Provider, logger *zap.Logger) *RestClient {
	interval := time.Duration(cfg.RequestIntervalSec) * time.Second

	// Burst of 1: the first request goes out immediately, every request
	// after it waits out the full interval.
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	return &RestClient{
		client:  resty.New().SetBaseURL(cfg.BaseURL),
		apiKey:  cfg.ApiKey,
		logger:  logger,
		limiter: limiter,
	}
}

// FetchQuotes fetches quotes for the given symbols, one request per
// symbol. A failed fetch is logged and the symbol left out of the
// result; the batch never aborts on a per-symbol error. Without an API
// key no network calls are attempted and the result is empty. Context
// cancellation stops the batch, returning whatever was gathered.
func (c *RestClient) FetchQuotes(ctx context.Context, symbols []string) map[string]Quote {
	result := make(map[string]Quote, len(symbols))

	if c.apiKey == "" {
		c.logger.Warn("No provider API key configured, skipping quote fetch")
		return result
	}

	for _, symbol := range symbols {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn("Quote fetch batch cancelled", zap.Error(err))
			return result
		}

		quote, err := c.fetchOne(ctx, symbol)
		if err != nil {
			c.logger.Warn("Failed to fetch quote",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}
		result[symbol] = quote
	}

	return result
}

// fetchOne performs a single quote request.
func (c *RestClient) fetchOne(ctx context.Context, symbol string) (Quote, error) {
	var body quoteResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetQueryParam("apikey", c.apiKey).
		SetResult(&body).
		Get("/quote")
	if err != nil {
		return Quote{}, fmt.Errorf("quote request failed: %w", err)
	}
	if resp.IsError() {
		return Quote{}, fmt.Errorf("quote request failed with status %s: %s", resp.Status(), resp.String())
	}

	price, err := strconv.ParseFloat(body.Price, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to parse price %q: %w", body.Price, err)
	}
	if price <= 0 {
		return Quote{}, fmt.Errorf("provider returned non-positive price %f for %s", price, symbol)
	}

	quote := Quote{Price: price}
	if body.PrevClose != "" {
		prev, err := strconv.ParseFloat(body.PrevClose, 64)
		if err != nil {
			// A bad previous close degrades to "unknown" rather than
			// discarding a usable price.
			c.logger.Warn("Failed to parse previous close",
				zap.String("symbol", symbol),
				zap.String("previous_close", body.PrevClose),
			)
		} else {
			quote.PrevClose = &prev
		}
	}

	return quote, nil
}
