// Package polymarket provides HTTP clients for the Polymarket CLOB and data APIs.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/polyinsider/hunter/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// CLOBAPIBaseURL is the Polymarket CLOB API endpoint
	CLOBAPIBaseURL = "https://clob.polymarket.com"
	// DataAPIBaseURL is the Polymarket data API endpoint
	DataAPIBaseURL = "https://data-api.polymarket.com"
	// DefaultRPS is the default outbound request rate
	DefaultRPS = 20
)

// ErrUnexpectedStatus is returned when an endpoint answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// bookLevel is one level of the /book response.
type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// bookResponse represents the response from the CLOB /book endpoint.
type bookResponse struct {
	Market         string      `json:"market"`
	AssetID        string      `json:"asset_id"`
	Timestamp      string      `json:"timestamp"`
	Hash           string      `json:"hash"`
	Bids           []bookLevel `json:"bids"`
	Asks           []bookLevel `json:"asks"`
	LastTradePrice string      `json:"last_trade_price"`
}

// tradedResponse represents the response from the data API /traded endpoint.
type tradedResponse struct {
	User   string `json:"user"`
	Traded int    `json:"traded"`
}

// Client fetches order books and trader history. Safe for concurrent use.
type Client struct {
	clobURL string
	dataURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new Client.
func NewClient(clobURL, dataURL string, opts ...Option) *Client {
	if clobURL == "" {
		clobURL = CLOBAPIBaseURL
	}
	if dataURL == "" {
		dataURL = DataAPIBaseURL
	}

	c := &Client{
		clobURL: strings.TrimSuffix(clobURL, "/"),
		dataURL: strings.TrimSuffix(dataURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(DefaultRPS, DefaultRPS),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OrderBook fetches the current order book for an outcome token.
func (c *Client) OrderBook(ctx context.Context, assetID string) (*store.OrderBook, error) {
	if assetID == "" {
		return nil, fmt.Errorf("empty asset id")
	}

	var resp bookResponse
	endpoint := fmt.Sprintf("%s/book?token_id=%s", c.clobURL, url.QueryEscape(assetID))
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch book: %w", err)
	}

	bids, err := convertLevels(resp.Bids)
	if err != nil {
		return nil, fmt.Errorf("parse bids: %w", err)
	}
	asks, err := convertLevels(resp.Asks)
	if err != nil {
		return nil, fmt.Errorf("parse asks: %w", err)
	}

	return &store.OrderBook{AssetID: assetID, Bids: bids, Asks: asks}, nil
}

// MarketsTraded returns how many distinct markets a wallet has traded.
func (c *Client) MarketsTraded(ctx context.Context, wallet string) (int, error) {
	if wallet == "" {
		return 0, fmt.Errorf("empty wallet address")
	}

	var resp tradedResponse
	endpoint := fmt.Sprintf("%s/traded?user=%s", c.dataURL, url.QueryEscape(wallet))
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return 0, fmt.Errorf("fetch traded: %w", err)
	}

	return resp.Traded, nil
}

// getJSON performs a rate-limited GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	return nil
}

// convertLevels parses string price levels into decimals.
func convertLevels(levels []bookLevel) ([]store.PriceLevel, error) {
	out := make([]store.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", lvl.Price, err)
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", lvl.Size, err)
		}
		out = append(out, store.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}
