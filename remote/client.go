// Package remote implements agent.Market against the exchange HTTP API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ladderbot/agent"
	"ladderbot/server"
)

// ErrOrderNotFound is returned by CancelOrder when the exchange no longer
// holds the order.
var ErrOrderNotFound = errors.New("order not found")

type Options struct {
	AuthToken string
	Timeout   time.Duration
	Logger    *zap.Logger
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

var _ agent.Market = (*Client)(nil)

type placeRequest struct {
	Side     string          `json:"side"`
	Type     string          `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type placeResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New returns a client for the exchange at baseURL.
func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.AuthToken != "" {
		h.SetAuthToken(opts.AuthToken)
	}
	return &Client{http: h, logger: opts.Logger}
}

func (c *Client) OrderBook(ctx context.Context) ([]agent.BookEntry, error) {
	var levels []server.DepthEntry
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&levels).
		SetError(&apiErr).
		Get("/depth")
	if err != nil {
		return nil, fmt.Errorf("get depth: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get depth: %s: %s", resp.Status(), apiErr.Error)
	}

	entries := make([]agent.BookEntry, len(levels))
	for i, lvl := range levels {
		entries[i] = agent.BookEntry{Price: lvl.Price, Volume: lvl.Volume}
	}
	return entries, nil
}

// PlaceOrder submits a limit order. Transport failures and rejections both
// report false; the reason is logged at debug level.
func (c *Client) PlaceOrder(ctx context.Context, price, signedVolume decimal.Decimal) (agent.OrderID, bool) {
	side := "buy"
	if signedVolume.Sign() < 0 {
		side = "sell"
	}
	var placed placeResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(placeRequest{Side: side, Type: "limit", Price: price, Quantity: signedVolume.Abs()}).
		SetResult(&placed).
		SetError(&apiErr).
		Post("/orders")
	if err != nil {
		c.logger.Debug("place order failed", zap.Error(err))
		return "", false
	}
	if resp.IsError() || placed.ID == "" {
		c.logger.Debug("place order rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("reason", apiErr.Error),
			zap.String("price", price.String()),
			zap.String("volume", signedVolume.String()))
		return "", false
	}
	return agent.OrderID(placed.ID), true
}

func (c *Client) CancelOrder(ctx context.Context, id agent.OrderID) error {
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", string(id)).
		SetError(&apiErr).
		Delete("/orders/{id}")
	if err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	case resp.IsError():
		return fmt.Errorf("cancel %s: %s: %s", id, resp.Status(), apiErr.Error)
	}
	return nil
}
