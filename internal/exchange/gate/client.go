package gate

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Alias1177/Quoter/internal/exchange"
	"github.com/Alias1177/Quoter/internal/model"
)

const (
	defaultBaseURL = "https://api.gateio.ws"
	apiPrefix      = "/api/v4"
)

// Client implements the spot REST bindings we need from Gate.io v4.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	base       string // base currency of the configured pair
	quote      string // quote currency of the configured pair
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Gate client.
type ClientOptions struct {
	APIKey         string
	APISecret      string
	BaseURL        string
	Pair           string // e.g. "XCAD_USDT"
	RequestTimeout time.Duration
	RequestsPerSec int
}

// NewClient creates a ready-to-use spot client for a single currency pair.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}

	parts := strings.SplitN(opts.Pair, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid currency pair %q", opts.Pair)
	}

	return &Client{
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		baseURL:    opts.BaseURL,
		base:       parts[0],
		quote:      parts[1],
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), opts.RequestsPerSec),
		logger:     log.With().Str("component", "gate_client").Logger(),
	}, nil
}

// FetchCandles retrieves recent OHLCV candles, oldest first.
func (c *Client) FetchCandles(ctx context.Context, pair, timeframe string, limit int) ([]model.Candle, error) {
	params := url.Values{}
	params.Set("currency_pair", pair)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.request(ctx, http.MethodGet, "/spot/candlesticks", params, nil, false)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}

	// Each entry: [timestamp, quote volume, close, high, low, open, base volume, ...]
	var raw [][]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 7 {
			continue
		}
		ts, _ := strconv.ParseInt(entry[0], 10, 64)
		closePrice, _ := strconv.ParseFloat(entry[2], 64)
		high, _ := strconv.ParseFloat(entry[3], 64)
		low, _ := strconv.ParseFloat(entry[4], 64)
		open, _ := strconv.ParseFloat(entry[5], 64)
		volume, _ := strconv.ParseFloat(entry[6], 64)

		candles = append(candles, model.Candle{
			Timestamp: time.Unix(ts, 0),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles returned for %s", pair)
	}

	c.logger.Debug().Int("count", len(candles)).Msg("fetched candles")
	return candles, nil
}

// FetchBalance returns the combined available+locked totals for the pair's
// two currencies. Locked funds are counted because the cancel sweep frees
// them before any placement decision uses the numbers.
func (c *Client) FetchBalance(ctx context.Context) (model.Balance, error) {
	body, err := c.request(ctx, http.MethodGet, "/spot/accounts", nil, nil, true)
	if err != nil {
		return model.Balance{}, fmt.Errorf("fetch balance: %w", err)
	}

	var accounts []struct {
		Currency  string `json:"currency"`
		Available string `json:"available"`
		Locked    string `json:"locked"`
	}
	if err := json.Unmarshal(body, &accounts); err != nil {
		return model.Balance{}, fmt.Errorf("decode balance: %w", err)
	}

	var balance model.Balance
	for _, acct := range accounts {
		available, _ := strconv.ParseFloat(acct.Available, 64)
		locked, _ := strconv.ParseFloat(acct.Locked, 64)
		switch acct.Currency {
		case c.base:
			balance.BaseTotal = available + locked
		case c.quote:
			balance.QuoteTotal = available + locked
		}
	}

	return balance, nil
}

// FetchTicker returns the last traded price for the pair.
func (c *Client) FetchTicker(ctx context.Context, pair string) (model.Ticker, error) {
	params := url.Values{}
	params.Set("currency_pair", pair)

	body, err := c.request(ctx, http.MethodGet, "/spot/tickers", params, nil, false)
	if err != nil {
		return model.Ticker{}, fmt.Errorf("fetch ticker: %w", err)
	}

	var tickers []struct {
		CurrencyPair string `json:"currency_pair"`
		Last         string `json:"last"`
	}
	if err := json.Unmarshal(body, &tickers); err != nil {
		return model.Ticker{}, fmt.Errorf("decode ticker: %w", err)
	}
	if len(tickers) == 0 {
		return model.Ticker{}, fmt.Errorf("no ticker returned for %s", pair)
	}

	last, err := strconv.ParseFloat(tickers[0].Last, 64)
	if err != nil {
		return model.Ticker{}, fmt.Errorf("parse last price: %w", err)
	}

	return model.Ticker{Pair: pair, Last: last}, nil
}

// FetchOpenOrders lists the currently resting orders for the pair.
func (c *Client) FetchOpenOrders(ctx context.Context, pair string) ([]model.Order, error) {
	params := url.Values{}
	params.Set("currency_pair", pair)
	params.Set("status", "open")

	body, err := c.request(ctx, http.MethodGet, "/spot/orders", params, nil, true)
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}

	var payload []orderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}

	orders := make([]model.Order, 0, len(payload))
	for _, p := range payload {
		orders = append(orders, p.toOrder())
	}
	return orders, nil
}

// PlaceLimitOrder submits a GTC limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, pair string, side model.Side, amount, price float64) (model.Order, error) {
	req := map[string]string{
		"text":          clientOrderID(),
		"currency_pair": pair,
		"type":          "limit",
		"account":       "spot",
		"side":          string(side),
		"amount":        formatAmount(amount),
		"price":         formatAmount(price),
		"time_in_force": "gtc",
	}

	body, err := c.request(ctx, http.MethodPost, "/spot/orders", nil, req, true)
	if err != nil {
		return model.Order{}, fmt.Errorf("place limit order: %w", err)
	}

	var payload orderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Order{}, fmt.Errorf("decode order response: %w", err)
	}
	return payload.toOrder(), nil
}

// PlaceMarketOrder submits an IOC market order for amount in base currency.
// Gate quotes market-buy amounts in the quote currency, so buys are converted
// at the current last price before submission.
func (c *Client) PlaceMarketOrder(ctx context.Context, pair string, side model.Side, amount float64) (model.Order, error) {
	sendAmount := amount
	if side == model.SideBuy {
		ticker, err := c.FetchTicker(ctx, pair)
		if err != nil {
			return model.Order{}, fmt.Errorf("price market buy: %w", err)
		}
		sendAmount = amount * ticker.Last
	}

	req := map[string]string{
		"text":          clientOrderID(),
		"currency_pair": pair,
		"type":          "market",
		"account":       "spot",
		"side":          string(side),
		"amount":        formatAmount(sendAmount),
		"time_in_force": "ioc",
	}

	body, err := c.request(ctx, http.MethodPost, "/spot/orders", nil, req, true)
	if err != nil {
		return model.Order{}, fmt.Errorf("place market order: %w", err)
	}

	var payload orderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Order{}, fmt.Errorf("decode order response: %w", err)
	}
	return payload.toOrder(), nil
}

// CancelOrder cancels a resting order by id.
func (c *Client) CancelOrder(ctx context.Context, id, pair string) error {
	params := url.Values{}
	params.Set("currency_pair", pair)

	if _, err := c.request(ctx, http.MethodDelete, "/spot/orders/"+id, params, nil, true); err != nil {
		return fmt.Errorf("cancel order %s: %w", id, err)
	}
	return nil
}

// FetchOrderStatus retrieves the current state of an order by id.
func (c *Client) FetchOrderStatus(ctx context.Context, id, pair string) (model.Order, error) {
	params := url.Values{}
	params.Set("currency_pair", pair)

	body, err := c.request(ctx, http.MethodGet, "/spot/orders/"+id, params, nil, true)
	if err != nil {
		return model.Order{}, fmt.Errorf("fetch order %s: %w", id, err)
	}

	var payload orderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return payload.toOrder(), nil
}

// request performs one rate-limited HTTP call and maps venue rejections to
// the typed error the retry layer treats as permanent.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, jsonBody any, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullPath := apiPrefix + path
	query := ""
	if params != nil {
		query = params.Encode()
	}

	var bodyBytes []byte
	if jsonBody != nil {
		var err error
		bodyBytes, err = json.Marshal(jsonBody)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	endpoint := c.baseURL + fullPath
	if query != "" {
		endpoint += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		c.sign(req, method, fullPath, query, bodyBytes)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	// Gate error bodies carry a machine-readable label.
	var apiErr struct {
		Label   string `json:"label"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &apiErr)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &exchange.VenueRejectedError{
			Status:  resp.StatusCode,
			Label:   apiErr.Label,
			Message: apiErr.Message,
		}
	}
	return nil, fmt.Errorf("%s %s status %d: %s", method, path, resp.StatusCode, string(data))
}

// sign applies Gate's APIv4 HMAC-SHA512 request signature headers.
func (c *Client) sign(req *http.Request, method, path, query string, body []byte) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	bodyHash := sha512.Sum512(body)
	payload := strings.Join([]string{
		method,
		path,
		query,
		hex.EncodeToString(bodyHash[:]),
		timestamp,
	}, "\n")

	mac := hmac.New(sha512.New, []byte(c.apiSecret))
	mac.Write([]byte(payload))

	req.Header.Set("KEY", c.apiKey)
	req.Header.Set("Timestamp", timestamp)
	req.Header.Set("SIGN", hex.EncodeToString(mac.Sum(nil)))
}

type orderPayload struct {
	ID           string `json:"id"`
	CurrencyPair string `json:"currency_pair"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
}

func (p orderPayload) toOrder() model.Order {
	price, _ := strconv.ParseFloat(p.Price, 64)
	amount, _ := strconv.ParseFloat(p.Amount, 64)

	status := model.StatusUnknown
	switch p.Status {
	case "open":
		status = model.StatusOpen
	case "closed":
		status = model.StatusClosed
	case "cancelled":
		status = model.StatusCanceled
	}

	return model.Order{
		ID:     p.ID,
		Pair:   p.CurrencyPair,
		Side:   model.Side(p.Side),
		Price:  price,
		Amount: amount,
		Status: status,
	}
}

// clientOrderID builds the user-supplied order text Gate requires to start
// with "t-".
func clientOrderID() string {
	return "t-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// formatAmount renders a float without exponent notation or trailing zeros.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
