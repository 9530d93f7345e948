package datafeed

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderRejected     = errors.New("order rejected")
	ErrRulesUnavailable  = errors.New("symbol rules unavailable")
	ErrUnexpectedPayload = errors.New("unexpected payload")
)

// MEXCClient talks to the MEXC spot REST API (v3, Binance compatible).
type MEXCClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	recvWindow int
	httpClient *http.Client
	now        func() time.Time
}

func NewMEXCClient(cfg config.ExchangeConfig) *MEXCClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MEXCClient{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		recvWindow: cfg.RecvWindowMs,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *MEXCClient) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// do performs a request and returns the body for 2xx responses.
func (c *MEXCClient) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, int, error) {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			params.Set("recvWindow", strconv.Itoa(c.recvWindow))
		}
		query := params.Encode()
		params.Set("signature", c.sign(query))
	}

	reqURL := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	if signed {
		req.Header.Set("X-MEXC-APIKEY", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return body, resp.StatusCode, fmt.Errorf("%s %s: status %d code %d: %s", method, path, resp.StatusCode, apiErr.Code, apiErr.Msg)
		}
		return body, resp.StatusCode, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

func (c *MEXCClient) Get24hTickers(ctx context.Context) ([]types.Ticker24h, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/v3/ticker/24hr", nil, false)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Symbol      string `json:"symbol"`
		LastPrice   string `json:"lastPrice"`
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: 24hr tickers: %v", ErrUnexpectedPayload, err)
	}

	tickers := make([]types.Ticker24h, 0, len(raw))
	for _, r := range raw {
		qv, err := decimal.NewFromString(r.QuoteVolume)
		if err != nil {
			continue
		}
		last, _ := decimal.NewFromString(r.LastPrice)
		tickers = append(tickers, types.Ticker24h{
			Symbol:      r.Symbol,
			LastPrice:   last,
			QuoteVolume: qv,
		})
	}
	return tickers, nil
}

// GetKlines returns candles oldest first.
func (c *MEXCClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, _, err := c.do(ctx, http.MethodGet, "/api/v3/klines", params, false)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: klines %s: %v", ErrUnexpectedPayload, symbol, err)
	}

	candles := make([]types.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		vals := make([]float64, 7)
		ok := true
		for i := 0; i < 7; i++ {
			v, err := parseNumber(row[i])
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		candles = append(candles, types.Candle{
			OpenTime:  time.UnixMilli(int64(vals[0])),
			Open:      vals[1],
			High:      vals[2],
			Low:       vals[3],
			Close:     vals[4],
			Volume:    vals[5],
			CloseTime: time.UnixMilli(int64(vals[6])),
		})
	}
	return candles, nil
}

func (c *MEXCClient) GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, _, err := c.do(ctx, http.MethodGet, "/api/v3/ticker/price", params, false)
	if err != nil {
		return decimal.Zero, err
	}

	var r struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %s: %v", ErrUnexpectedPayload, symbol, err)
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %s: %q", ErrUnexpectedPayload, symbol, r.Price)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price for %s", ErrUnexpectedPayload, symbol)
	}
	return price, nil
}

func (c *MEXCClient) GetFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/v3/account", nil, true)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch account: %w", err)
	}

	var account struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return decimal.Zero, fmt.Errorf("%w: account: %v", ErrUnexpectedPayload, err)
	}

	for _, b := range account.Balances {
		if b.Asset == asset {
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: free balance %q", ErrUnexpectedPayload, b.Free)
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}

// PlaceMarketOrder places a MARKET order. Exchange rejections wrap ErrOrderRejected.
func (c *MEXCClient) PlaceMarketOrder(ctx context.Context, req types.MarketOrderRequest) (types.OrderAck, error) {
	side := strings.ToUpper(req.Side)
	if side == "" {
		side = "BUY"
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", req.Quantity.String())
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		if status >= 400 && status < 500 {
			return types.OrderAck{}, fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
		return types.OrderAck{}, err
	}

	var r struct {
		OrderID       json.RawMessage `json:"orderId"`
		ClientOrderID string          `json:"clientOrderId"`
		Status        string          `json:"status"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return types.OrderAck{}, fmt.Errorf("%w: order: %v", ErrUnexpectedPayload, err)
	}
	orderID := strings.Trim(string(r.OrderID), `"`)
	if orderID == "" || orderID == "null" {
		return types.OrderAck{}, fmt.Errorf("%w: response carried no order id", ErrOrderRejected)
	}
	return types.OrderAck{OrderID: orderID, ClientOrderID: r.ClientOrderID, Status: r.Status}, nil
}

// GetSymbolRules reads LOT_SIZE and precision from exchangeInfo.
func (c *MEXCClient) GetSymbolRules(ctx context.Context, symbol string) (*types.SymbolRules, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, _, err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulesUnavailable, err)
	}

	var info struct {
		Symbols []struct {
			Symbol             string         `json:"symbol"`
			QuantityPrecision  *int32         `json:"quantityPrecision"`
			BaseAssetPrecision *int32         `json:"baseAssetPrecision"`
			BaseSizePrecision  string         `json:"baseSizePrecision"`
			Filters            []symbolFilter `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulesUnavailable, err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		rules := &types.SymbolRules{Symbol: symbol, QuantityPrecision: 8}
		switch {
		case s.QuantityPrecision != nil:
			rules.QuantityPrecision = *s.QuantityPrecision
		case s.BaseAssetPrecision != nil:
			rules.QuantityPrecision = *s.BaseAssetPrecision
		}
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" {
				continue
			}
			rules.MinQty, _ = decimal.NewFromString(f.MinQty)
			rules.StepSize, _ = decimal.NewFromString(f.StepSize)
		}
		if rules.StepSize.IsZero() && s.BaseSizePrecision != "" {
			rules.StepSize, _ = decimal.NewFromString(s.BaseSizePrecision)
		}
		if rules.StepSize.IsZero() {
			rules.StepSize = decimal.New(1, -rules.QuantityPrecision)
		}
		return rules, nil
	}
	return nil, fmt.Errorf("%w: %s not listed", ErrRulesUnavailable, symbol)
}

type symbolFilter struct {
	FilterType string `json:"filterType"`
	MinQty     string `json:"minQty"`
	StepSize   string `json:"stepSize"`
}

func parseNumber(raw json.RawMessage) (float64, error) {
	s := strings.Trim(string(raw), `"`)
	return strconv.ParseFloat(s, 64)
}
