package datafeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/fazecat/mogulscan/Internal/types"
	"github.com/fazecat/mogulscan/Internal/utils"
	"github.com/fazecat/mogulscan/Internal/utils/config"
	"github.com/shopspring/decimal"
)

// subset of *alpaca.Client used for paper execution
type alpacaTradingAPI interface {
	GetAccount() (*alpaca.Account, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
}

// AlpacaTrader routes balance reads and purchases to an Alpaca paper account.
// Market data still comes from the exchange client.
type AlpacaTrader struct {
	client     alpacaTradingAPI
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	retry      utils.RetryConfig
}

func NewAlpacaTrader(cfg config.ExecutionConfig) (*AlpacaTrader, error) {
	if cfg.AlpacaAPIKey == "" || cfg.AlpacaSecretKey == "" {
		return nil, fmt.Errorf("ALPACA_API_KEY or ALPACA_API_SECRET not set")
	}

	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.AlpacaAPIKey,
		APISecret: cfg.AlpacaSecretKey,
		BaseURL:   cfg.AlpacaBaseURL,
	})

	return &AlpacaTrader{
		client:     client,
		apiKey:     cfg.AlpacaAPIKey,
		secretKey:  cfg.AlpacaSecretKey,
		baseURL:    strings.TrimRight(cfg.AlpacaBaseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      utils.DefaultRetryConfig(),
	}, nil
}

// ToAlpacaSymbol converts SOLUSDT into SOL/USDT
func ToAlpacaSymbol(symbol string) string {
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return strings.TrimSuffix(symbol, quote) + "/" + quote
		}
	}
	return symbol
}

// GetFreeBalance returns account cash. Stablecoin balances map to the USD cash line.
func (a *AlpacaTrader) GetFreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	switch asset {
	case "USD", "USDT", "USDC":
	default:
		return decimal.Zero, fmt.Errorf("alpaca paper venue only tracks USD cash, asked for %s", asset)
	}

	var account *alpaca.Account
	err := utils.RetryWithBackoff(ctx, func() error {
		var err error
		account, err = a.client.GetAccount()
		return err
	}, a.retry)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch alpaca account: %w", err)
	}
	return account.Cash, nil
}

func (a *AlpacaTrader) PlaceMarketOrder(ctx context.Context, req types.MarketOrderRequest) (types.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return types.OrderAck{}, err
	}

	side := alpaca.Buy
	if strings.EqualFold(req.Side, "SELL") {
		side = alpaca.Sell
	}

	qty := req.Quantity
	order, err := a.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        ToAlpacaSymbol(req.Symbol),
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.GTC,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		return types.OrderAck{}, fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}
	if order == nil || order.ID == "" {
		return types.OrderAck{}, fmt.Errorf("%w: alpaca returned no order id", ErrOrderRejected)
	}

	log.Printf("📝 Alpaca paper order %s accepted for %s qty %s", order.ID, req.Symbol, qty.String())
	return types.OrderAck{OrderID: order.ID, ClientOrderID: order.ClientOrderID, Status: string(order.Status)}, nil
}

// GetSymbolRules reads min_order_size and min_trade_increment from the asset endpoint.
func (a *AlpacaTrader) GetSymbolRules(ctx context.Context, symbol string) (*types.SymbolRules, error) {
	assetURL := fmt.Sprintf("%s/v2/assets/%s", a.baseURL, url.PathEscape(ToAlpacaSymbol(symbol)))

	var asset struct {
		Tradable          bool   `json:"tradable"`
		MinOrderSize      string `json:"min_order_size"`
		MinTradeIncrement string `json:"min_trade_increment"`
	}

	err := utils.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("APCA-API-KEY-ID", a.apiKey)
		req.Header.Set("APCA-API-SECRET-KEY", a.secretKey)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("asset lookup returned status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&asset)
	}, a.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulesUnavailable, err)
	}
	if !asset.Tradable {
		return nil, fmt.Errorf("%w: %s is not tradable on alpaca", ErrRulesUnavailable, symbol)
	}

	rules := &types.SymbolRules{Symbol: symbol, QuantityPrecision: 8}
	rules.MinQty, _ = decimal.NewFromString(asset.MinOrderSize)
	if step, err := decimal.NewFromString(asset.MinTradeIncrement); err == nil && step.IsPositive() {
		rules.StepSize = step
		if exp := step.Exponent(); exp < 0 {
			rules.QuantityPrecision = -exp
		} else {
			rules.QuantityPrecision = 0
		}
	} else {
		rules.StepSize = decimal.New(1, -rules.QuantityPrecision)
	}
	return rules, nil
}
