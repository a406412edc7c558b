package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paperledger/internal/domain"
)

// DefaultBinanceBaseURL is the public Binance spot API
const DefaultBinanceBaseURL = "https://api.binance.com"

// MarketPriceService fetches real-time crypto prices from Binance
type MarketPriceService struct {
	httpClient *http.Client
	baseURL    string
}

// NewMarketPriceService creates a new MarketPriceService
func NewMarketPriceService(baseURL string, timeout time.Duration) *MarketPriceService {
	if baseURL == "" {
		baseURL = DefaultBinanceBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MarketPriceService{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BinanceSymbol maps ledger symbols (BTC_USD, ETH_USDT, sol/usd, BTCUSDT) to Binance tickers
func BinanceSymbol(symbol string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("/", "_", "-", "_").Replace(s)

	var base string
	switch {
	case strings.HasSuffix(s, "_USDT"):
		base = strings.TrimSuffix(s, "_USDT")
	case strings.HasSuffix(s, "_USD"):
		base = strings.TrimSuffix(s, "_USD")
	case strings.HasSuffix(s, "USDT") && !strings.Contains(s, "_"):
		base = strings.TrimSuffix(s, "USDT")
	default:
		return "", false
	}

	if base == "" || strings.Contains(base, "_") {
		return "", false
	}
	return base + "USDT", true
}

// Supports reports whether the symbol looks like a Binance-quoted crypto pair
func (s *MarketPriceService) Supports(symbol string) bool {
	_, ok := BinanceSymbol(symbol)
	return ok
}

// GetLatestPrice fetches the current price for a single symbol
func (s *MarketPriceService) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, ok := BinanceSymbol(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s is not a Binance symbol", domain.ErrQuoteUnavailable, symbol)
	}

	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.baseURL, url.QueryEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to create request: %v", domain.ErrQuoteUnavailable, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to fetch %s from Binance: %v", domain.ErrQuoteUnavailable, ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return decimal.Zero, fmt.Errorf("%w: Binance API error: status=%d, body=%s", domain.ErrQuoteUnavailable, resp.StatusCode, string(body))
	}

	var ticked struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticked); err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to decode Binance response: %v", domain.ErrQuoteUnavailable, err)
	}

	price, err := decimal.NewFromString(ticked.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid Binance price %q: %v", domain.ErrQuoteUnavailable, ticked.Price, err)
	}

	return price, nil
}

var _ domain.QuoteSource = (*MarketPriceService)(nil)
