package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/stockdash/internal/core"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
)

// validSymbol matches NSE tickers like SBIN, M&M, BAJAJ-AUTO, suffixed
// forms like SBIN.NS or 500325.BO, and index codes like ^NSEI
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9&\-]{1,20}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 25 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches quotes from the Yahoo Finance chart API
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// New creates a new Yahoo quote source
func New() *Yahoo {
	return &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
}

// WithBaseURL points the source at another chart endpoint
func (y *Yahoo) WithBaseURL(u string) *Yahoo {
	y.baseURL = strings.TrimSuffix(u, "/")
	return y
}

// WithTimeout sets the HTTP timeout
func (y *Yahoo) WithTimeout(d time.Duration) *Yahoo {
	if d > 0 {
		y.client.Timeout = d
	}
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts a bare NSE ticker to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	if strings.Contains(symbol, ".") || strings.HasPrefix(symbol, "^") {
		return symbol
	}
	return symbol + ".NS"
}

// FetchQuote fetches the latest regular-market price
func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, err)
	}
	yahooSymbol := y.toYahooSymbol(symbol)
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", y.baseURL, yahooSymbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrBackendFailed, fmt.Errorf("fetching quote: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrBackendStatus, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no data for symbol: %s", symbol))
	}

	meta := result.Chart.Result[0].Meta

	return &core.Quote{
		Symbol: symbol,
		Market: y.detectMarket(yahooSymbol),
		Price:  decimal.NewFromFloat(meta.RegularMarketPrice),
		Volume: int64(meta.RegularMarketVolume),
		Time:   time.Unix(int64(meta.RegularMarketTime), 0),
		Source: "yahoo",
	}, nil
}

func (y *Yahoo) detectMarket(symbol string) core.Market {
	switch {
	case strings.HasSuffix(symbol, ".NS"):
		return core.MarketNSE
	case strings.HasSuffix(symbol, ".BO"):
		return core.MarketBSE
	default:
		return core.MarketUS
	}
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta chartMeta `json:"meta"`
}

type chartMeta struct {
	Symbol              string  `json:"symbol"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	RegularMarketVolume int     `json:"regularMarketVolume"`
	RegularMarketTime   int     `json:"regularMarketTime"`
}
