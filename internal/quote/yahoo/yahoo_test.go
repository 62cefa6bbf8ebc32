package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/stockdash/internal/core"
	"github.com/newthinker/stockdash/internal/quote"
)

func TestYahoo_ImplementsQuoteFetcher(t *testing.T) {
	var _ quote.QuoteFetcher = (*Yahoo)(nil)
}

func TestYahoo_Name(t *testing.T) {
	y := New()
	if y.Name() != "yahoo" {
		t.Errorf("expected 'yahoo', got '%s'", y.Name())
	}
}

func TestYahoo_ToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"SBIN", "SBIN.NS"},
		{"SBIN.NS", "SBIN.NS"},
		{"500325.BO", "500325.BO"},
		{"^NSEI", "^NSEI"},
	}

	y := New()
	for _, tc := range tests {
		got := y.toYahooSymbol(tc.input)
		if got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestYahoo_DetectMarket(t *testing.T) {
	tests := []struct {
		symbol   string
		expected core.Market
	}{
		{"SBIN.NS", core.MarketNSE},
		{"500325.BO", core.MarketBSE},
		{"AAPL", core.MarketUS},
	}

	y := New()
	for _, tc := range tests {
		got := y.detectMarket(tc.symbol)
		if got != tc.expected {
			t.Errorf("detectMarket(%s) = %s, want %s", tc.symbol, got, tc.expected)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"SBIN", "M&M", "BAJAJ-AUTO", "SBIN.NS"}
	for _, s := range valid {
		if err := validateSymbol(s); err != nil {
			t.Errorf("validateSymbol(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "SB IN", "../etc", "A.B.C"}
	for _, s := range invalid {
		if err := validateSymbol(s); err == nil {
			t.Errorf("validateSymbol(%q) expected error", s)
		}
	}
}

func TestYahoo_FetchQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/SBIN.NS" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"chart": {"result": [{"meta": {
			"symbol": "SBIN.NS", "regularMarketPrice": 812.35,
			"regularMarketVolume": 1000, "regularMarketTime": 1700000000
		}}], "error": null}}`))
	}))
	defer server.Close()

	q, err := New().WithBaseURL(server.URL).FetchQuote(context.Background(), "SBIN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price.String() != "812.35" {
		t.Errorf("expected price 812.35, got %s", q.Price)
	}
	if q.Market != core.MarketNSE {
		t.Errorf("expected NSE, got %s", q.Market)
	}
}

func TestYahoo_FetchQuote_ChartError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`))
	}))
	defer server.Close()

	_, err := New().WithBaseURL(server.URL).FetchQuote(context.Background(), "NOPE")
	if !errors.Is(err, core.ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestYahoo_PriceFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [{"meta": {"regularMarketPrice": 0}}]}}`))
	}))
	defer server.Close()

	p := quote.FromQuotes(New().WithBaseURL(server.URL))
	price, err := p.FetchPrice(context.Background(), core.PriceQuery{Symbol: "SBIN", Watchlist: "banks"})
	if !errors.Is(err, core.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
	if price.IsAvailable() {
		t.Error("expected unavailable price")
	}
}
