package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/newthinker/stockdash/internal/backend"
	"github.com/newthinker/stockdash/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	bars    []core.OHLCV
	start   time.Time
	end     time.Time
	year    int
	country string
	taxRows []backend.PortfolioRow
	newsErr error
	infoErr error
}

func (f *fakeMarket) LatestPrices(context.Context) (map[string]backend.IndexQuote, error) {
	return map[string]backend.IndexQuote{"NIFTY 50": {}}, nil
}

func (f *fakeMarket) History(_ context.Context, _ string, start, end time.Time) ([]core.OHLCV, error) {
	f.start, f.end = start, end
	return f.bars, nil
}

func (f *fakeMarket) News(_ context.Context, ticker string) ([]backend.NewsItem, error) {
	if f.newsErr != nil {
		return nil, f.newsErr
	}
	return []backend.NewsItem{{Source: "ET", News: ticker + " rallies", Sentiment: "Positive"}}, nil
}

func (f *fakeMarket) Holidays(_ context.Context, country string, year int) ([]backend.Holiday, error) {
	f.country, f.year = country, year
	return []backend.Holiday{{Date: "2025-01-26", Name: "Republic Day"}}, nil
}

func (f *fakeMarket) CalculateTax(_ context.Context, rows []backend.PortfolioRow) (*backend.TaxResult, error) {
	if err := backend.ValidatePortfolio(rows); err != nil {
		return nil, err
	}
	f.taxRows = rows
	return &backend.TaxResult{TotalTax: 150}, nil
}

func (f *fakeMarket) Fundamentals(_ context.Context, ticker string) (*backend.Fundamentals, error) {
	return &backend.Fundamentals{
		Ticker:          ticker,
		BalanceSheet:    backend.Statement{"2024-03-31": {"Total Assets": 100.0}},
		IncomeStatement: backend.Statement{},
		CashFlow:        backend.Statement{},
	}, nil
}

func (f *fakeMarket) StockInfo(_ context.Context, ticker string) (map[string]any, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return map[string]any{"longName": ticker + " Ltd"}, nil
}

func (f *fakeMarket) Predict(_ context.Context, ticker string) (*backend.Prediction, error) {
	return &backend.Prediction{Ticker: ticker, Next: 101.5, Forecast: []float64{100, 101.5}}, nil
}

func marketMux(h *MarketHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/market/indices", h.Indices)
	mux.HandleFunc("GET /api/v1/market/history", h.History)
	mux.HandleFunc("GET /api/v1/market/news", h.News)
	mux.HandleFunc("GET /api/v1/market/holidays", h.Holidays)
	mux.HandleFunc("GET /api/v1/market/fundamentals", h.Fundamentals)
	mux.HandleFunc("GET /api/v1/market/info", h.Info)
	mux.HandleFunc("GET /api/v1/market/predict", h.Predict)
	mux.HandleFunc("POST /api/v1/market/tax", h.Tax)
	return mux
}

func bars(closes ...float64) []core.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		out[i] = core.OHLCV{Symbol: "X", Close: c, Time: start.AddDate(0, 0, i)}
	}
	return out
}

func TestMarketHandler_History(t *testing.T) {
	market := &fakeMarket{bars: bars(10, 11, 12, 13)}
	mux := marketMux(NewMarketHandler(market))

	w := do(t, mux, "GET", "/api/v1/market/history?ticker=X&start=2024-01-01&end=2024-01-04&window=2,3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp HistoryResponse
	decodeData(t, w, &resp)
	require.Len(t, resp.Bars, 4)
	assert.Equal(t, "2024-01-01", resp.Bars[0].Date)
	assert.Equal(t, 2024, market.start.Year())

	ma2 := resp.MovingAverages["2"]
	require.Len(t, ma2, 4)
	assert.Nil(t, ma2[0])
	require.NotNil(t, ma2[1])
	assert.InDelta(t, 10.5, *ma2[1], 1e-9)

	ma3 := resp.MovingAverages["3"]
	require.Len(t, ma3, 4)
	assert.Nil(t, ma3[1])
	assert.InDelta(t, 12, *ma3[3], 1e-9)
}

func TestMarketHandler_History_ExponentialAverage(t *testing.T) {
	mux := marketMux(NewMarketHandler(&fakeMarket{bars: bars(10, 11, 12, 13)}))

	w := do(t, mux, "GET", "/api/v1/market/history?ticker=X&window=2&ema=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp HistoryResponse
	decodeData(t, w, &resp)
	assert.Contains(t, resp.MovingAverages, "2")
	assert.NotContains(t, resp.MovingAverages, "3")

	ema3 := resp.ExponentialAverages["3"]
	require.Len(t, ema3, 4)
	assert.Nil(t, ema3[1])
	require.NotNil(t, ema3[3])
	assert.InDelta(t, 11.5, *ema3[3], 1e-9)

	// omitted entirely without ema=
	w = do(t, mux, "GET", "/api/v1/market/history?ticker=X", "")
	assert.NotContains(t, w.Body.String(), "exponential_averages")

	w = do(t, mux, "GET", "/api/v1/market/history?ticker=X&ema=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarketHandler_History_DefaultWindows(t *testing.T) {
	market := &fakeMarket{bars: bars(1, 2, 3)}
	h := NewMarketHandler(market)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	mux := marketMux(h)

	w := do(t, mux, "GET", "/api/v1/market/history?ticker=X", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp HistoryResponse
	decodeData(t, w, &resp)
	assert.Contains(t, resp.MovingAverages, "100")
	assert.Contains(t, resp.MovingAverages, "200")
	// not enough history for either window
	assert.Empty(t, resp.MovingAverages["100"])
	assert.Equal(t, "2024-06-01", resp.Start)
	assert.Equal(t, "2025-06-01", resp.End)
}

func TestMarketHandler_History_BadInput(t *testing.T) {
	mux := marketMux(NewMarketHandler(&fakeMarket{}))

	for _, path := range []string{
		"/api/v1/market/history",
		"/api/v1/market/history?ticker=X&start=yesterday",
		"/api/v1/market/history?ticker=X&window=0",
		"/api/v1/market/history?ticker=X&window=abc",
	} {
		w := do(t, mux, "GET", path, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestMarketHandler_Indices(t *testing.T) {
	mux := marketMux(NewMarketHandler(&fakeMarket{}))

	w := do(t, mux, "GET", "/api/v1/market/indices", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMarketHandler_News(t *testing.T) {
	market := &fakeMarket{}
	mux := marketMux(NewMarketHandler(market))

	w := do(t, mux, "GET", "/api/v1/market/news?ticker=INFY", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	market.newsErr = core.ErrBackendStatus
	w = do(t, mux, "GET", "/api/v1/market/news?ticker=INFY", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestMarketHandler_Holidays(t *testing.T) {
	market := &fakeMarket{}
	mux := marketMux(NewMarketHandler(market))

	w := do(t, mux, "GET", "/api/v1/market/holidays?year=2025&country=IN", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	assert.Equal(t, 2025, market.year)
	assert.Equal(t, "IN", market.country)

	w = do(t, mux, "GET", "/api/v1/market/holidays?year=next", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestMarketHandler_Tax(t *testing.T) {
	market := &fakeMarket{}
	mux := marketMux(NewMarketHandler(market))

	body := `{"portfolio": [{"symbol": "INFY", "buy_price": 1000, "sell_price": 1500, "quantity": 10, "buy_date": "2023-01-10", "sell_date": "2024-03-01"}]}`
	w := do(t, mux, "POST", "/api/v1/market/tax", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	require.Len(t, market.taxRows, 1)

	var result backend.TaxResult
	decodeData(t, w, &result)
	assert.Equal(t, 150.0, result.TotalTax)

	w = do(t, mux, "POST", "/api/v1/market/tax", `{"portfolio": []}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestMarketHandler_Fundamentals(t *testing.T) {
	mux := marketMux(NewMarketHandler(&fakeMarket{}))

	w := do(t, mux, "GET", "/api/v1/market/fundamentals?ticker=TCS.NS", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var f backend.Fundamentals
	decodeData(t, w, &f)
	assert.Equal(t, "TCS.NS", f.Ticker)
	assert.Equal(t, 100.0, f.BalanceSheet["2024-03-31"]["Total Assets"])

	w = do(t, mux, "GET", "/api/v1/market/fundamentals", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarketHandler_Info(t *testing.T) {
	market := &fakeMarket{}
	mux := marketMux(NewMarketHandler(market))

	w := do(t, mux, "GET", "/api/v1/market/info?ticker=INFY.NS", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Ticker string         `json:"ticker"`
		Info   map[string]any `json:"info"`
	}
	decodeData(t, w, &resp)
	assert.Equal(t, "INFY.NS", resp.Ticker)
	assert.Equal(t, "INFY.NS Ltd", resp.Info["longName"])

	market.infoErr = core.WrapError(core.ErrSymbolNotFound, errors.New("no info"))
	w = do(t, mux, "GET", "/api/v1/market/info?ticker=NONE.NS", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, mux, "GET", "/api/v1/market/info?ticker=%20", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarketHandler_Predict(t *testing.T) {
	mux := marketMux(NewMarketHandler(&fakeMarket{}))

	w := do(t, mux, "GET", "/api/v1/market/predict?ticker=SBIN.NS", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var p backend.Prediction
	decodeData(t, w, &p)
	assert.Equal(t, "SBIN.NS", p.Ticker)
	assert.Equal(t, 101.5, p.Next)
	assert.Equal(t, []float64{100, 101.5}, p.Forecast)

	w = do(t, mux, "GET", "/api/v1/market/predict", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
