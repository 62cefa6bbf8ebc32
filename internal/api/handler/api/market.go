// internal/api/handler/api/market.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stockdash/internal/api/response"
	"github.com/newthinker/stockdash/internal/backend"
	"github.com/newthinker/stockdash/internal/core"
	"github.com/newthinker/stockdash/internal/indicator"
)

const dateLayout = "2006-01-02"

// DefaultWindows are the moving averages drawn when none are requested.
var DefaultWindows = []int{100, 200}

// MarketData defines the interface needed from backend.Client.
type MarketData interface {
	LatestPrices(ctx context.Context) (map[string]backend.IndexQuote, error)
	History(ctx context.Context, ticker string, start, end time.Time) ([]core.OHLCV, error)
	News(ctx context.Context, ticker string) ([]backend.NewsItem, error)
	Holidays(ctx context.Context, country string, year int) ([]backend.Holiday, error)
	CalculateTax(ctx context.Context, rows []backend.PortfolioRow) (*backend.TaxResult, error)
	Fundamentals(ctx context.Context, ticker string) (*backend.Fundamentals, error)
	StockInfo(ctx context.Context, ticker string) (map[string]any, error)
	Predict(ctx context.Context, ticker string) (*backend.Prediction, error)
}

// MarketHandler serves index, history, company, news, holiday and tax data.
type MarketHandler struct {
	market MarketData
	now    func() time.Time
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(market MarketData) *MarketHandler {
	return &MarketHandler{market: market, now: time.Now}
}

// Bar is one candle in a history response.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// HistoryResponse is the payload of GET /api/v1/market/history. Each moving
// average is aligned with Bars; positions without enough history are null.
type HistoryResponse struct {
	Ticker              string                `json:"ticker"`
	Start               string                `json:"start"`
	End                 string                `json:"end"`
	Bars                []Bar                 `json:"bars"`
	MovingAverages      map[string][]*float64 `json:"moving_averages"`
	ExponentialAverages map[string][]*float64 `json:"exponential_averages,omitempty"`
}

// Indices handles GET /api/v1/market/indices
func (h *MarketHandler) Indices(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.market.LatestPrices(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, quotes)
}

// History handles GET /api/v1/market/history?ticker=&start=&end=&window=&ema=
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticker := q.Get("ticker")
	if ticker == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, fmt.Errorf("ticker is required")))
		return
	}

	end := h.now().UTC()
	start := end.AddDate(-1, 0, 0)
	var err error
	if v := q.Get("start"); v != "" {
		if start, err = time.Parse(dateLayout, v); err != nil {
			response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidInput, err))
			return
		}
	}
	if v := q.Get("end"); v != "" {
		if end, err = time.Parse(dateLayout, v); err != nil {
			response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidInput, err))
			return
		}
	}

	windows, err := parseWindows(q["window"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidInput, err))
		return
	}
	// no EMA unless asked for
	emaWindows, err := parseWindowList(q["ema"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidInput, err))
		return
	}

	bars, err := h.market.History(r.Context(), ticker, start, end)
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := HistoryResponse{
		Ticker:         ticker,
		Start:          start.Format(dateLayout),
		End:            end.Format(dateLayout),
		Bars:           make([]Bar, len(bars)),
		MovingAverages: make(map[string][]*float64, len(windows)),
	}
	for i, b := range bars {
		resp.Bars[i] = Bar{
			Date:   b.Time.Format(dateLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	closes := core.Closes(bars)
	for _, win := range windows {
		resp.MovingAverages[strconv.Itoa(win)] = indicator.MovingAverage(closes, win)
	}
	if len(emaWindows) > 0 {
		resp.ExponentialAverages = make(map[string][]*float64, len(emaWindows))
		for _, win := range emaWindows {
			resp.ExponentialAverages[strconv.Itoa(win)] = indicator.ExponentialAverage(closes, win)
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

// parseWindows accepts repeated or comma-separated window values and falls
// back to DefaultWindows.
func parseWindows(raw []string) ([]int, error) {
	out, err := parseWindowList(raw)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return DefaultWindows, nil
	}
	return out, nil
}

func parseWindowList(raw []string) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid window %q", part)
			}
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}

// News handles GET /api/v1/market/news?ticker=
func (h *MarketHandler) News(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	items, err := h.market.News(r.Context(), ticker)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"ticker": ticker,
		"news":   items,
	})
}

// Holidays handles GET /api/v1/market/holidays?year=&country=
func (h *MarketHandler) Holidays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year := h.now().Year()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidInput, err))
			return
		}
		year = n
	}

	holidays, err := h.market.Holidays(r.Context(), q.Get("country"), year)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"year":     year,
		"holidays": holidays,
	})
}

// TaxRequest is the request body for the tax calculator.
type TaxRequest struct {
	Portfolio []backend.PortfolioRow `json:"portfolio"`
}

// Tax handles POST /api/v1/market/tax
func (h *MarketHandler) Tax(w http.ResponseWriter, r *http.Request) {
	var req TaxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidInput, err))
		return
	}

	result, err := h.market.CalculateTax(r.Context(), req.Portfolio)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Fundamentals handles GET /api/v1/market/fundamentals?ticker=
func (h *MarketHandler) Fundamentals(w http.ResponseWriter, r *http.Request) {
	ticker, ok := requireTicker(w, r)
	if !ok {
		return
	}
	f, err := h.market.Fundamentals(r.Context(), ticker)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, f)
}

// Info handles GET /api/v1/market/info?ticker=
func (h *MarketHandler) Info(w http.ResponseWriter, r *http.Request) {
	ticker, ok := requireTicker(w, r)
	if !ok {
		return
	}
	info, err := h.market.StockInfo(r.Context(), ticker)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"ticker": ticker,
		"info":   info,
	})
}

// Predict handles GET /api/v1/market/predict?ticker=
func (h *MarketHandler) Predict(w http.ResponseWriter, r *http.Request) {
	ticker, ok := requireTicker(w, r)
	if !ok {
		return
	}
	p, err := h.market.Predict(r.Context(), ticker)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

func requireTicker(w http.ResponseWriter, r *http.Request) (string, bool) {
	ticker := strings.TrimSpace(r.URL.Query().Get("ticker"))
	if ticker == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, fmt.Errorf("ticker is required")))
		return "", false
	}
	return ticker, true
}
