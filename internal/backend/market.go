package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stockdash/internal/core"
)

const (
	routeLatestPrices = "/latest-prices"
	routeStockData    = "/stock-data"
	routeNews         = "/stock-news1"
	routeHolidays     = "/holidays"

	dateLayout = "2006-01-02"
)

// IndexQuote is one row of the index board. The backend reports missing
// data with placeholder strings, which decode as unavailable prices.
type IndexQuote struct {
	Latest        core.Price `json:"latest"`
	Previous      core.Price `json:"previous"`
	Change        core.Price `json:"change"`
	PercentChange core.Price `json:"percent_change"`
}

// NewsItem is one headline with its sentiment label
type NewsItem struct {
	Source    string `json:"source"`
	Time      string `json:"time"`
	News      string `json:"news"`
	Link      string `json:"link"`
	Sentiment string `json:"sentiment"`
}

// Holiday is one market holiday
type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// LatestPrices returns the index board keyed by index name.
func (c *Client) LatestPrices(ctx context.Context) (map[string]IndexQuote, error) {
	out := map[string]IndexQuote{}
	if err := c.do(ctx, http.MethodGet, routeLatestPrices, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns daily candles for ticker between start and end.
func (c *Client) History(ctx context.Context, ticker string, start, end time.Time) ([]core.OHLCV, error) {
	if ticker == "" {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("ticker is required"))
	}
	if end.Before(start) {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("end date before start date"))
	}

	params := url.Values{
		"ticker":     {ticker},
		"start_date": {start.Format(dateLayout)},
		"end_date":   {end.Format(dateLayout)},
	}

	var records []map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, routeStockData, params, nil, &records); err != nil {
		return nil, err
	}

	bars := make([]core.OHLCV, 0, len(records))
	for _, rec := range records {
		bar, ok := parseRecord(ticker, rec)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseRecord reads one dataframe row. Column keys come either plain
// ("Close"), suffixed with the ticker ("Close_HDFCBANK.NS") or as a
// stringified tuple ("('Close', 'HDFCBANK.NS')").
func parseRecord(ticker string, rec map[string]json.RawMessage) (core.OHLCV, bool) {
	bar := core.OHLCV{Symbol: ticker}
	var haveClose, haveDate bool

	for key, raw := range rec {
		switch fieldName(key) {
		case "Date", "Datetime":
			if t, ok := parseTime(raw); ok {
				bar.Time = t
				haveDate = true
			}
		case "Open":
			bar.Open, _ = parseFloat(raw)
		case "High":
			bar.High, _ = parseFloat(raw)
		case "Low":
			bar.Low, _ = parseFloat(raw)
		case "Close":
			bar.Close, haveClose = parseFloat(raw)
		case "Volume":
			v, _ := parseFloat(raw)
			bar.Volume = int64(v)
		}
	}
	return bar, haveClose && haveDate
}

func fieldName(key string) string {
	k := strings.Trim(key, "()[] ")
	if i := strings.IndexAny(k, ",_"); i >= 0 {
		k = k[:i]
	}
	return strings.Trim(k, `'" `)
}

func parseFloat(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// parseTime accepts epoch milliseconds (pandas' default) or a date string.
func parseTime(raw json.RawMessage) (time.Time, bool) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// News returns headlines for ticker with their sentiment labels.
func (c *Client) News(ctx context.Context, ticker string) ([]NewsItem, error) {
	if ticker == "" {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("ticker is required"))
	}
	var items []NewsItem
	if err := c.do(ctx, http.MethodGet, routeNews, url.Values{"ticker": {ticker}}, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Holidays returns the market holidays of country in year. An empty country
// means India.
func (c *Client) Holidays(ctx context.Context, country string, year int) ([]Holiday, error) {
	if year <= 0 {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("year is required"))
	}
	if country == "" {
		country = "IN"
	}
	params := url.Values{
		"country": {country},
		"year":    {strconv.Itoa(year)},
	}
	var out []Holiday
	if err := c.do(ctx, http.MethodGet, routeHolidays, params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
