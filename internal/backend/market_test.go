package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/stockdash/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_LatestPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest-prices", r.URL.Path)
		w.Write([]byte(`{
			"Nifty 50": {"latest": 24100.5, "previous": 24000, "change": 100.5, "percent_change": 0.42},
			"Nifty IT": {"latest": "Data not available", "previous": "Data not available",
			             "change": "Data not available", "percent_change": "Data not available"}
		}`))
	}))
	defer server.Close()

	board, err := New(server.URL).LatestPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "24100.5", board["Nifty 50"].Latest.String())
	assert.Equal(t, "0.42", board["Nifty 50"].PercentChange.String())
	assert.False(t, board["Nifty IT"].Latest.IsAvailable())
}

func TestClient_History(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/stock-data", r.URL.Path)
		assert.Equal(t, "SBIN.NS", q.Get("ticker"))
		assert.Equal(t, "2024-01-01", q.Get("start_date"))
		assert.Equal(t, "2024-01-31", q.Get("end_date"))
		w.Write([]byte(`[
			{"Date": 1704153600000, "Open": 640, "High": 650, "Low": 635, "Close": 645.5, "Adj Close": 600, "Volume": 1200000},
			{"('Date', '')": "2024-01-03", "('Close', 'SBIN.NS')": 650.25, "('Volume', 'SBIN.NS')": 900000},
			{"Date": "2024-01-04", "Open": 1}
		]`))
	}))
	defer server.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	bars, err := New(server.URL).History(context.Background(), "SBIN.NS", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 2, "rows without a close are skipped")

	assert.Equal(t, 645.5, bars[0].Close, "Adj Close must not shadow Close")
	assert.Equal(t, int64(1200000), bars[0].Volume)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)

	assert.Equal(t, 650.25, bars[1].Close)
	assert.Equal(t, int64(900000), bars[1].Volume)
	assert.Equal(t, "SBIN.NS", bars[1].Symbol)
}

func TestClient_History_InvalidRange(t *testing.T) {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := New("http://unused").History(context.Background(), "SBIN.NS", start, start.AddDate(0, 0, -1))
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFieldName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"Close", "Close"},
		{"Close_HDFCBANK.NS", "Close"},
		{"('Close', 'HDFCBANK.NS')", "Close"},
		{"Adj Close", "Adj Close"},
		{"Date", "Date"},
	}
	for _, tc := range tests {
		if got := fieldName(tc.key); got != tc.want {
			t.Errorf("fieldName(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestClient_News(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock-news1", r.URL.Path)
		assert.Equal(t, "SBIN.NS", r.URL.Query().Get("ticker"))
		json.NewEncoder(w).Encode([]NewsItem{{
			Source: "Mint", Time: "2 hours ago", News: "SBIN posts record profit",
			Link: "https://example.com/a", Sentiment: "positive",
		}})
	}))
	defer server.Close()

	items, err := New(server.URL).News(context.Background(), "SBIN.NS")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "positive", items[0].Sentiment)
}

func TestClient_Holidays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "IN", r.URL.Query().Get("country"))
		assert.Equal(t, "2025", r.URL.Query().Get("year"))
		w.Write([]byte(`[{"date": "2025-01-26", "name": "Republic Day"}]`))
	}))
	defer server.Close()

	days, err := New(server.URL).Holidays(context.Background(), "", 2025)
	require.NoError(t, err)
	assert.Equal(t, []Holiday{{Date: "2025-01-26", Name: "Republic Day"}}, days)
}

func TestClient_Holidays_RequiresYear(t *testing.T) {
	_, err := New("http://unused").Holidays(context.Background(), "IN", 0)
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
