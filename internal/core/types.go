package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Market represents a trading venue
type Market string

const (
	MarketNSE Market = "NSE"
	MarketBSE Market = "BSE"
	MarketUS  Market = "US"
)

// Price is a last-known price, or the explicit unavailable marker.
// The zero value is unavailable.
type Price struct {
	value decimal.Decimal
	valid bool
}

// Available wraps a known price
func Available(d decimal.Decimal) Price {
	return Price{value: d, valid: true}
}

// Unavailable returns the "no price" marker
func Unavailable() Price {
	return Price{}
}

// IsAvailable reports whether the price holds a value
func (p Price) IsAvailable() bool {
	return p.valid
}

// Decimal returns the price value; zero when unavailable.
func (p Price) Decimal() decimal.Decimal {
	return p.value
}

func (p Price) String() string {
	if !p.valid {
		return "N/A"
	}
	return p.value.String()
}

// Equal compares two prices, treating all unavailable prices as equal.
func (p Price) Equal(o Price) bool {
	if p.valid != o.valid {
		return false
	}
	return !p.valid || p.value.Equal(o.value)
}

// MarshalJSON encodes an available price as a decimal string and an
// unavailable one as null.
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.value.String())
}

// UnmarshalJSON accepts null, a JSON number or a numeric string. Anything else
// (the backend sends "N/A" or "Data not available") decodes as unavailable.
func (p *Price) UnmarshalJSON(data []byte) error {
	*p = ParsePrice(data)
	return nil
}

// ParsePrice interprets a raw JSON value as a price.
func ParsePrice(raw json.RawMessage) Price {
	if len(raw) == 0 || string(raw) == "null" {
		return Unavailable()
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if d, err := decimal.NewFromString(num.String()); err == nil {
			return Available(d)
		}
		return Unavailable()
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Unavailable()
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Unavailable()
	}
	return Available(d)
}

// Symbol is one row of the symbol directory
type Symbol struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// Entry is one ticker's membership in a watchlist
type Entry struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Price  Price  `json:"price"`
	// Err holds the failure message of the last price refresh, if any.
	Err     string `json:"error,omitempty"`
	Pending bool   `json:"pending,omitempty"`
}

// Watchlist is a named set of entries. Open is display state only and is
// never persisted.
type Watchlist struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
	Open    bool    `json:"open"`
}

// Has reports whether symbol is already in the watchlist
func (w Watchlist) Has(symbol string) bool {
	return w.indexOf(symbol) >= 0
}

func (w Watchlist) indexOf(symbol string) int {
	for i, e := range w.Entries {
		if e.Symbol == symbol {
			return i
		}
	}
	return -1
}

// Entry returns the entry for symbol
func (w Watchlist) Entry(symbol string) (Entry, bool) {
	i := w.indexOf(symbol)
	if i < 0 {
		return Entry{}, false
	}
	return w.Entries[i], true
}

// Clone returns a deep copy
func (w Watchlist) Clone() Watchlist {
	c := w
	c.Entries = make([]Entry, len(w.Entries))
	copy(c.Entries, w.Entries)
	return c
}

// Quote represents a real-time price quote
type Quote struct {
	Symbol string
	Market Market
	Price  decimal.Decimal
	Volume int64
	Time   time.Time
	Source string
}

// IsValid checks if the quote has required fields
func (q Quote) IsValid() bool {
	return q.Symbol != "" && q.Price.IsPositive()
}

// OHLCV represents a daily candle
type OHLCV struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Time   time.Time
}

// Closes extracts closing prices in series order
func Closes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// PriceQuery asks for the current price of one watchlist entry. UserID is
// empty in local-only mode.
type PriceQuery struct {
	Symbol    string
	Name      string
	Watchlist string
	UserID    string
}
