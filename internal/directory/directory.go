// Package directory holds the static ticker -> company name reference used
// for search-as-you-type suggestions.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/newthinker/stockdash/internal/core"
	"go.uber.org/zap"
)

// DefaultMarketKey is the section of the bundled asset holding NSE rows.
const DefaultMarketKey = "NSE - Yahoo Code "

// Directory is an immutable, ordered list of symbols.
type Directory struct {
	symbols []core.Symbol
}

// New builds a directory from symbols, keeping their order.
func New(symbols []core.Symbol) *Directory {
	s := make([]core.Symbol, len(symbols))
	copy(s, symbols)
	return &Directory{symbols: s}
}

// Len returns the number of symbols.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.symbols)
}

// Filter returns every symbol whose ticker or company name contains query,
// ignoring case, in directory order. An empty query matches nothing.
func (d *Directory) Filter(query string) []core.Symbol {
	if d == nil || query == "" {
		return []core.Symbol{}
	}
	q := strings.ToLower(query)

	matches := []core.Symbol{}
	for _, s := range d.symbols {
		if strings.Contains(strings.ToLower(s.Ticker), q) ||
			strings.Contains(strings.ToLower(s.Name), q) {
			matches = append(matches, s)
		}
	}
	return matches
}

// Lookup finds a symbol by ticker, ignoring case.
func (d *Directory) Lookup(ticker string) (core.Symbol, bool) {
	if d == nil {
		return core.Symbol{}, false
	}
	for _, s := range d.symbols {
		if strings.EqualFold(s.Ticker, ticker) {
			return s, true
		}
	}
	return core.Symbol{}, false
}

type row struct {
	Symbol string `json:"NSE Symbol"`
	Name   string `json:"Security Name"`
}

// Parse decodes the bundled asset format. A missing market key yields an
// empty directory.
func Parse(data []byte, marketKey string) (*Directory, error) {
	var sections map[string][]row
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, core.WrapError(core.ErrDirectoryLoad, fmt.Errorf("decoding asset: %w", err))
	}

	rows := sections[marketKey]
	symbols := make([]core.Symbol, 0, len(rows))
	for _, r := range rows {
		symbols = append(symbols, core.Symbol{Ticker: r.Symbol, Name: r.Name})
	}
	return &Directory{symbols: symbols}, nil
}

// Loader fetches the asset from a file path or an http(s) URL.
type Loader struct {
	Source     string
	MarketKey  string
	MaxRetries uint64
	Client     *http.Client
	Logger     *zap.Logger
}

// NewLoader creates a loader with default retry and timeout settings.
func NewLoader(source, marketKey string, logger *zap.Logger) *Loader {
	if marketKey == "" {
		marketKey = DefaultMarketKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		Source:     source,
		MarketKey:  marketKey,
		MaxRetries: 3,
		Client:     &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

// Load reads and parses the asset.
func (l *Loader) Load(ctx context.Context) (*Directory, error) {
	if l.Source == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("directory source is empty"))
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(l.Source, "http://") || strings.HasPrefix(l.Source, "https://") {
		data, err = l.fetch(ctx)
	} else {
		data, err = os.ReadFile(l.Source)
	}
	if err != nil {
		return nil, core.WrapError(core.ErrDirectoryLoad, err)
	}

	dir, err := Parse(data, l.MarketKey)
	if err != nil {
		return nil, err
	}
	l.Logger.Info("symbol directory loaded",
		zap.String("source", l.Source),
		zap.Int("symbols", dir.Len()),
	)
	return dir, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Source, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := l.Client.Do(req)
		if err != nil {
			l.Logger.Warn("directory fetch failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, l.MaxRetries), ctx)); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", l.Source, err)
	}
	return body, nil
}
