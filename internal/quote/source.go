// Package quote selects where watchlist prices come from.
package quote

import (
	"context"
	"fmt"

	"github.com/newthinker/stockdash/internal/core"
)

// Source names accepted by the price.source setting
const (
	SourceBackend = "backend"
	SourceYahoo   = "yahoo"
)

// PriceFetcher returns the current price for one watchlist entry.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, q core.PriceQuery) (core.Price, error)
}

// QuoteFetcher is implemented by direct market-data collectors.
type QuoteFetcher interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*core.Quote, error)
}

// FromQuotes adapts a QuoteFetcher to a PriceFetcher.
func FromQuotes(q QuoteFetcher) PriceFetcher {
	return quoteSource{q: q}
}

type quoteSource struct {
	q QuoteFetcher
}

func (s quoteSource) FetchPrice(ctx context.Context, q core.PriceQuery) (core.Price, error) {
	quote, err := s.q.FetchQuote(ctx, q.Symbol)
	if err != nil {
		return core.Unavailable(), err
	}
	if !quote.IsValid() {
		return core.Unavailable(), core.WrapError(core.ErrPriceUnavailable,
			fmt.Errorf("%s returned no price for %s", s.q.Name(), q.Symbol))
	}
	return core.Available(quote.Price), nil
}

// Select returns the fetcher named by source. backendFetcher serves "backend"
// and the empty string.
func Select(source string, backendFetcher PriceFetcher, yahoo QuoteFetcher) (PriceFetcher, error) {
	switch source {
	case "", SourceBackend:
		return backendFetcher, nil
	case SourceYahoo:
		return FromQuotes(yahoo), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown price source %q", source))
	}
}
