package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/newthinker/stockdash/internal/core"
)

const (
	routeGetWatchlist    = "/get-watchlist"
	routeCurrentPrice    = "/current-price"
	routeRemoveWatchlist = "/remove-watchlist"
	routeRemoveStock     = "/remove-stock"
)

type watchlistResponse struct {
	Name  string          `json:"name"`
	Items []watchlistItem `json:"items"`
}

type watchlistItem struct {
	Stock     string          `json:"Stock"`
	StockName string          `json:"stockName"`
	Watchlist string          `json:"Watchlist"`
	Price     json.RawMessage `json:"Price,omitempty"`
}

type currentPriceResponse struct {
	Ticker       string          `json:"ticker"`
	CurrentPrice json.RawMessage `json:"current_price"`
}

// LoadWatchlists returns the persisted watchlists of userID.
func (c *Client) LoadWatchlists(ctx context.Context, userID string) ([]core.Watchlist, error) {
	if userID == "" {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("user id is required"))
	}

	var resp []watchlistResponse
	if err := c.do(ctx, http.MethodGet, routeGetWatchlist, url.Values{"userId": {userID}}, nil, &resp); err != nil {
		return nil, err
	}

	lists := make([]core.Watchlist, 0, len(resp))
	for _, r := range resp {
		w := core.Watchlist{Name: r.Name, Entries: make([]core.Entry, 0, len(r.Items))}
		for _, item := range r.Items {
			if item.Stock == "" || w.Has(item.Stock) {
				continue
			}
			w.Entries = append(w.Entries, core.Entry{
				Symbol: item.Stock,
				Name:   item.StockName,
				Price:  core.ParsePrice(item.Price),
			})
		}
		lists = append(lists, w)
	}
	return lists, nil
}

func priceParams(q core.PriceQuery) url.Values {
	params := url.Values{
		"ticker":         {q.Symbol},
		"stockName":      {q.Name},
		"watchlist_name": {q.Watchlist},
	}
	if q.UserID != "" {
		params.Set("userId", q.UserID)
	}
	return params
}

// FetchPrice returns the current price of q.Symbol. The backend keys the
// lookup by watchlist, so q.Watchlist is required.
func (c *Client) FetchPrice(ctx context.Context, q core.PriceQuery) (core.Price, error) {
	if q.Symbol == "" || q.Watchlist == "" {
		return core.Unavailable(), core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("ticker and watchlist name are required"))
	}

	var resp currentPriceResponse
	if err := c.do(ctx, http.MethodGet, routeCurrentPrice, priceParams(q), nil, &resp); err != nil {
		return core.Unavailable(), err
	}

	price := core.ParsePrice(resp.CurrentPrice)
	if !price.IsAvailable() {
		return price, core.WrapError(core.ErrPriceUnavailable, fmt.Errorf("no price for %s", q.Symbol))
	}
	return price, nil
}

// PersistsOnFetch reports that a successful FetchPrice has already stored
// the (user, watchlist, ticker) record.
func (c *Client) PersistsOnFetch() bool { return true }

// PersistEntry stores entry under watchlist. The backend has no dedicated
// write route; /current-price upserts the (user, watchlist, ticker) record.
func (c *Client) PersistEntry(ctx context.Context, watchlist string, entry core.Entry, userID string) error {
	if watchlist == "" || entry.Symbol == "" {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("ticker and watchlist name are required"))
	}
	q := core.PriceQuery{Symbol: entry.Symbol, Name: entry.Name, Watchlist: watchlist, UserID: userID}
	return c.do(ctx, http.MethodGet, routeCurrentPrice, priceParams(q), nil, nil)
}

// RemoveWatchlist deletes every persisted record of the named watchlist.
func (c *Client) RemoveWatchlist(ctx context.Context, name string) error {
	if name == "" {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("watchlist name is required"))
	}
	return c.do(ctx, http.MethodDelete, routeRemoveWatchlist, url.Values{"watchlist_name": {name}}, nil, nil)
}

// RemoveEntry deletes one ticker from a persisted watchlist.
func (c *Client) RemoveEntry(ctx context.Context, watchlist, symbol, userID string) error {
	if watchlist == "" || symbol == "" {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("watchlist name and stock symbol are required"))
	}
	params := url.Values{
		"watchlist_name": {watchlist},
		"stock_symbol":   {symbol},
	}
	if userID != "" {
		params.Set("userId", userID)
	}
	return c.do(ctx, http.MethodDelete, routeRemoveStock, params, nil, nil)
}
