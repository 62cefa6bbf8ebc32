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
	routeFundamentals = "/fundamental-data"
	routeStockInfo    = "/stock-info"
	routePredictData  = "/stock-data1"
	routePredict      = "/predict"
)

// Statement is one financial statement keyed by period end date, then by
// line item. Missing cells arrive as the string "null".
type Statement map[string]map[string]any

// Fundamentals holds the three annual statements of a company.
type Fundamentals struct {
	Ticker          string    `json:"ticker"`
	BalanceSheet    Statement `json:"balance_sheet"`
	IncomeStatement Statement `json:"income_statement"`
	CashFlow        Statement `json:"cash_flow"`
}

type fundamentalsResponse struct {
	B struct {
		BalanceSheet Statement `json:"balance_sheet"`
	} `json:"b"`
	I struct {
		IncomeStatement Statement `json:"income_statement"`
	} `json:"i"`
	C struct {
		CashFlow Statement `json:"cash_flow"`
	} `json:"c"`
}

// Fundamentals returns the balance sheet, income statement and cash flow of
// ticker.
func (c *Client) Fundamentals(ctx context.Context, ticker string) (*Fundamentals, error) {
	if ticker == "" {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("ticker is required"))
	}

	var resp fundamentalsResponse
	if err := c.do(ctx, http.MethodGet, routeFundamentals, url.Values{"ticker": {ticker}}, nil, &resp); err != nil {
		return nil, err
	}
	return &Fundamentals{
		Ticker:          ticker,
		BalanceSheet:    orEmpty(resp.B.BalanceSheet),
		IncomeStatement: orEmpty(resp.I.IncomeStatement),
		CashFlow:        orEmpty(resp.C.CashFlow),
	}, nil
}

func orEmpty(s Statement) Statement {
	if s == nil {
		return Statement{}
	}
	return s
}

// StockInfo returns the company profile of ticker as reported upstream.
// The field set varies by listing, so it is left loose.
func (c *Client) StockInfo(ctx context.Context, ticker string) (map[string]any, error) {
	if ticker == "" {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("ticker is required"))
	}

	var info map[string]any
	if err := c.do(ctx, http.MethodGet, routeStockInfo, url.Values{"ticker": {ticker}}, nil, &info); err != nil {
		return nil, err
	}
	if len(info) == 0 {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no info for %s", ticker))
	}
	return info, nil
}

// Prediction is the backend's LSTM forecast for one ticker.
type Prediction struct {
	Ticker string `json:"ticker"`
	// Next is the forecast closing price for the next session.
	Next       float64 `json:"next"`
	ModelError string  `json:"model_error,omitempty"`
	// Dates and Prices are the input series.
	Dates  []string  `json:"dates"`
	Prices []float64 `json:"prices"`
	// Actual and Predicted cover the model's test window.
	Actual    []float64 `json:"actual"`
	Predicted []float64 `json:"predicted"`
	Forecast  []float64 `json:"forecast"`
}

type predictResponse struct {
	LSTM struct {
		Prediction float64 `json:"prediction"`
		Error      *string `json:"error"`
	} `json:"LSTM"`
	Original struct {
		Dates  []string          `json:"dates"`
		Prices []json.RawMessage `json:"prices"`
	} `json:"original"`
	Comparison struct {
		Actual    []json.RawMessage `json:"Actual"`
		Predicted []json.RawMessage `json:"Predicted"`
	} `json:"comparision"`
	Volume struct {
		DF2 []json.RawMessage `json:"df2"`
	} `json:"Volume"`
}

// Predict fetches two years of daily data for ticker and submits it to the
// backend's forecasting model.
func (c *Client) Predict(ctx context.Context, ticker string) (*Prediction, error) {
	if ticker == "" {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("ticker is required"))
	}

	var records []map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, routePredictData, url.Values{"ticker": {ticker}}, nil, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no history for %s", ticker))
	}

	var resp predictResponse
	body := map[string]any{"stockData": records}
	if err := c.do(ctx, http.MethodPost, routePredict, nil, body, &resp); err != nil {
		return nil, err
	}

	p := &Prediction{
		Ticker:    ticker,
		Next:      resp.LSTM.Prediction,
		Dates:     resp.Original.Dates,
		Prices:    floats(resp.Original.Prices),
		Actual:    floats(resp.Comparison.Actual),
		Predicted: floats(resp.Comparison.Predicted),
		Forecast:  floats(resp.Volume.DF2),
	}
	if resp.LSTM.Error != nil {
		p.ModelError = *resp.LSTM.Error
	}
	return p, nil
}

// floats reads numbers that may come bare or wrapped in one-element arrays
// (model output columns). Unreadable values are dropped.
func floats(raw []json.RawMessage) []float64 {
	out := make([]float64, 0, len(raw))
	for _, r := range raw {
		if f, ok := parseFloat(r); ok {
			out = append(out, f)
			continue
		}
		var wrapped []json.RawMessage
		if err := json.Unmarshal(r, &wrapped); err == nil && len(wrapped) == 1 {
			if f, ok := parseFloat(wrapped[0]); ok {
				out = append(out, f)
			}
		}
	}
	return out
}
