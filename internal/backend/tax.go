package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/newthinker/stockdash/internal/core"
)

const routeCalculateTax = "/calculate-tax"

var validate = validator.New(validator.WithRequiredStructEnabled())

// PortfolioRow is one closed position submitted for capital-gains tax.
type PortfolioRow struct {
	Symbol    string  `json:"symbol" validate:"required"`
	BuyPrice  float64 `json:"buy_price" validate:"gt=0"`
	SellPrice float64 `json:"sell_price" validate:"gt=0"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	BuyDate   string  `json:"buy_date" validate:"required,datetime=2006-01-02"`
	SellDate  string  `json:"sell_date" validate:"required,datetime=2006-01-02"`
}

// TaxDetail is the backend's breakdown for one row
type TaxDetail struct {
	Symbol    string  `json:"symbol"`
	Gain      float64 `json:"gain"`
	Category  string  `json:"tax_category"`
	TaxAmount float64 `json:"tax_amount"`
}

// TaxResult is the total liability with its breakdown
type TaxResult struct {
	TotalTax float64     `json:"total_tax"`
	Details  []TaxDetail `json:"tax_details"`
}

// ValidatePortfolio checks every row before it is sent.
func ValidatePortfolio(rows []PortfolioRow) error {
	if len(rows) == 0 {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("portfolio is empty"))
	}
	for i, row := range rows {
		if err := validate.Struct(row); err != nil {
			return core.WrapError(core.ErrInvalidInput, fmt.Errorf("row %d: %w", i, err))
		}
		buy, _ := time.Parse(dateLayout, row.BuyDate)
		sell, _ := time.Parse(dateLayout, row.SellDate)
		if sell.Before(buy) {
			return core.WrapError(core.ErrInvalidInput, fmt.Errorf("row %d: sell date before buy date", i))
		}
	}
	return nil
}

// CalculateTax submits rows to the backend's tax calculator.
func (c *Client) CalculateTax(ctx context.Context, rows []PortfolioRow) (*TaxResult, error) {
	if err := ValidatePortfolio(rows); err != nil {
		return nil, err
	}

	body := map[string]any{"portfolio": rows}
	var out TaxResult
	if err := c.do(ctx, http.MethodPost, routeCalculateTax, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
