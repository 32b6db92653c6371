package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/duka/internal/model"
)

// LocationSummary is the sales total for one showroom.
type LocationSummary struct {
	Location  model.Location  `json:"location"`
	Name      string          `json:"name"`
	Sales     int             `json:"sales"`
	UnitsSold int             `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Summary aggregates sales and purchases over a date range together with
// the current stock position.
type Summary struct {
	From           model.Date        `json:"from"`
	To             model.Date        `json:"to"`
	Locations      []LocationSummary `json:"locations"`
	Sales          int               `json:"sales"`
	UnitsSold      int               `json:"units_sold"`
	Revenue        decimal.Decimal   `json:"revenue"`
	CashRevenue    decimal.Decimal   `json:"cash_revenue"`
	CreditRevenue  decimal.Decimal   `json:"credit_revenue"`
	Purchases      int               `json:"purchases"`
	PurchasedUnits int               `json:"purchased_units"`
	PurchaseCost   decimal.Decimal   `json:"purchase_cost"`
	Stock          ItemCounts        `json:"stock"`
}

// GetSummary builds a Summary. Amounts are stored as decimal text, so they
// are summed here rather than in SQL to avoid float rounding.
func GetSummary(ctx context.Context, db DBTX, dates DateRange) (*Summary, error) {
	s := &Summary{From: dates.From, To: dates.To}

	byLocation := make(map[model.Location]*LocationSummary, len(model.Showrooms))
	for _, l := range model.Showrooms {
		s.Locations = append(s.Locations, LocationSummary{Location: l, Name: l.DisplayName()})
	}
	for i := range s.Locations {
		byLocation[s.Locations[i].Location] = &s.Locations[i]
	}

	where, args := dates.apply("sold_at", []string{"voided_at IS NULL"}, nil)
	rows, err := db.QueryContext(ctx,
		`SELECT location, payment_method, quantity, total_amount FROM sales`+whereClause(where), args...,
	)
	if err != nil {
		return nil, fmt.Errorf("summarizing sales: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			location model.Location
			method   string
			quantity int
			amount   decimal.Decimal
		)
		if err := rows.Scan(&location, &method, &quantity, &amount); err != nil {
			return nil, fmt.Errorf("scanning sale summary: %w", err)
		}

		s.Sales++
		s.UnitsSold += quantity
		s.Revenue = s.Revenue.Add(amount)
		switch method {
		case model.PaymentCash:
			s.CashRevenue = s.CashRevenue.Add(amount)
		case model.PaymentCredit:
			s.CreditRevenue = s.CreditRevenue.Add(amount)
		}
		if ls, ok := byLocation[location]; ok {
			ls.Sales++
			ls.UnitsSold += quantity
			ls.Revenue = ls.Revenue.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summarizing sales: %w", err)
	}

	where, args = dates.apply("purchase_date", nil, nil)
	prows, err := db.QueryContext(ctx,
		`SELECT quantity_purchased, price FROM purchases`+whereClause(where), args...,
	)
	if err != nil {
		return nil, fmt.Errorf("summarizing purchases: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			quantity int
			price    decimal.Decimal
		)
		if err := prows.Scan(&quantity, &price); err != nil {
			return nil, fmt.Errorf("scanning purchase summary: %w", err)
		}
		s.Purchases++
		s.PurchasedUnits += quantity
		s.PurchaseCost = s.PurchaseCost.Add(price.Mul(decimal.NewFromInt(int64(quantity))))
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("summarizing purchases: %w", err)
	}

	s.Stock, err = CountItems(ctx, db)
	if err != nil {
		return nil, err
	}

	return s, nil
}
