package services

import (
	"strings"
	"time"

	"github.com/LovationAdmin/finance-assistant/models"

	"github.com/shopspring/decimal"
)

// Fixed costs, income and transfers stay out of the pie chart.
var categoryExclusions = map[string]bool{
	"TRANSFER_IN":         true,
	"TRANSFER_OUT":        true,
	"LOAN_PAYMENTS":       true,
	"INCOME":              true,
	"RENT_AND_UTILITIES":  true,
	"RENT":                true,
	"UTILITIES":           true,
	"INSURANCE":           true,
	"MORTGAGE":            true,
	"LOAN":                true,
	"CREDIT_CARD_PAYMENT": true,
}

var categoryPalette = []string{"#F59E0B", "#EC4899", "#8B5CF6", "#10B981", "#3B82F6", "#EF4444", "#14B8A6", "#A855F7"}

// CategoryCutoff is the first date included in a days-long window ending now.
func CategoryCutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

// SpendingByCategory groups discretionary spending by upper-cased primary
// category, keeping the order categories are first seen in.
func SpendingByCategory(txs []models.Transaction, days int) models.CategoryBreakdown {
	totals := make(map[string]decimal.Decimal)
	var order []string
	total := decimal.Zero

	for _, t := range txs {
		category := strings.ToUpper(t.PrimaryCategory())
		if category == "" {
			category = "OTHER"
		}
		if t.Amount < 0 || categoryExclusions[category] {
			continue
		}
		if _, seen := totals[category]; !seen {
			order = append(order, category)
		}
		amount := decimal.NewFromFloat(t.Amount)
		totals[category] = totals[category].Add(amount)
		total = total.Add(amount)
	}

	breakdown := models.CategoryBreakdown{
		Categories:    []models.CategorySlice{},
		TotalSpending: cents(total),
		PeriodDays:    days,
	}
	for i, name := range order {
		value := totals[name]
		pct := 0.0
		if total.IsPositive() {
			pct = value.Div(total).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		}
		breakdown.Categories = append(breakdown.Categories, models.CategorySlice{
			Name:       name,
			Value:      cents(value),
			Percentage: pct,
			Fill:       categoryPalette[i%len(categoryPalette)],
		})
	}
	return breakdown
}
