package invoices

import "github.com/shopspring/decimal"

// TaxRate is fixed at 18% of the stored order total.
var TaxRate = decimal.RequireFromString("0.18")

// ComputeTax returns base*TaxRate rounded half away from zero to whole cents.
func ComputeTax(baseCents int64) int64 {
	return decimal.NewFromInt(baseCents).Mul(TaxRate).Round(0).IntPart()
}
