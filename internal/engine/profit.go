package engine

import (
	"github.com/lepss/rent-simulator/internal/models"
)

// Margin is total sales minus total cost. Negative means the operation is a
// loss; that is a reportable result, not an error.
func Margin(p *models.Purchase, exps []models.Expenditure, f *models.Financing, lots []models.Lot) float64 {
	return TotalSales(lots) - TotalCost(p, exps, f)
}

// VATNetMargin is the margin after deducting the VAT due on the operation.
func VATNetMargin(p *models.Purchase, exps []models.Expenditure, f *models.Financing, lots []models.Lot) float64 {
	return Margin(p, exps, f, lots) - TotalVAT(lots, exps)
}

// Profitability is the VAT-net margin as a percentage of total sales.
// Zero sales yields 0, never NaN or Inf.
func Profitability(p *models.Purchase, exps []models.Expenditure, f *models.Financing, lots []models.Lot) float64 {
	sales := TotalSales(lots)
	if sales <= 0 {
		return 0
	}
	return VATNetMargin(p, exps, f, lots) / sales * 100
}
