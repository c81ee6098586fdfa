package engine

import (
	"github.com/lepss/rent-simulator/internal/models"
)

// TotalPurchaseCost returns the total acquisition cost: agency-inclusive
// price plus acquisition and legal fees. A nil purchase (not yet entered)
// totals 0.
func TotalPurchaseCost(p *models.Purchase) float64 {
	if p == nil {
		return 0
	}
	return p.AgencyInclusivePrice + p.AcquisitionFee + p.LegalFee
}

// TotalSales sums the sale prices of all lots.
func TotalSales(lots []models.Lot) float64 {
	var total float64
	for _, lot := range lots {
		total += lot.SalePrice
	}
	return total
}

// TotalExpenditures sums tax-inclusive price times quantity over all
// expenditure lines. Quantity is taken as entered; no default is substituted.
func TotalExpenditures(exps []models.Expenditure) float64 {
	var total float64
	for _, e := range exps {
		total += e.TaxInclusivePrice * float64(e.Quantity)
	}
	return total
}

// TotalFinancingCost returns the total cost of financing: loan interest,
// mortgage registration, commitment commission and filing fee. A nil
// financing record totals 0.
func TotalFinancingCost(f *models.Financing) float64 {
	if f == nil {
		return 0
	}
	return f.LoanInterest + f.MortgageAmount + f.CommitmentCommission + f.FilingFee
}

// TotalCost is the full project cost: purchase + expenditures + financing.
func TotalCost(p *models.Purchase, exps []models.Expenditure, f *models.Financing) float64 {
	return TotalPurchaseCost(p) + TotalExpenditures(exps) + TotalFinancingCost(f)
}
