// Package engine implements the derived-financials computation for a
// simulation: pure, synchronous functions over read-only snapshots of the
// four input records (purchase, lots, expenditures, financing). Identical
// inputs always yield identical outputs and no input is ever mutated, so
// callers may recompute as often and as concurrently as they like without
// coordination.
//
// Validation is not the engine's job: handlers reject malformed input before
// it gets here, and every function below coalesces missing optional data to 0
// so that partially populated records still produce finite results.
package engine

import (
	"github.com/lepss/rent-simulator/internal/models"
)

// Snapshot is one immutable set of the four input records.
type Snapshot struct {
	Purchase     *models.Purchase
	Lots         []models.Lot
	Expenditures []models.Expenditure
	Financing    *models.Financing
}

// Compute derives the full aggregate snapshot from the inputs in one call.
func Compute(s Snapshot) models.Results {
	deductible := DeductibleVATByLot(s.Expenditures, s.Lots)
	net := NetVATByLot(s.Lots, deductible)

	vatByLot := make([]models.LotVATLine, 0, len(s.Lots))
	var totalVAT float64
	for _, lot := range s.Lots {
		line := models.LotVATLine{
			LotID:      lot.ID,
			Collected:  lot.VAT,
			Deductible: deductible[lot.ID],
			Net:        net[lot.ID],
		}
		totalVAT += line.Net
		vatByLot = append(vatByLot, line)
	}
	if totalVAT < 0 {
		totalVAT = 0
	}

	totalCost := TotalCost(s.Purchase, s.Expenditures, s.Financing)
	totalSales := TotalSales(s.Lots)
	margin := totalSales - totalCost
	vatNetMargin := margin - totalVAT

	profitability := 0.0
	if totalSales > 0 {
		profitability = vatNetMargin / totalSales * 100
	}

	return models.Results{
		TotalPurchaseCost:  TotalPurchaseCost(s.Purchase),
		TotalSales:         totalSales,
		TotalExpenditures:  TotalExpenditures(s.Expenditures),
		TotalFinancingCost: TotalFinancingCost(s.Financing),
		TotalCost:          totalCost,
		CollectedVAT:       CollectedVAT(s.Lots),
		VATByLot:           vatByLot,
		TotalVAT:           totalVAT,
		Margin:             margin,
		VATNetMargin:       vatNetMargin,
		Profitability:      profitability,
	}
}
