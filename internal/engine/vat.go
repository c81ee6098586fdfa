package engine

import (
	"github.com/lepss/rent-simulator/internal/models"
)

// CollectedVAT sums the VAT collected on all lot sales.
func CollectedVAT(lots []models.Lot) float64 {
	var total float64
	for _, lot := range lots {
		total += lot.VAT
	}
	return total
}

// DeductibleVATByLot apportions each expenditure's VAT across the lots it
// references, proportionally to the lots' weightings (not an equal split: an
// equal split would ignore relative lot value). Rules:
//
//   - expenditures with zero VAT or no lot references contribute nothing;
//   - references to lot IDs absent from the current lot list are ignored;
//   - if the referenced lots' weightings sum to zero the expenditure's
//     contribution is skipped entirely (no division by zero).
func DeductibleVATByLot(exps []models.Expenditure, lots []models.Lot) map[int]float64 {
	byID := make(map[int]models.Lot, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}

	deductible := make(map[int]float64)
	for _, e := range exps {
		if e.VAT == 0 || len(e.LotIDs) == 0 {
			continue
		}

		var matched []models.Lot
		var totalWeighting float64
		for _, id := range e.LotIDs {
			lot, ok := byID[id]
			if !ok {
				continue // stale reference
			}
			matched = append(matched, lot)
			totalWeighting += lot.Weighting
		}
		if totalWeighting == 0 {
			continue
		}

		for _, lot := range matched {
			deductible[lot.ID] += (lot.Weighting / totalWeighting) * e.VAT
		}
	}
	return deductible
}

// NetVATByLot returns each lot's VAT due after offsetting its deductible
// share, floored at 0: a lot's deductible VAT can never drive its net VAT
// negative, and the excess is neither refunded nor carried to other lots.
func NetVATByLot(lots []models.Lot, deductible map[int]float64) map[int]float64 {
	net := make(map[int]float64, len(lots))
	for _, lot := range lots {
		n := lot.VAT - deductible[lot.ID]
		if n < 0 {
			n = 0
		}
		net[lot.ID] = n
	}
	return net
}

// TotalVAT is the VAT due on the whole operation: the sum of per-lot net VAT.
func TotalVAT(lots []models.Lot, exps []models.Expenditure) float64 {
	net := NetVATByLot(lots, DeductibleVATByLot(exps, lots))
	var total float64
	for _, v := range net {
		total += v
	}
	if total < 0 {
		total = 0
	}
	return total
}
