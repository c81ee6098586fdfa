package engine

import (
	"github.com/lepss/rent-simulator/internal/models"
)

// Derivation of the dependent fields inside each record. The interactive
// client tracks which of two linked fields (amount vs rate) the user edited
// last; the engine does not: Normalize* take the driving fields as resolved
// and recompute everything downstream. None of these functions mutate their
// input; they return adjusted copies.

// AgencyInclusivePrice is the purchase price including the agency fee when
// the buyer bears it, the bare net seller price otherwise.
func AgencyInclusivePrice(netSellerPrice, agencyFee float64, chargedTo models.ChargedTo) float64 {
	if chargedTo == models.ChargedToBuyer {
		return netSellerPrice + agencyFee
	}
	return netSellerPrice
}

// AcquisitionFeeFromRate converts an acquisition rate into a fee amount
// relative to the agency-inclusive price, rounded to whole units.
func AcquisitionFeeFromRate(agencyInclusivePrice, rate float64) float64 {
	return RoundWhole(agencyInclusivePrice * rate / 100)
}

// AcquisitionRateFromFee converts a fee amount back into its equivalent rate.
// A zero agency-inclusive price yields rate 0.
func AcquisitionRateFromFee(agencyInclusivePrice, fee float64) float64 {
	if agencyInclusivePrice == 0 {
		return 0
	}
	return Round2(fee / agencyInclusivePrice * 100)
}

// NormalizePurchase recomputes the derived purchase fields. The
// agency-inclusive price is always recomputed from its dependents. When the
// fee amount is set it drives the rate; otherwise a nonzero rate drives the
// fee. defaultRate applies when neither is set.
func NormalizePurchase(p *models.Purchase, defaultRate float64) *models.Purchase {
	if p == nil {
		return nil
	}
	out := *p
	out.AgencyInclusivePrice = AgencyInclusivePrice(out.NetSellerPrice, out.AgencyFee, out.ChargedTo)

	switch {
	case out.AcquisitionFee != 0:
		out.AcquisitionRate = AcquisitionRateFromFee(out.AgencyInclusivePrice, out.AcquisitionFee)
	case out.AcquisitionRate != 0:
		out.AcquisitionFee = AcquisitionFeeFromRate(out.AgencyInclusivePrice, out.AcquisitionRate)
	default:
		out.AcquisitionRate = defaultRate
		out.AcquisitionFee = AcquisitionFeeFromRate(out.AgencyInclusivePrice, defaultRate)
	}
	return &out
}

// LotVAT computes the VAT collected on a lot's sale under its regime.
// standardRate is a percentage (e.g. 20). The margin regime needs the
// purchase's net seller price; while the purchase is absent its VAT is 0.
func LotVAT(lot models.Lot, purchase *models.Purchase, standardRate float64) float64 {
	switch lot.Regime {
	case models.VATIntegral:
		return lot.SalePrice - lot.SalePrice/(1+standardRate/100)
	case models.VATMargin:
		if purchase == nil || purchase.NetSellerPrice == 0 {
			return 0
		}
		margin := lot.SalePrice - purchase.NetSellerPrice*lot.Weighting/100
		return margin - margin/(1+standardRate/100)
	default: // exempt
		return 0
	}
}

// NormalizeLots reassigns lot IDs to their list position and recomputes the
// derived per-lot fields (price per area, VAT).
func NormalizeLots(lots []models.Lot, purchase *models.Purchase, standardRate float64) []models.Lot {
	out := make([]models.Lot, len(lots))
	for i, lot := range lots {
		lot.ID = i
		if lot.Surface > 0 {
			lot.PricePerArea = Round2(lot.SalePrice / lot.Surface)
		} else {
			lot.PricePerArea = 0
		}
		lot.VAT = LotVAT(lot, purchase, standardRate)
		out[i] = lot
	}
	return out
}

// ExpenditureBreakdown splits a tax-inclusive price into its tax-exclusive
// part and VAT. A zero or negative rate means no VAT: the entered price
// stands as-is.
func ExpenditureBreakdown(taxInclusivePrice, vatRate float64) (taxExclusive, vat float64) {
	if vatRate <= 0 {
		return taxInclusivePrice, 0
	}
	taxExclusive = Round2(taxInclusivePrice / (1 + vatRate/100))
	vat = Round2(taxInclusivePrice - taxExclusive)
	return taxExclusive, vat
}

// NormalizeExpenditures reassigns IDs, recomputes the HT/VAT split and prunes
// lot references that no longer resolve against the given lot list. Lot
// references are a set: duplicates are collapsed so a repeated ID cannot
// double-count its lot's weighting in the VAT apportionment.
func NormalizeExpenditures(exps []models.Expenditure, lots []models.Lot) []models.Expenditure {
	valid := make(map[int]bool, len(lots))
	for _, lot := range lots {
		valid[lot.ID] = true
	}

	out := make([]models.Expenditure, len(exps))
	for i, e := range exps {
		e.ID = i
		e.TaxExclusivePrice, e.VAT = ExpenditureBreakdown(e.TaxInclusivePrice, e.VATRate)

		kept := make([]int, 0, len(e.LotIDs))
		seen := make(map[int]bool, len(e.LotIDs))
		for _, id := range e.LotIDs {
			if valid[id] && !seen[id] {
				seen[id] = true
				kept = append(kept, id)
			}
		}
		e.LotIDs = kept
		out[i] = e
	}
	return out
}

// NormalizeFinancing recomputes the derived financing fields against the
// financing base (purchase total + expenditure total). The down payment
// amount drives its equivalent rate. Derived amounts collapse to 0 whenever
// their preconditions (positive principal, rate, duration) do not hold.
func NormalizeFinancing(f *models.Financing, base float64) *models.Financing {
	if f == nil {
		return nil
	}
	out := *f

	if base > 0 {
		out.DownPaymentRate = Round2(out.DownPayment / base * 100)
	} else {
		out.DownPaymentRate = 0
	}

	out.LoanPrincipal = base - out.DownPayment

	out.LoanInterest = periodicCost(out.LoanPrincipal, out.InterestRate, out.LoanDurationMonths)
	out.CommitmentCommission = periodicCost(out.LoanPrincipal, out.CommitmentRate, out.CommitmentDurationMonths)

	if out.LoanPrincipal > 0 && out.MortgageRate > 0 {
		out.MortgageAmount = RoundWhole(out.LoanPrincipal * out.MortgageRate / 100)
	} else {
		out.MortgageAmount = 0
	}

	return &out
}

// periodicCost is the simple-interest style cost used for both the loan
// interest and the commitment commission: principal x rate/100 x months/12.
func periodicCost(principal, rate float64, months int) float64 {
	if principal <= 0 || rate <= 0 || months <= 0 {
		return 0
	}
	return RoundWhole(principal * (rate / 100) * (float64(months) / 12))
}
