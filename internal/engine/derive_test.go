package engine

import (
	"testing"

	"github.com/lepss/rent-simulator/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAgencyInclusivePrice(t *testing.T) {
	assert.Equal(t, 105000.0, AgencyInclusivePrice(100000, 5000, models.ChargedToBuyer))
	assert.Equal(t, 100000.0, AgencyInclusivePrice(100000, 5000, models.ChargedToSeller))
}

func TestAcquisitionFeeRateSync(t *testing.T) {
	assert.Equal(t, 3150.0, AcquisitionFeeFromRate(105000, 3))
	assert.Equal(t, 3.0, AcquisitionRateFromFee(105000, 3150))

	// Zero FAI cannot produce a rate.
	assert.Equal(t, 0.0, AcquisitionRateFromFee(0, 3150))
}

func TestNormalizePurchase(t *testing.T) {
	// Fee drives rate when both could apply.
	p := NormalizePurchase(&models.Purchase{
		NetSellerPrice: 100000,
		AgencyFee:      5000,
		ChargedTo:      models.ChargedToBuyer,
		AcquisitionFee: 5250,
	}, 3)
	assert.Equal(t, 105000.0, p.AgencyInclusivePrice)
	assert.Equal(t, 5.0, p.AcquisitionRate)

	// Rate drives fee when no fee entered.
	p = NormalizePurchase(&models.Purchase{
		NetSellerPrice:  200000,
		ChargedTo:       models.ChargedToSeller,
		AcquisitionRate: 2,
	}, 3)
	assert.Equal(t, 200000.0, p.AgencyInclusivePrice)
	assert.Equal(t, 4000.0, p.AcquisitionFee)

	// Neither entered: the default rate applies.
	p = NormalizePurchase(&models.Purchase{NetSellerPrice: 100000}, 3)
	assert.Equal(t, 3.0, p.AcquisitionRate)
	assert.Equal(t, 3000.0, p.AcquisitionFee)

	assert.Nil(t, NormalizePurchase(nil, 3))
}

func TestNormalizePurchase_DoesNotMutateInput(t *testing.T) {
	in := &models.Purchase{NetSellerPrice: 100000, AgencyFee: 5000, ChargedTo: models.ChargedToBuyer}
	_ = NormalizePurchase(in, 3)
	assert.Equal(t, 0.0, in.AgencyInclusivePrice)
}

func TestLotVAT(t *testing.T) {
	purchase := &models.Purchase{NetSellerPrice: 100000}

	assert.Equal(t, 0.0, LotVAT(models.Lot{Regime: models.VATExempt, SalePrice: 120000}, purchase, 20))

	// Integral: VAT = price - price/(1+20%) = 20000 on 120000.
	integral := LotVAT(models.Lot{Regime: models.VATIntegral, SalePrice: 120000}, purchase, 20)
	assert.InDelta(t, 20000.0, integral, 1e-9)

	// Margin: m = 120000 - 100000*50/100 = 70000; VAT = m - m/1.2.
	margin := LotVAT(models.Lot{Regime: models.VATMargin, SalePrice: 120000, Weighting: 50}, purchase, 20)
	assert.InDelta(t, 70000.0-70000.0/1.2, margin, 1e-9)

	// Margin regime without a purchase yields no VAT yet.
	assert.Equal(t, 0.0, LotVAT(models.Lot{Regime: models.VATMargin, SalePrice: 120000, Weighting: 50}, nil, 20))
}

func TestNormalizeLots(t *testing.T) {
	lots := NormalizeLots([]models.Lot{
		{ID: 9, Name: "T2", SalePrice: 80000, Surface: 50, Regime: models.VATExempt},
		{ID: 4, Name: "T3", SalePrice: 90000, Surface: 0, Regime: models.VATExempt},
	}, nil, 20)

	// IDs reassigned to list position.
	assert.Equal(t, 0, lots[0].ID)
	assert.Equal(t, 1, lots[1].ID)

	assert.Equal(t, 1600.0, lots[0].PricePerArea)
	// Zero surface leaves price-per-area unset.
	assert.Equal(t, 0.0, lots[1].PricePerArea)
}

func TestExpenditureBreakdown(t *testing.T) {
	ht, vat := ExpenditureBreakdown(2400, 20)
	assert.Equal(t, 2000.0, ht)
	assert.Equal(t, 400.0, vat)

	// No rate: the entered price stands, no VAT.
	ht, vat = ExpenditureBreakdown(2400, 0)
	assert.Equal(t, 2400.0, ht)
	assert.Equal(t, 0.0, vat)

	// Rounded to cents.
	ht, vat = ExpenditureBreakdown(100, 20)
	assert.Equal(t, 83.33, ht)
	assert.Equal(t, 16.67, vat)
}

func TestNormalizeExpenditures_PrunesStaleLotReferences(t *testing.T) {
	lots := []models.Lot{{ID: 0}, {ID: 1}}
	exps := NormalizeExpenditures([]models.Expenditure{
		{Name: "Travaux", TaxInclusivePrice: 2400, VATRate: 20, Quantity: 2, LotIDs: []int{0, 1, 5}},
	}, lots)

	assert.Equal(t, []int{0, 1}, exps[0].LotIDs)
	assert.Equal(t, 2000.0, exps[0].TaxExclusivePrice)
	assert.Equal(t, 400.0, exps[0].VAT)
}

func TestNormalizeExpenditures_CollapsesDuplicateLotReferences(t *testing.T) {
	lots := []models.Lot{{ID: 0, Weighting: 25}, {ID: 1, Weighting: 75}}
	exps := NormalizeExpenditures([]models.Expenditure{
		{Name: "Toiture", TaxInclusivePrice: 2400, VATRate: 20, Quantity: 1, LotIDs: []int{0, 0, 1}},
	}, lots)

	assert.Equal(t, []int{0, 1}, exps[0].LotIDs)

	// With the duplicate collapsed, apportionment follows 25/75, not 125/175.
	deductible := DeductibleVATByLot(exps, lots)
	assert.Equal(t, 100.0, deductible[0])
	assert.Equal(t, 300.0, deductible[1])
}

func TestNormalizeFinancing(t *testing.T) {
	// base 118000, down payment 18000 -> principal 100000.
	f := NormalizeFinancing(&models.Financing{
		DownPayment:              18000,
		InterestRate:             2,
		LoanDurationMonths:       18,
		CommitmentRate:           1,
		CommitmentDurationMonths: 18,
		MortgageRate:             1.5,
		FilingFee:                200,
	}, 118000)

	assert.Equal(t, 100000.0, f.LoanPrincipal)
	assert.InDelta(t, 15.25, f.DownPaymentRate, 1e-9)
	// 100000 * 2% * 18/12 = 3000
	assert.Equal(t, 3000.0, f.LoanInterest)
	// 100000 * 1% * 18/12 = 1500
	assert.Equal(t, 1500.0, f.CommitmentCommission)
	// 100000 * 1.5% = 1500
	assert.Equal(t, 1500.0, f.MortgageAmount)

	assert.Nil(t, NormalizeFinancing(nil, 118000))
}

func TestNormalizeFinancing_DegenerateInputs(t *testing.T) {
	// Zero base: no rate, negative principal, all derived amounts collapse to 0.
	f := NormalizeFinancing(&models.Financing{
		DownPayment:        5000,
		InterestRate:       2,
		LoanDurationMonths: 12,
		MortgageRate:       1,
	}, 0)

	assert.Equal(t, 0.0, f.DownPaymentRate)
	assert.Equal(t, -5000.0, f.LoanPrincipal)
	assert.Equal(t, 0.0, f.LoanInterest)
	assert.Equal(t, 0.0, f.MortgageAmount)

	// Missing duration: interest not derivable.
	f = NormalizeFinancing(&models.Financing{InterestRate: 2}, 100000)
	assert.Equal(t, 0.0, f.LoanInterest)
}
