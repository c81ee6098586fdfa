package models

// LotVATLine is the per-lot VAT breakdown inside a Results snapshot.
type LotVATLine struct {
	LotID      int     `bson:"lot_id" json:"lot_id"`
	Collected  float64 `bson:"collected" json:"collected"`
	Deductible float64 `bson:"deductible" json:"deductible"`
	// Net is max(0, Collected - Deductible); excess deductible VAT is not
	// carried over to other lots.
	Net float64 `bson:"net" json:"net"`
}

// Results is the fully recomputed aggregate snapshot of a simulation.
// It is derived state: every write recomputes it wholesale from the four
// input records and it is regenerated (never trusted) on import.
type Results struct {
	TotalPurchaseCost  float64 `bson:"total_purchase_cost" json:"total_purchase_cost"`
	TotalSales         float64 `bson:"total_sales" json:"total_sales"`
	TotalExpenditures  float64 `bson:"total_expenditures" json:"total_expenditures"`
	TotalFinancingCost float64 `bson:"total_financing_cost" json:"total_financing_cost"`
	TotalCost          float64 `bson:"total_cost" json:"total_cost"`

	CollectedVAT float64      `bson:"collected_vat" json:"collected_vat"`
	VATByLot     []LotVATLine `bson:"vat_by_lot" json:"vat_by_lot"`
	TotalVAT     float64      `bson:"total_vat" json:"total_vat"`

	// Margin may be negative: a loss is a valid, reportable state.
	Margin        float64 `bson:"margin" json:"margin"`
	VATNetMargin  float64 `bson:"vat_net_margin" json:"vat_net_margin"`
	Profitability float64 `bson:"profitability" json:"profitability"`
}
