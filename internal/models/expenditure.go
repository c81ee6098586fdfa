package models

// Expenditure is a renovation or operating expense line.
// TaxExclusivePrice and VAT are derived from the tax-inclusive price and the
// VAT rate. LotIDs lists the lots this expense is attributable to; an empty
// list means the expense's VAT is collected in the total but never apportioned
// as deductible VAT.
type Expenditure struct {
	ID                int     `bson:"id" json:"id"`
	Name              string  `bson:"name" json:"name"`
	TaxExclusivePrice float64 `bson:"tax_exclusive_price" json:"tax_exclusive_price"`
	VATRate           float64 `bson:"vat_rate" json:"vat_rate"`
	VAT               float64 `bson:"vat" json:"vat"`
	TaxInclusivePrice float64 `bson:"tax_inclusive_price" json:"tax_inclusive_price"`
	Quantity          int     `bson:"quantity" json:"quantity"`
	LotIDs            []int   `bson:"lots_index" json:"lots_index"`
}
