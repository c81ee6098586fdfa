package models

// VATRegime selects how the VAT collected on a lot's sale is computed.
type VATRegime string

const (
	// VATExempt collects no VAT on the sale.
	VATExempt VATRegime = "exempt"
	// VATMargin applies VAT to the margin (sale price minus the weighted
	// share of the net seller price) rather than the full sale price.
	VATMargin VATRegime = "margin"
	// VATIntegral applies VAT to the full sale price.
	VATIntegral VATRegime = "integral"
)

// Lot is one individually sellable unit within a simulation.
// ID is the lot's position in the simulation's lot list and is reassigned on
// every write; expenditures reference lots by this ID. PricePerArea and VAT
// are derived fields.
type Lot struct {
	ID           int       `bson:"id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	SalePrice    float64   `bson:"sale_price" json:"sale_price"`
	Surface      float64   `bson:"surface" json:"surface"`
	PricePerArea float64   `bson:"price_per_area" json:"price_per_area"`
	Regime       VATRegime `bson:"vat_regime" json:"vat_regime"`
	// Weighting is a caller-supplied percentage used to apportion shared
	// costs and deductible VAT. Weightings are not required to sum to 100.
	Weighting float64 `bson:"weighting" json:"weighting"`
	VAT       float64 `bson:"vat" json:"vat"`
}
