package models

// ChargedTo indicates which party bears the agency fee on a purchase.
type ChargedTo string

const (
	ChargedToBuyer  ChargedTo = "buyer"
	ChargedToSeller ChargedTo = "seller"
)

// Purchase holds the acquisition side of a simulation.
// AgencyInclusivePrice, AcquisitionFee and AcquisitionRate are derived fields:
// they are recomputed from the driving fields on every write (see engine.NormalizePurchase)
// and never accepted as independent inputs.
type Purchase struct {
	NetSellerPrice       float64   `bson:"net_seller_price" json:"net_seller_price"`
	AgencyFee            float64   `bson:"agency_fee" json:"agency_fee"`
	ChargedTo            ChargedTo `bson:"charged_to" json:"charged_to"`
	AgencyInclusivePrice float64   `bson:"agency_inclusive_price" json:"agency_inclusive_price"`
	AcquisitionFee       float64   `bson:"acquisition_fee" json:"acquisition_fee"`
	AcquisitionRate      float64   `bson:"acquisition_rate" json:"acquisition_rate"`
	LegalFee             float64   `bson:"legal_fee" json:"legal_fee"`
}
