package models

// Financing holds the loan side of a simulation.
// DownPaymentRate, LoanPrincipal, LoanInterest, CommitmentCommission and
// MortgageAmount are derived against the financing base (purchase total plus
// expenditure total); see engine.NormalizeFinancing.
type Financing struct {
	DownPayment     float64 `bson:"down_payment" json:"down_payment"`
	DownPaymentRate float64 `bson:"down_payment_rate" json:"down_payment_rate"`
	LoanPrincipal   float64 `bson:"loan_principal" json:"loan_principal"`

	InterestRate       float64 `bson:"interest_rate" json:"interest_rate"`
	LoanDurationMonths int     `bson:"loan_duration_months" json:"loan_duration_months"`
	LoanInterest       float64 `bson:"loan_interest" json:"loan_interest"`

	CommitmentRate           float64 `bson:"commitment_rate" json:"commitment_rate"`
	CommitmentDurationMonths int     `bson:"commitment_duration_months" json:"commitment_duration_months"`
	CommitmentCommission     float64 `bson:"commitment_commission" json:"commitment_commission"`

	MortgageRate   float64 `bson:"mortgage_rate" json:"mortgage_rate"`
	MortgageAmount float64 `bson:"mortgage_amount" json:"mortgage_amount"`

	FilingFee float64 `bson:"filing_fee" json:"filing_fee"`
}
