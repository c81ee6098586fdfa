package models

import (
	"time"

	"github.com/lepss/rent-simulator/internal/utils"
)

// Simulation is one acquisition+resale scenario: the four input records plus
// the recomputed aggregate snapshot. Purchase and Financing are nil until the
// client has entered them; the engine treats nil as "not yet entered" and
// contributes 0 for those stages.
type Simulation struct {
	ID      utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID string      `bson:"owner_id" json:"owner_id"`
	Name    string      `bson:"name" json:"name"`

	Purchase     *Purchase     `bson:"purchase,omitempty" json:"purchase,omitempty"`
	Lots         []Lot         `bson:"lots" json:"lots"`
	Expenditures []Expenditure `bson:"expenditures" json:"expenditures"`
	Financing    *Financing    `bson:"financing,omitempty" json:"financing,omitempty"`

	Results Results `bson:"results" json:"results"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	Deleted   bool      `bson:"deleted" json:"-"`
}

// SimulationExport is the flat document handed out by the export endpoint and
// accepted by import. The Results snapshot is included for the consumer's
// convenience; import discards it and recomputes from the raw records.
type SimulationExport struct {
	Name         string        `json:"name"`
	Purchase     *Purchase     `json:"purchase,omitempty"`
	Lots         []Lot         `json:"lots"`
	Expenditures []Expenditure `json:"expenditures"`
	Financing    *Financing    `json:"financing,omitempty"`
	Results      Results       `json:"results"`
}
