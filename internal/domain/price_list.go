package domain

import "github.com/google/uuid"

// PriceListEntry is one row of the price list snapshot. All match keys are
// optional; NormalPrice is the only field guaranteed to be present.
type PriceListEntry struct {
	SerialNumber        string   `json:"serialNumber,omitempty"`
	ItemCode            string   `json:"itemCode,omitempty"`
	Group               string   `json:"group,omitempty"`
	Family              string   `json:"family,omitempty"`
	MaterialDescription string   `json:"materialDescription,omitempty"`
	PatternCode         string   `json:"patternCode,omitempty"`
	NormalPrice         float64  `json:"normalPrice"`
	SpecialPrice        *float64 `json:"specialPrice,omitempty"`
}

// EffectivePrice applies the row-level rule: a non-null special price always
// wins over the normal price.
func (e PriceListEntry) EffectivePrice() float64 {
	if e.SpecialPrice != nil {
		return *e.SpecialPrice
	}
	return e.NormalPrice
}

// PriceContext carries the sale attributes used to match a price.
type PriceContext struct {
	SerialNumber        string `json:"serialNumber,omitempty"`
	ItemCode            string `json:"itemCode,omitempty"`
	Group               string `json:"group,omitempty"`
	Family              string `json:"family,omitempty"`
	MaterialDescription string `json:"materialDescription,omitempty"`
	PatternCode         string `json:"patternCode,omitempty"`
}

// PriceSource identifies which cascade tier resolved the price.
type PriceSource string

const (
	PriceSourceSerial   PriceSource = "serial"
	PriceSourceItem     PriceSource = "item"
	PriceSourceBest     PriceSource = "best"
	PriceSourceGeneric  PriceSource = "generic"
	PriceSourceNotFound PriceSource = "not_found"
)

// PriceQuote is the outcome of a price resolution plus discount application.
type PriceQuote struct {
	NormalPrice    float64     `json:"normalPrice"`
	UnitPrice      float64     `json:"unitPrice"`
	DiscountAmount float64     `json:"discountAmount"`
	FinalPrice     float64     `json:"finalPrice"`
	Source         PriceSource `json:"source"`
}

// Discount is a named reduction applied after price resolution. Exactly one
// of Percent or Amount is set.
type Discount struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Percent *float64  `json:"percent,omitempty"`
	Amount  *float64  `json:"amount,omitempty"`
}
