package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// OptionIDs holds the selected option ids of one customization.
// A radio selection is a single element. JSON accepts a bare string too.
type OptionIDs []string

func (o *OptionIDs) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*o = OptionIDs{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*o = OptionIDs(many)
	return nil
}

// Selections maps Customization.ID to the chosen option ids.
type Selections map[string]OptionIDs

type CartLineItem struct {
	ID                  string     `json:"id"`
	MenuItem            MenuItem   `json:"menuItem"`
	Quantity            int        `json:"quantity"`
	Customizations      Selections `json:"customizations"`
	SpecialInstructions string     `json:"specialInstructions,omitempty"`
}

type Cart struct {
	Items []CartLineItem `json:"items"`
}

// PricingBreakdown is derived from a cart on demand and never stored with it.
type PricingBreakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}
