package models

import "github.com/shopspring/decimal"

type MenuItem struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	OriginalPrice  *decimal.Decimal `json:"originalPrice,omitempty"`
	Image          string           `json:"image"`
	Category       string           `json:"category"`
	Subcategory    string           `json:"subcategory"`
	Rating         float64          `json:"rating"`
	ReviewCount    int              `json:"reviewCount"`
	IsVeg          bool             `json:"isVeg"`
	SpiceLevel     string           `json:"spiceLevel"` // "mild", "medium", "hot", "extra-hot"
	DietaryTags    []string         `json:"dietaryTags"`
	PrepTime       int              `json:"prepTime"` // minutes
	IsPopular      bool             `json:"isPopular,omitempty"`
	Customizations []Customization  `json:"customizations,omitempty"`
}

const (
	SpiceMild     = "mild"
	SpiceMedium   = "medium"
	SpiceHot      = "hot"
	SpiceExtraHot = "extra-hot"
)

const (
	CustomizationRadio    = "radio"
	CustomizationCheckbox = "checkbox"
)

type Customization struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Type     string                `json:"type"`
	Required bool                  `json:"required"`
	Options  []CustomizationOption `json:"options"`
}

type CustomizationOption struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	PriceModifier decimal.Decimal `json:"priceModifier"`
}

// Savings returns OriginalPrice - Price, or zero when there is no markdown.
func (m MenuItem) Savings() decimal.Decimal {
	if m.OriginalPrice == nil || !m.OriginalPrice.GreaterThan(m.Price) {
		return decimal.Zero
	}
	return m.OriginalPrice.Sub(m.Price)
}

func (m MenuItem) HasTag(tag string) bool {
	for _, t := range m.DietaryTags {
		if t == tag {
			return true
		}
	}
	return false
}

// FindCustomization looks up a customization by id.
func (m MenuItem) FindCustomization(id string) (*Customization, bool) {
	for i := range m.Customizations {
		if m.Customizations[i].ID == id {
			return &m.Customizations[i], true
		}
	}
	return nil, false
}

func (c Customization) FindOption(id string) (*CustomizationOption, bool) {
	for i := range c.Options {
		if c.Options[i].ID == id {
			return &c.Options[i], true
		}
	}
	return nil, false
}
