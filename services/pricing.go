package services

import (
	"fmt"
	"strings"

	"food-storefront/models"

	"github.com/shopspring/decimal"
)

// PricingRules are the configurable business rules used for cart totals.
type PricingRules struct {
	TaxRate               decimal.Decimal // 0.08 = 8%
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal // fee waived when subtotal is strictly above
}

func DefaultPricingRules() PricingRules {
	return PricingRules{
		TaxRate:               decimal.RequireFromString("0.08"),
		DeliveryFee:           decimal.RequireFromString("4.99"),
		FreeDeliveryThreshold: decimal.NewFromInt(30),
	}
}

// LineItemPrice is the unit price of a line: base price plus the modifier of every
// selected option. Selections that no longer resolve against the item add nothing.
func LineItemPrice(line models.CartLineItem) decimal.Decimal {
	price := line.MenuItem.Price
	for custID, optionIDs := range line.Customizations {
		c, ok := line.MenuItem.FindCustomization(custID)
		if !ok {
			continue
		}
		for _, optID := range optionIDs {
			if opt, ok := c.FindOption(optID); ok {
				price = price.Add(opt.PriceModifier)
			}
		}
	}
	return price
}

// LineTotal is the line's contribution to the subtotal.
func LineTotal(line models.CartLineItem) decimal.Decimal {
	return LineItemPrice(line).Mul(decimal.NewFromInt(int64(line.Quantity)))
}

func CartSubtotal(lines []models.CartLineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(LineTotal(line))
	}
	return subtotal
}

// CartCount is the badge number: total quantity, not distinct lines.
func CartCount(lines []models.CartLineItem) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}

// DeliveryFeeFor applies the flat fee / free-delivery / pickup rules to a subtotal.
func DeliveryFeeFor(subtotal decimal.Decimal, rules PricingRules, deliveryType string) decimal.Decimal {
	if deliveryType == models.DeliveryTypePickup || subtotal.Sign() <= 0 {
		return decimal.Zero
	}
	if subtotal.GreaterThan(rules.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return rules.DeliveryFee
}

// CartTotals computes the full breakdown from scratch. discount is supplied by the caller.
func CartTotals(lines []models.CartLineItem, rules PricingRules, deliveryType string, discount decimal.Decimal) models.PricingBreakdown {
	subtotal := CartSubtotal(lines)
	tax := subtotal.Mul(rules.TaxRate).Round(2)
	fee := DeliveryFeeFor(subtotal, rules, deliveryType)
	total := subtotal.Add(tax).Add(fee).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return models.PricingBreakdown{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Discount:    discount,
		Total:       total,
	}
}

// AmountToFreeDelivery is how much more must be ordered before the fee is waived.
func AmountToFreeDelivery(subtotal decimal.Decimal, rules PricingRules) decimal.Decimal {
	if subtotal.GreaterThan(rules.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return rules.FreeDeliveryThreshold.Sub(subtotal)
}

// FormatMoney renders an amount as "$12.50".
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// SelectionLabels returns "Size: Large, Extras: Cheese" style labels for a line.
func SelectionLabels(line models.CartLineItem) string {
	var parts []string
	for _, c := range line.MenuItem.Customizations {
		ids, ok := line.Customizations[c.ID]
		if !ok || len(ids) == 0 {
			continue
		}
		var labels []string
		for _, id := range ids {
			if opt, ok := c.FindOption(id); ok {
				labels = append(labels, opt.Label)
			}
		}
		if len(labels) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", c.Name, strings.Join(labels, ", ")))
		}
	}
	return strings.Join(parts, "; ")
}
