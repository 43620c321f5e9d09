package services

import (
	"fmt"
	"strconv"
	"strings"

	"food-storefront/models"

	"github.com/shopspring/decimal"
)

// CardButton is one inline button (text + callback_data or url).
type CardButton struct {
	Text         string
	CallbackData string
	URL          string // if set, use as URL button instead of callback
}

// CardContent is the text and optional inline keyboard of a storefront screen.
type CardContent struct {
	Text    string
	Buttons [][]CardButton
}

// BuildCartCard renders the cart page: lines with quantity controls, the pricing
// breakdown and checkout / clear buttons. An empty cart gets a browse button only.
func BuildCartCard(lines []models.CartLineItem, rules PricingRules, deliveryType string) CardContent {
	if len(lines) == 0 {
		return CardContent{
			Text:    "🛒 Your cart is empty\n\nLooks like you haven't added anything yet.",
			Buttons: [][]CardButton{{{Text: "Browse Menu", CallbackData: "menu"}}},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🛒 Cart (%d items)\n\n", CartCount(lines))
	var buttons [][]CardButton
	for i, line := range lines {
		fmt.Fprintf(&b, "%d. %s × %d — %s\n", i+1, line.MenuItem.Name, line.Quantity, FormatMoney(LineTotal(line)))
		fmt.Fprintf(&b, "   %s each\n", FormatMoney(LineItemPrice(line)))
		if labels := SelectionLabels(line); labels != "" {
			fmt.Fprintf(&b, "   %s\n", labels)
		}
		if line.SpecialInstructions != "" {
			fmt.Fprintf(&b, "   Note: %s\n", line.SpecialInstructions)
		}
		buttons = append(buttons, []CardButton{
			{Text: fmt.Sprintf("➖ %d", i+1), CallbackData: "qty:" + line.ID + ":" + strconv.Itoa(line.Quantity-1)},
			{Text: fmt.Sprintf("➕ %d", i+1), CallbackData: "qty:" + line.ID + ":" + strconv.Itoa(line.Quantity+1)},
			{Text: fmt.Sprintf("🗑 %d", i+1), CallbackData: "rm:" + line.ID},
		})
	}

	totals := CartTotals(lines, rules, deliveryType, decimal.Zero)
	b.WriteString("\n" + BuildTotalsText(totals))
	if deliveryType != models.DeliveryTypePickup && !totals.DeliveryFee.IsZero() {
		fmt.Fprintf(&b, "\nAdd %s more for free delivery!", FormatMoney(AmountToFreeDelivery(totals.Subtotal, rules)))
	}

	buttons = append(buttons,
		[]CardButton{{Text: "Proceed to Checkout", CallbackData: "checkout"}},
		[]CardButton{{Text: "Clear Cart", CallbackData: "clear_cart"}, {Text: "Continue Shopping", CallbackData: "menu"}},
	)
	return CardContent{Text: b.String(), Buttons: buttons}
}

// BuildTotalsText renders a pricing breakdown as the order summary block.
func BuildTotalsText(t models.PricingBreakdown) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subtotal: %s\n", FormatMoney(t.Subtotal))
	fmt.Fprintf(&b, "Tax: %s\n", FormatMoney(t.Tax))
	if t.DeliveryFee.IsZero() {
		b.WriteString("Delivery Fee: FREE\n")
	} else {
		fmt.Fprintf(&b, "Delivery Fee: %s\n", FormatMoney(t.DeliveryFee))
	}
	if t.Discount.IsPositive() {
		fmt.Fprintf(&b, "Discount: -%s\n", FormatMoney(t.Discount))
	}
	fmt.Fprintf(&b, "Total: %s\n", FormatMoney(t.Total))
	return b.String()
}

// BuildOrderConfirmation is the success page.
func BuildOrderConfirmation(r *CheckoutResult) CardContent {
	text := "✅ Order Placed Successfully!\nThank you for your order\n\n"
	text += fmt.Sprintf("Order Number: %s\n", r.OrderID)
	text += fmt.Sprintf("Total Amount: %s\n", FormatMoney(r.Totals.Total))
	text += fmt.Sprintf("Estimated Delivery: %s mins", r.EstimatedTime)
	return CardContent{
		Text: text,
		Buttons: [][]CardButton{
			{{Text: "My Orders", CallbackData: "orders"}, {Text: "Continue Shopping", CallbackData: "menu"}},
		},
	}
}

// BuildOrderFailed is the failure page; the cart is kept so the customer can retry.
func BuildOrderFailed(r *CheckoutResult) CardContent {
	text := "❌ Payment Failed\n\nWe couldn't process your payment. Your cart has been saved."
	if r != nil && r.Reason != "" {
		text += "\nReason: " + r.Reason
	}
	return CardContent{
		Text: text,
		Buttons: [][]CardButton{
			{{Text: "Try Again", CallbackData: "checkout"}, {Text: "Back to Cart", CallbackData: "cart"}},
		},
	}
}

// BuildOrderHistory lists a user's past orders, newest first.
func BuildOrderHistory(orders []models.Order) string {
	if len(orders) == 0 {
		return "You haven't placed any orders yet."
	}
	var b strings.Builder
	b.WriteString("📦 Order History\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "\n%s — %s\n", o.ID, OrderStatusLabel(o.Status))
		fmt.Fprintf(&b, "%s · %d items · %s\n", o.CreatedAt.Format("Jan 2, 2006"), CartCount(o.Items), FormatMoney(o.Total))
		if o.DeliveryAddress != nil {
			fmt.Fprintf(&b, "%s, %s %s\n", o.DeliveryAddress.Line1, o.DeliveryAddress.City, o.DeliveryAddress.ZipCode)
		}
	}
	return b.String()
}
