package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"food-storefront/models"
	"food-storefront/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

const (
	stepDeliveryType = "delivery_type"
	stepAddress      = "address"
	stepName         = "name"
	stepPhone        = "phone"
	stepPayment      = "payment"
	stepPlacing      = "placing"
)

type checkoutState struct {
	Step  string
	Input models.CheckoutInput
}

func (b *Bot) getCheckout(userID int64) (*checkoutState, bool) {
	b.checkoutsMu.Lock()
	defer b.checkoutsMu.Unlock()
	st, ok := b.checkouts[userID]
	if !ok {
		return nil, false
	}
	cp := *st
	return &cp, true
}

func (b *Bot) setCheckout(userID int64, st *checkoutState) {
	b.checkoutsMu.Lock()
	defer b.checkoutsMu.Unlock()
	if st == nil {
		delete(b.checkouts, userID)
		return
	}
	b.checkouts[userID] = st
}

func (b *Bot) startCheckout(ctx context.Context, chatID int64, userID int64) {
	if st, ok := b.getCheckout(userID); ok && st.Step == stepPlacing {
		b.send(chatID, "⏳ Your payment is still being processed.")
		return
	}
	var totals models.PricingBreakdown
	empty := true
	err := b.withCart(ctx, userID, func(cart *services.CartStore) error {
		empty = cart.Len() == 0
		totals = cart.Totals(b.deps.Rules, models.DeliveryTypeDelivery, decimal.Zero)
		return nil
	})
	if err != nil {
		log.Printf("load cart user=%d: %v", userID, err)
		b.send(chatID, "Could not load your cart. Please try again.")
		return
	}
	if empty {
		b.showCartCard(chatID, 0, nil)
		return
	}

	b.setCheckout(userID, &checkoutState{Step: stepDeliveryType})
	text := "🧾 Checkout\n\n" + services.BuildTotalsText(totals) + "\nHow would you like to receive your order?"
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚚 Delivery", "co:type:"+models.DeliveryTypeDelivery),
			tgbotapi.NewInlineKeyboardButtonData("🏪 Pickup (free)", "co:type:"+models.DeliveryTypePickup),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖ Cancel", "co:cancel")),
	)
	b.sendWithInline(chatID, text, kb)
}

func (b *Bot) handleCheckoutCallback(ctx context.Context, chatID int64, userID int64, data string) {
	kind, value, _ := strings.Cut(data, ":")
	if kind == "cancel" {
		b.cancelCheckout(chatID, userID)
		return
	}
	st, ok := b.getCheckout(userID)
	if !ok {
		b.send(chatID, "This checkout has expired. Open your cart to start again.")
		return
	}

	switch {
	case kind == "type" && st.Step == stepDeliveryType:
		if value != models.DeliveryTypeDelivery && value != models.DeliveryTypePickup {
			return
		}
		st.Input.DeliveryType = value
		if value == models.DeliveryTypeDelivery {
			st.Step = stepAddress
			b.setCheckout(userID, st)
			b.send(chatID, "📍 Send your delivery address as:\nStreet, City, ZIP\n(or Street, Apt, City, ZIP)")
			return
		}
		b.askName(ctx, chatID, userID, st)
	case kind == "pay" && st.Step == stepPayment:
		switch value {
		case models.PaymentCard, models.PaymentUPI, models.PaymentCash:
		default:
			return
		}
		st.Input.PaymentMethod = value
		st.Step = stepPlacing
		b.setCheckout(userID, st)
		b.send(chatID, "⏳ Processing your payment...")
		go b.placeOrder(ctx, chatID, userID, st.Input)
	}
}

// handleCheckoutText consumes a text reply when a checkout step is waiting for one.
func (b *Bot) handleCheckoutText(ctx context.Context, chatID int64, userID int64, text string) bool {
	st, ok := b.getCheckout(userID)
	if !ok || text == "" {
		return false
	}
	switch st.Step {
	case stepAddress:
		addr, err := parseAddress(text)
		if err != nil {
			b.send(chatID, "⚠️ "+err.Error()+"\nFormat: Street, City, ZIP")
			return true
		}
		st.Input.Address = addr
		b.askName(ctx, chatID, userID, st)
		return true
	case stepName:
		st.Input.ContactName = text
		if st.Input.Address != nil && st.Input.Address.Name == "" {
			st.Input.Address.Name = text
		}
		st.Step = stepPhone
		b.setCheckout(userID, st)
		b.requestPhone(chatID)
		return true
	case stepPhone:
		b.handleCheckoutContact(ctx, chatID, userID, text)
		return true
	}
	return false
}

func (b *Bot) askName(ctx context.Context, chatID int64, userID int64, st *checkoutState) {
	if user, ok := b.linkedUser(ctx, userID); ok && user.Name != "" {
		st.Input.ContactName = user.Name
		if st.Input.Address != nil && st.Input.Address.Name == "" {
			st.Input.Address.Name = user.Name
		}
		if user.Phone != "" {
			st.Input.ContactNumber = user.Phone
			b.askPayment(ctx, chatID, userID, st)
			return
		}
		st.Step = stepPhone
		b.setCheckout(userID, st)
		b.requestPhone(chatID)
		return
	}
	st.Step = stepName
	b.setCheckout(userID, st)
	b.send(chatID, "👤 What name should we put on the order?")
}

// requestPhone sends a reply keyboard with a "share contact" button.
func (b *Bot) requestPhone(chatID int64) {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("📱 Share phone number")),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	msg := tgbotapi.NewMessage(chatID, "📞 Share your phone number or type it.")
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("send error: %v", err)
	}
}

func (b *Bot) handleCheckoutContact(ctx context.Context, chatID int64, userID int64, phone string) {
	st, ok := b.getCheckout(userID)
	if !ok || st.Step != stepPhone {
		b.removeKeyboard(chatID, "Add something to your cart first. /menu")
		return
	}
	phone = strings.TrimSpace(phone)
	if !validPhone(phone) {
		b.send(chatID, "⚠️ That doesn't look like a phone number. Please try again.")
		return
	}
	st.Input.ContactNumber = phone
	b.removeKeyboard(chatID, "✅")
	b.askPayment(ctx, chatID, userID, st)
}

func (b *Bot) askPayment(ctx context.Context, chatID int64, userID int64, st *checkoutState) {
	st.Step = stepPayment
	b.setCheckout(userID, st)

	var totals models.PricingBreakdown
	if err := b.withCart(ctx, userID, func(cart *services.CartStore) error {
		totals = cart.Totals(b.deps.Rules, st.Input.DeliveryType, st.Input.Discount)
		return nil
	}); err != nil {
		log.Printf("load cart user=%d: %v", userID, err)
	}
	text := "💳 Payment\n\n" + checkoutSummary(st.Input) + "\n" + services.BuildTotalsText(totals) + "\nChoose a payment method:"
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Card", "co:pay:"+models.PaymentCard),
			tgbotapi.NewInlineKeyboardButtonData("📲 UPI", "co:pay:"+models.PaymentUPI),
			tgbotapi.NewInlineKeyboardButtonData("💵 Cash", "co:pay:"+models.PaymentCash),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖ Cancel", "co:cancel")),
	)
	b.sendWithInline(chatID, text, kb)
}

func checkoutSummary(in models.CheckoutInput) string {
	var b strings.Builder
	if in.DeliveryType == models.DeliveryTypePickup {
		b.WriteString("🏪 Pickup\n")
	} else if in.Address != nil {
		a := in.Address
		b.WriteString("🚚 Delivery to " + a.Line1)
		if a.Line2 != "" {
			b.WriteString(", " + a.Line2)
		}
		fmt.Fprintf(&b, ", %s %s\n", a.City, a.ZipCode)
	}
	fmt.Fprintf(&b, "👤 %s · 📞 %s\n", in.ContactName, in.ContactNumber)
	return b.String()
}

func (b *Bot) placeOrder(ctx context.Context, chatID int64, userID int64, in models.CheckoutInput) {
	defer b.setCheckout(userID, nil)

	in.UserID = b.customerID(ctx, userID)
	var res *services.CheckoutResult
	cart, err := b.loadCart(ctx, userID)
	if err == nil {
		res, err = b.deps.Checkout.PlaceOrder(ctx, cart, in)
	}
	switch {
	case errors.Is(err, services.ErrEmptyCart):
		b.showCartCard(chatID, 0, nil)
		return
	case errors.Is(err, services.ErrInvalidCheckout):
		b.send(chatID, "⚠️ "+err.Error()+"\nPlease start checkout again.")
		return
	case err != nil:
		log.Printf("place order user=%d: %v", userID, err)
		b.sendCard(chatID, services.BuildOrderFailed(nil))
		return
	}
	if !res.Success {
		b.sendCard(chatID, services.BuildOrderFailed(res))
		return
	}
	b.sendCard(chatID, services.BuildOrderConfirmation(res))
}

func (b *Bot) cancelCheckout(chatID int64, userID int64) {
	if st, ok := b.getCheckout(userID); ok && st.Step == stepPlacing {
		b.send(chatID, "⏳ Your payment is already being processed.")
		return
	}
	b.setCheckout(userID, nil)
	msg := tgbotapi.NewMessage(chatID, "Checkout cancelled. Your cart is saved.")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("send error: %v", err)
	}
}

// parseAddress reads "Street, City, ZIP" or "Street, Apt, City, ZIP".
func parseAddress(text string) (*models.Address, error) {
	var parts []string
	for _, p := range strings.Split(text, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 3:
		return &models.Address{Line1: parts[0], City: parts[1], ZipCode: parts[2]}, nil
	case 4:
		return &models.Address{Line1: parts[0], Line2: parts[1], City: parts[2], ZipCode: parts[3]}, nil
	}
	return nil, errors.New("street address, city and ZIP code are required")
}

func validPhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

func (b *Bot) handleOrders(ctx context.Context, chatID int64, userID int64) {
	orders, err := b.deps.Orders.ListOrdersByUser(ctx, b.customerID(ctx, userID))
	if err != nil {
		log.Printf("list orders user=%d: %v", userID, err)
		b.send(chatID, "Could not load your orders. Please try again.")
		return
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📋 Menu", "menu")),
	)
	b.sendWithInline(chatID, services.BuildOrderHistory(orders), kb)
}

// parseLoginArgs reads "email password".
func parseLoginArgs(args string) (email, password string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// parseSignupArgs reads "name... email password"; the name may contain spaces.
func parseSignupArgs(args string) (name, email, password string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return "", "", "", false
	}
	n := len(fields)
	return strings.Join(fields[:n-2], " "), fields[n-2], fields[n-1], true
}

func (b *Bot) handleLogin(ctx context.Context, chatID int64, userID int64, args string) {
	email, password, ok := parseLoginArgs(args)
	if !ok {
		b.send(chatID, "Usage: /login email password")
		return
	}
	user, err := b.deps.Auth.Login(ctx, email, password)
	if err != nil {
		b.send(chatID, "🔒 "+err.Error())
		return
	}
	b.signIn(ctx, chatID, userID, user)
}

func (b *Bot) handleSignup(ctx context.Context, chatID int64, userID int64, args string) {
	name, email, password, ok := parseSignupArgs(args)
	if !ok {
		b.send(chatID, "Usage: /signup name email password")
		return
	}
	user, err := b.deps.Auth.Signup(ctx, name, email, password)
	if err != nil {
		b.send(chatID, "⚠️ "+err.Error())
		return
	}
	b.signIn(ctx, chatID, userID, user)
}

// signIn links the Telegram user to the account and carries the guest cart over.
func (b *Bot) signIn(ctx context.Context, chatID int64, userID int64, user *models.User) {
	if err := b.deps.Links.Link(ctx, userID, user); err != nil {
		log.Printf("link user tg=%d: %v", userID, err)
		b.send(chatID, "Could not sign you in. Please try again.")
		return
	}
	guestKey, userKey := guestCartKey(userID), "user:"+user.ID
	unlockGuest := b.lockCart(guestKey)
	unlockUser := b.lockCart(userKey)
	moved, err := mergeGuestCart(ctx, b.deps.Carts, guestKey, userKey)
	unlockUser()
	unlockGuest()
	if err != nil {
		log.Printf("merge cart tg=%d: %v", userID, err)
	}

	text := fmt.Sprintf("✅ Signed in as %s (%s).", user.Name, user.Email)
	if moved > 0 {
		text += fmt.Sprintf("\n%d cart item(s) moved to your account.", moved)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Menu", "menu"),
			tgbotapi.NewInlineKeyboardButtonData("🛒 Cart", "cart"),
		),
	)
	b.sendWithInline(chatID, text, kb)
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64, userID int64) {
	if _, ok := b.linkedUser(ctx, userID); !ok {
		b.send(chatID, "You are not signed in.")
		return
	}
	b.setCheckout(userID, nil)
	if err := b.deps.Links.Unlink(ctx, userID); err != nil {
		log.Printf("unlink tg=%d: %v", userID, err)
		b.send(chatID, "Could not sign you out. Please try again.")
		return
	}
	b.send(chatID, "👋 Signed out.")
}
