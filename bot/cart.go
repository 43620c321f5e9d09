package bot

import (
	"context"
	"log"

	"food-storefront/models"
	"food-storefront/services"
)

// sendCart shows the cart card; msgID != 0 edits that message.
func (b *Bot) sendCart(ctx context.Context, chatID int64, userID int64, msgID int) {
	var lines []models.CartLineItem
	err := b.withCart(ctx, userID, func(cart *services.CartStore) error {
		lines = cart.Items()
		return nil
	})
	if err != nil {
		log.Printf("load cart user=%d: %v", userID, err)
		b.send(chatID, "Could not load your cart. Please try again.")
		return
	}
	b.showCartCard(chatID, msgID, lines)
}

func (b *Bot) showCartCard(chatID int64, msgID int, lines []models.CartLineItem) {
	card := services.BuildCartCard(lines, b.deps.Rules, models.DeliveryTypeDelivery)
	b.editOrSend(chatID, msgID, card.Text, cardMarkup(card))
}

// updateLineQty sets a line's quantity; 0 removes it.
func (b *Bot) updateLineQty(ctx context.Context, chatID int64, msgID int, userID int64, lineID string, qty int) {
	var lines []models.CartLineItem
	err := b.withCart(ctx, userID, func(cart *services.CartStore) error {
		if err := cart.UpdateQuantity(ctx, lineID, qty); err != nil {
			return err
		}
		lines = cart.Items()
		return nil
	})
	if err != nil {
		log.Printf("update cart user=%d line=%s: %v", userID, lineID, err)
		b.send(chatID, "Could not update your cart. Please try again.")
		return
	}
	b.showCartCard(chatID, msgID, lines)
}

func (b *Bot) clearCart(ctx context.Context, chatID int64, msgID int, userID int64) {
	err := b.withCart(ctx, userID, func(cart *services.CartStore) error {
		return cart.Clear(ctx)
	})
	if err != nil {
		log.Printf("clear cart user=%d: %v", userID, err)
		b.send(chatID, "Could not clear your cart. Please try again.")
		return
	}
	b.showCartCard(chatID, msgID, nil)
}

// mergeGuestCart moves the lines of a guest cart into the signed-in cart, keeping
// their order, and empties the guest cart. The account cart is written once, so a
// failed save leaves both carts as they were.
func mergeGuestCart(ctx context.Context, storage services.CartStorage, guestKey, userKey string) (int, error) {
	guest, err := services.NewCartStore(ctx, storage, guestKey)
	if err != nil {
		return 0, err
	}
	if guest.Len() == 0 {
		return 0, nil
	}
	user, err := services.NewCartStore(ctx, storage, userKey)
	if err != nil {
		return 0, err
	}
	lines := guest.Items()
	if err := user.AddLines(ctx, lines); err != nil {
		return 0, err
	}
	return len(lines), guest.Clear(ctx)
}
