package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"food-storefront/models"
	"food-storefront/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Deps are the storefront services the bot drives.
type Deps struct {
	Catalog  services.Catalog
	Carts    services.CartStorage
	Orders   services.OrderRepository
	Checkout *services.CheckoutService
	Auth     *services.AuthService
	Links    services.CustomerLinks
	Rules    services.PricingRules
	// CartLocks is shared with the HTTP API; created when nil.
	CartLocks *services.CartLocks
}

type Bot struct {
	api  *tgbotapi.BotAPI
	deps Deps

	filters   map[int64]*menuState
	filtersMu sync.RWMutex

	drafts   map[int64]*itemDraft
	draftsMu sync.Mutex

	checkouts   map[int64]*checkoutState
	checkoutsMu sync.Mutex
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(api, deps), nil
}

func newBot(api *tgbotapi.BotAPI, deps Deps) *Bot {
	if deps.CartLocks == nil {
		deps.CartLocks = services.NewCartLocks()
	}
	return &Bot{
		api:       api,
		deps:      deps,
		filters:   make(map[int64]*menuState),
		drafts:    make(map[int64]*itemDraft),
		checkouts: make(map[int64]*checkoutState),
	}
}

// cardMarkup converts CardContent.Buttons to Telegram inline keyboard (URL vs callback).
func cardMarkup(c services.CardContent) *tgbotapi.InlineKeyboardMarkup {
	if len(c.Buttons) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range c.Buttons {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.CallbackData))
			}
		}
		rows = append(rows, btns)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func (b *Bot) setBotCommands() error {
	cfg := tgbotapi.SetMyCommandsConfig{
		Commands: []tgbotapi.BotCommand{
			{Command: "start", Description: "Home"},
			{Command: "menu", Description: "Browse the menu"},
			{Command: "cart", Description: "Your cart"},
			{Command: "orders", Description: "Order history"},
			{Command: "login", Description: "Sign in: /login email password"},
			{Command: "signup", Description: "Create account: /signup name email password"},
			{Command: "logout", Description: "Sign out"},
		},
	}
	_, err := b.api.Request(cfg)
	return err
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	// Register bot command menu (Telegram client shows these in the input menu)
	if err := b.setBotCommands(); err != nil {
		log.Printf("set bot commands: %v", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if msg.Contact != nil {
		b.handleCheckoutContact(ctx, chatID, userID, msg.Contact.PhoneNumber)
		return
	}

	cmd, args := splitCommand(text)
	switch cmd {
	case "/start":
		b.handleStart(ctx, chatID, userID, msg.From.FirstName)
	case "/menu":
		b.sendMenu(ctx, chatID, userID, 0)
	case "/cart":
		b.sendCart(ctx, chatID, userID, 0)
	case "/orders":
		b.handleOrders(ctx, chatID, userID)
	case "/login":
		b.deleteMessage(chatID, msg.MessageID)
		go b.handleLogin(ctx, chatID, userID, args)
	case "/signup":
		b.deleteMessage(chatID, msg.MessageID)
		go b.handleSignup(ctx, chatID, userID, args)
	case "/logout":
		b.handleLogout(ctx, chatID, userID)
	case "/cancel":
		b.cancelCheckout(chatID, userID)
	case "":
		if b.handleCheckoutText(ctx, chatID, userID, text) {
			return
		}
		if b.handleNoteText(chatID, userID, text) {
			return
		}
		if text == "" {
			return
		}
		// Free text searches the menu by name.
		b.updateFilter(userID, func(f *services.MenuFilter) { f.Search = text })
		b.sendMenu(ctx, chatID, userID, 0)
	default:
		b.send(chatID, "Unknown command. Try /menu, /cart or /orders.")
	}
}

// splitCommand returns ("/cmd", "rest") for a command message and ("", "") otherwise.
// A "@botname" suffix on the command is dropped.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, rest, _ := strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID
	userID := cq.From.ID
	data := cq.Data

	b.api.Request(tgbotapi.NewCallback(cq.ID, ""))

	switch {
	case data == "menu":
		b.sendMenu(ctx, chatID, userID, 0)
	case data == "cart":
		b.sendCart(ctx, chatID, userID, 0)
	case data == "orders":
		b.handleOrders(ctx, chatID, userID)
	case strings.HasPrefix(data, "f:"):
		b.handleFilterCallback(ctx, chatID, msgID, userID, strings.TrimPrefix(data, "f:"))
	case strings.HasPrefix(data, "item:"):
		b.openItem(ctx, chatID, userID, strings.TrimPrefix(data, "item:"))
	case strings.HasPrefix(data, "opt:"):
		b.toggleDraftOption(chatID, msgID, userID, strings.TrimPrefix(data, "opt:"))
	case strings.HasPrefix(data, "dq:"):
		b.changeDraftQty(chatID, msgID, userID, strings.TrimPrefix(data, "dq:"))
	case data == "addcart":
		b.addDraftToCart(ctx, chatID, userID)
	case data == "note":
		b.askNote(chatID, userID)
	case strings.HasPrefix(data, "qty:"):
		lineID, qty, ok := parseQtyData(strings.TrimPrefix(data, "qty:"))
		if !ok {
			return
		}
		b.updateLineQty(ctx, chatID, msgID, userID, lineID, qty)
	case strings.HasPrefix(data, "rm:"):
		b.updateLineQty(ctx, chatID, msgID, userID, strings.TrimPrefix(data, "rm:"), 0)
	case data == "clear_cart":
		b.clearCart(ctx, chatID, msgID, userID)
	case data == "checkout":
		b.startCheckout(ctx, chatID, userID)
	case strings.HasPrefix(data, "co:"):
		b.handleCheckoutCallback(ctx, chatID, userID, strings.TrimPrefix(data, "co:"))
	}
}

// parseQtyData parses "<lineID>:<qty>".
func parseQtyData(s string) (string, int, bool) {
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return "", 0, false
	}
	qty, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return "", 0, false
	}
	return s[:i], qty, true
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, userID int64, firstName string) {
	name := firstName
	if user, ok := b.linkedUser(ctx, userID); ok {
		name = user.Name
	}
	greeting := "👋 Welcome"
	if name != "" {
		greeting += ", " + name
	}
	text := greeting + "!\n\nBrowse the menu, customize your dishes and order for delivery or pickup." +
		"\nSend any text to search the menu by name."
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Menu", "menu"),
			tgbotapi.NewInlineKeyboardButtonData("🛒 Cart", "cart"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📦 My Orders", "orders"),
		),
	)
	b.sendWithInline(chatID, text, kb)
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("send error: %v", err)
	}
}

func (b *Bot) sendWithInline(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("send error: %v", err)
	}
}

func (b *Bot) sendCard(chatID int64, content services.CardContent) {
	msg := tgbotapi.NewMessage(chatID, content.Text)
	if kb := cardMarkup(content); kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("send error: %v", err)
	}
}

// editOrSend edits msgID in place, or sends a new message when msgID is 0 or the edit fails.
func (b *Bot) editOrSend(chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if msgID != 0 {
		var edit tgbotapi.EditMessageTextConfig
		if kb != nil {
			edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, *kb)
		} else {
			edit = tgbotapi.NewEditMessageText(chatID, msgID, text)
		}
		_, err := b.api.Send(edit)
		if err == nil {
			return
		}
		// "message is not modified": nothing to do.
		if strings.Contains(err.Error(), "message is not modified") {
			return
		}
		log.Printf("edit message: %v", err)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("send error: %v", err)
	}
}

func (b *Bot) removeKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("send error: %v", err)
	}
}

func (b *Bot) deleteMessage(chatID int64, msgID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		log.Printf("delete message: %v", err)
	}
}

func (b *Bot) linkedUser(ctx context.Context, userID int64) (*models.User, bool) {
	if b.deps.Links == nil {
		return nil, false
	}
	user, ok, err := b.deps.Links.LinkedUser(ctx, userID)
	if err != nil {
		log.Printf("linked user %d: %v", userID, err)
		return nil, false
	}
	return user, ok
}

// customerID is the owner recorded on orders: the account id when signed in.
func (b *Bot) customerID(ctx context.Context, userID int64) string {
	if user, ok := b.linkedUser(ctx, userID); ok {
		return user.ID
	}
	return guestCartKey(userID)
}

// cartKey is shared with the HTTP API for signed-in users.
func (b *Bot) cartKey(ctx context.Context, userID int64) string {
	if user, ok := b.linkedUser(ctx, userID); ok {
		return "user:" + user.ID
	}
	return guestCartKey(userID)
}

func guestCartKey(userID int64) string {
	return fmt.Sprintf("tg:%d", userID)
}

// lockCart serialises cart edits for one key and returns an unlock function.
func (b *Bot) lockCart(key string) func() {
	return b.deps.CartLocks.Lock(key)
}

// withCart loads the user's cart under its lock.
func (b *Bot) withCart(ctx context.Context, userID int64, fn func(cart *services.CartStore) error) error {
	key := b.cartKey(ctx, userID)
	unlock := b.lockCart(key)
	defer unlock()
	cart, err := services.NewCartStore(ctx, b.deps.Carts, key)
	if err != nil {
		return err
	}
	return fn(cart)
}

// loadCart reads the user's cart under its lock and releases it before returning.
func (b *Bot) loadCart(ctx context.Context, userID int64) (*services.CartStore, error) {
	key := b.cartKey(ctx, userID)
	unlock := b.lockCart(key)
	defer unlock()
	return services.NewCartStore(ctx, b.deps.Carts, key)
}
