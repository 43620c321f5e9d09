package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"food-storefront/config"
	"food-storefront/models"
	"food-storefront/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

type adderState struct {
	Step   string // "item_json", "price"
	ItemID string
}

// AdderBot is the admin bot for editing the menu (uses ADMIN_TOKEN). Admins log in with ADMIN_LOGIN.
type AdderBot struct {
	api     *tgbotapi.BotAPI
	login   string
	adminID int64
	catalog services.CatalogEditor

	loggedIn map[int64]bool
	state    map[int64]*adderState
	stateMu  sync.RWMutex
}

func NewAdderBot(cfg *config.Config, catalog services.CatalogEditor) (*AdderBot, error) {
	if cfg.Telegram.AdminToken == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN not set")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.AdminToken)
	if err != nil {
		return nil, err
	}
	return newAdderBot(api, cfg.Telegram.AdminLogin, cfg.Telegram.AdminID, catalog), nil
}

func newAdderBot(api *tgbotapi.BotAPI, login string, adminID int64, catalog services.CatalogEditor) *AdderBot {
	return &AdderBot{
		api:      api,
		login:    login,
		adminID:  adminID,
		catalog:  catalog,
		loggedIn: make(map[int64]bool),
		state:    make(map[int64]*adderState),
	}
}

func (a *AdderBot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			a.handleUpdate(ctx, update)
		}
	}
}

func (a *AdderBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		a.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if text == "/cancel" {
		a.setState(userID, nil)
		a.send(msg.Chat.ID, "Cancelled.")
		a.sendAdminPanel(msg.Chat.ID)
		return
	}
	if text == "/start" {
		if a.isLoggedIn(userID) {
			a.sendAdminPanel(msg.Chat.ID)
		} else {
			a.send(msg.Chat.ID, "🔒 Menu admin. Send your admin password to continue.")
		}
		return
	}

	if !a.isLoggedIn(userID) {
		// Treat message as password attempt
		if a.login != "" && text == a.login && (a.adminID == 0 || userID == a.adminID) {
			a.setLoggedIn(userID)
			a.sendAdminPanel(msg.Chat.ID)
		} else {
			a.send(msg.Chat.ID, "🔒 Send your admin password to access the panel.")
		}
		return
	}

	if a.handleEditFlow(ctx, msg.Chat.ID, userID, text) {
		return
	}
	a.sendAdminPanel(msg.Chat.ID)
}

func (a *AdderBot) isLoggedIn(userID int64) bool {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.loggedIn[userID]
}

func (a *AdderBot) setLoggedIn(userID int64) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggedIn[userID] = true
}

func (a *AdderBot) getState(userID int64) *adderState {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state[userID]
}

func (a *AdderBot) setState(userID int64, st *adderState) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if st == nil {
		delete(a.state, userID)
		return
	}
	a.state[userID] = st
}

func (a *AdderBot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := a.api.Send(msg); err != nil {
		log.Printf("adder send error: %v", err)
	}
}

func (a *AdderBot) sendWithInline(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := a.api.Send(msg); err != nil {
		log.Printf("adder send error: %v", err)
	}
}

func adminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add / Update Item", "adder:add"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 List / Edit Items", "adder:list"),
		),
	)
}

func (a *AdderBot) sendAdminPanel(chatID int64) {
	a.sendWithInline(chatID, "📋 Menu admin\n\nChoose an action below:", adminKeyboard())
}

func (a *AdderBot) sendList(ctx context.Context, chatID int64) {
	items, err := a.catalog.ListMenu(ctx)
	if err != nil {
		a.send(chatID, "Failed to load list: "+err.Error())
		return
	}
	if len(items) == 0 {
		a.sendWithInline(chatID, "The menu is empty.", adminKeyboard())
		return
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	text := "📋 Menu — tap an item to change its price or delete it:\n\n"
	for _, item := range items {
		text += fmt.Sprintf("• %s [%s] — %s\n", item.Name, item.Category, services.FormatMoney(item.Price))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💲 "+item.Name, "adder:price:"+item.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", "adder:del:"+item.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back to panel", "adder:back"),
	))
	a.sendWithInline(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (a *AdderBot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	userID := cq.From.ID
	data := cq.Data

	a.api.Request(tgbotapi.NewCallback(cq.ID, ""))

	if !a.isLoggedIn(userID) {
		return
	}

	switch {
	case data == "adder:back":
		a.setState(userID, nil)
		a.sendAdminPanel(chatID)
	case data == "adder:list":
		a.sendList(ctx, chatID)
	case data == "adder:add":
		a.setState(userID, &adderState{Step: "item_json"})
		a.send(chatID, "Send the item as JSON, e.g.\n"+
			`{"name": "Veg Pakora", "price": 6.49, "category": "Starters", "subcategory": "Fried", "spiceLevel": "mild", "dietaryTags": ["Vegetarian"]}`+
			"\nAn existing id replaces that item. Cancel: /cancel")
	case strings.HasPrefix(data, "adder:price:"):
		id := strings.TrimPrefix(data, "adder:price:")
		a.setState(userID, &adderState{Step: "price", ItemID: id})
		a.send(chatID, "Send the new price (e.g. 12.99). Cancel: /cancel")
	case strings.HasPrefix(data, "adder:del:"):
		id := strings.TrimPrefix(data, "adder:del:")
		kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes, delete", "adder:delok:"+id),
			tgbotapi.NewInlineKeyboardButtonData("✖ No", "adder:list"),
		))
		a.sendWithInline(chatID, fmt.Sprintf("Delete %q from the menu?", id), kb)
	case strings.HasPrefix(data, "adder:delok:"):
		id := strings.TrimPrefix(data, "adder:delok:")
		if err := a.catalog.DeleteMenuItem(ctx, id); err != nil {
			a.send(chatID, "Delete failed: "+err.Error())
			return
		}
		a.send(chatID, "🗑 Deleted.")
		a.sendList(ctx, chatID)
	}
}

// handleEditFlow consumes the reply to an add/price prompt. Returns false if no flow is active.
func (a *AdderBot) handleEditFlow(ctx context.Context, chatID int64, userID int64, text string) bool {
	st := a.getState(userID)
	if st == nil {
		return false
	}
	switch st.Step {
	case "item_json":
		item, err := parseMenuItemJSON(text)
		if err != nil {
			a.send(chatID, "⚠️ "+err.Error()+"\nFix it and send again, or /cancel")
			return true
		}
		if err := a.catalog.SaveMenuItem(ctx, item); err != nil {
			a.send(chatID, "Save failed: "+err.Error())
			return true
		}
		a.setState(userID, nil)
		a.send(chatID, fmt.Sprintf("✅ Saved %s (%s) — %s", item.Name, item.ID, services.FormatMoney(item.Price)))
		a.sendAdminPanel(chatID)
	case "price":
		price, err := decimal.NewFromString(strings.TrimPrefix(text, "$"))
		if err != nil || price.IsNegative() {
			a.send(chatID, "⚠️ Send a price like 12.99")
			return true
		}
		item, err := services.GetMenuItem(ctx, a.catalog, st.ItemID)
		if err != nil {
			a.setState(userID, nil)
			a.send(chatID, "Item not found: "+st.ItemID)
			return true
		}
		item.Price = price.Round(2)
		if err := a.catalog.SaveMenuItem(ctx, *item); err != nil {
			a.send(chatID, "Save failed: "+err.Error())
			return true
		}
		a.setState(userID, nil)
		a.send(chatID, fmt.Sprintf("✅ %s now costs %s", item.Name, services.FormatMoney(item.Price)))
		a.sendList(ctx, chatID)
	default:
		a.setState(userID, nil)
		return false
	}
	return true
}

// parseMenuItemJSON decodes one item. A missing id is derived from the name;
// missing spice level and rating fall back to mild / 0.
func parseMenuItemJSON(text string) (models.MenuItem, error) {
	var item models.MenuItem
	if err := json.Unmarshal([]byte(text), &item); err != nil {
		return item, fmt.Errorf("invalid JSON: %v", err)
	}
	if item.ID == "" {
		item.ID = slugify(item.Name)
	}
	if item.SpiceLevel == "" {
		item.SpiceLevel = models.SpiceMild
	}
	if err := services.ValidateMenuItem(&item); err != nil {
		return item, err
	}
	return item, nil
}

// slugify turns "Veg Pakora (6 pcs)" into "veg-pakora-6-pcs".
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
