package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"food-storefront/models"
	"food-storefront/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

const menuPageSize = 8

var sortLabels = map[string]string{
	services.SortRecommended: "Recommended",
	services.SortPriceLow:    "Price: Low to High",
	services.SortPriceHigh:   "Price: High to Low",
	services.SortRating:      "Rating",
	services.SortPopularity:  "Popularity",
}

var sortOrder = []string{
	services.SortRecommended, services.SortPriceLow, services.SortPriceHigh,
	services.SortRating, services.SortPopularity,
}

var spiceLevels = []string{
	services.SpiceLevelAll, models.SpiceMild, models.SpiceMedium, models.SpiceHot, models.SpiceExtraHot,
}

// priceCaps are the "up to $N" buttons; 0 turns the price filter off.
var priceCaps = []int64{10, 15, 25, 50, 0}

type menuState struct {
	Filter services.MenuFilter
}

// maxNoteLen caps special instructions, in runes.
const maxNoteLen = 200

// itemDraft is the item detail a user is customizing before adding it to the cart.
type itemDraft struct {
	Item         models.MenuItem
	Selections   models.Selections
	Qty          int
	Instructions string
	AwaitingNote bool
}

func (d *itemDraft) line() models.CartLineItem {
	return models.CartLineItem{MenuItem: d.Item, Quantity: d.Qty, Customizations: d.Selections, SpecialInstructions: d.Instructions}
}

// setNote stores trimmed special instructions; "-" clears them.
func (d *itemDraft) setNote(text string) {
	text = strings.TrimSpace(text)
	if text == "-" {
		text = ""
	}
	if r := []rune(text); len(r) > maxNoteLen {
		text = string(r[:maxNoteLen])
	}
	d.Instructions = text
	d.AwaitingNote = false
}

func (b *Bot) getFilter(userID int64) services.MenuFilter {
	b.filtersMu.RLock()
	st, ok := b.filters[userID]
	b.filtersMu.RUnlock()
	if !ok {
		return services.DefaultMenuFilter()
	}
	return st.Filter
}

func (b *Bot) updateFilter(userID int64, fn func(f *services.MenuFilter)) services.MenuFilter {
	b.filtersMu.Lock()
	defer b.filtersMu.Unlock()
	st, ok := b.filters[userID]
	if !ok {
		st = &menuState{Filter: services.DefaultMenuFilter()}
		b.filters[userID] = st
	}
	fn(&st.Filter)
	return st.Filter
}

// sendMenu shows page 0 of the filtered menu; msgID != 0 edits that message instead.
func (b *Bot) sendMenu(ctx context.Context, chatID int64, userID int64, msgID int) {
	b.sendMenuPage(ctx, chatID, userID, msgID, 0)
}

func (b *Bot) sendMenuPage(ctx context.Context, chatID int64, userID int64, msgID int, page int) {
	items, err := b.deps.Catalog.ListMenu(ctx)
	if err != nil {
		log.Printf("list menu: %v", err)
		b.send(chatID, "Sorry, the menu is unavailable right now.")
		return
	}
	text, kb := menuScreen(items, b.getFilter(userID), page, b.cartCount(ctx, userID))
	b.editOrSend(chatID, msgID, text, &kb)
}

// menuScreen renders one page of the filtered, sorted menu plus the filter controls.
func menuScreen(items []models.MenuItem, f services.MenuFilter, page int, cartCount int) (string, tgbotapi.InlineKeyboardMarkup) {
	result := services.FilterAndSort(items, f)

	var b strings.Builder
	b.WriteString("📋 Menu\n")
	b.WriteString(filterSummary(f))
	fmt.Fprintf(&b, "\n%d items found", len(result))
	if len(result) == 0 {
		b.WriteString("\n\nNo items match your filters. Try adjusting them.")
	}

	pages := (len(result) + menuPageSize - 1) / menuPageSize
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}
	start := page * menuPageSize
	end := start + menuPageSize
	if end > len(result) {
		end = len(result)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range result[start:end] {
		label := fmt.Sprintf("%s — %s", item.Name, services.FormatMoney(item.Price))
		if item.IsVeg {
			label = "🟢 " + label
		}
		if item.IsPopular {
			label += " ⭐"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "item:"+item.ID),
		))
	}
	if pages > 1 {
		var nav []tgbotapi.InlineKeyboardButton
		if page > 0 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀️", "f:page:"+strconv.Itoa(page-1)))
		}
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", page+1, pages), "f:page:"+strconv.Itoa(page)))
		if page < pages-1 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("▶️", "f:page:"+strconv.Itoa(page+1)))
		}
		rows = append(rows, nav)
	}

	filterRow := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📂 Category", "f:cats"),
		tgbotapi.NewInlineKeyboardButtonData("↕️ Sort", "f:sorts"),
	)
	if f.Category != "" && f.Category != services.CategoryAll && len(services.Subcategories(items, f.Category)) > 0 {
		filterRow = append(filterRow, tgbotapi.NewInlineKeyboardButtonData("🏷 Type", "f:subs"))
	}
	rows = append(rows,
		filterRow,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🥗 Dietary", "f:diets"),
			tgbotapi.NewInlineKeyboardButtonData("🌶 Spice", "f:spices"),
			tgbotapi.NewInlineKeyboardButtonData("💲 Price", "f:prices"),
		),
	)
	clearRow := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖ Clear filters", "f:clear"))
	if f.Search != "" {
		clearRow = append(clearRow, tgbotapi.NewInlineKeyboardButtonData("✖ Clear search", "f:nosearch"))
	}
	rows = append(rows, clearRow)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🛒 Cart (%d)", cartCount), "cart"),
	))
	return b.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// filterSummary lists the active filters, one per line.
func filterSummary(f services.MenuFilter) string {
	var lines []string
	if f.Category != "" && f.Category != services.CategoryAll {
		lines = append(lines, "Category: "+f.Category)
	}
	if len(f.Subcategories) > 0 {
		lines = append(lines, "Type: "+strings.Join(f.Subcategories, ", "))
	}
	if len(f.DietaryTags) > 0 {
		lines = append(lines, "Dietary: "+strings.Join(f.DietaryTags, ", "))
	}
	if f.SpiceLevel != "" && f.SpiceLevel != services.SpiceLevelAll {
		lines = append(lines, "Spice: "+f.SpiceLevel)
	}
	if f.PriceRange != nil {
		lines = append(lines, fmt.Sprintf("Price: %s – %s", services.FormatMoney(f.PriceRange.Min), services.FormatMoney(f.PriceRange.Max)))
	}
	if f.Search != "" {
		lines = append(lines, fmt.Sprintf("Search: %q", f.Search))
	}
	if label, ok := sortLabels[f.SortBy]; ok && f.SortBy != services.SortRecommended {
		lines = append(lines, "Sort: "+label)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func (b *Bot) handleFilterCallback(ctx context.Context, chatID int64, msgID int, userID int64, data string) {
	kind, value, _ := strings.Cut(data, ":")
	switch kind {
	case "cats":
		items, err := b.deps.Catalog.ListMenu(ctx)
		if err != nil {
			log.Printf("list menu: %v", err)
			return
		}
		kb := choiceKeyboard(services.Categories(items), b.getFilter(userID).Category, "f:cat:", nil)
		b.editOrSend(chatID, msgID, "📂 Choose a category", &kb)
		return
	case "sorts":
		kb := choiceKeyboard(sortOrder, b.getFilter(userID).SortBy, "f:sort:", sortLabels)
		b.editOrSend(chatID, msgID, "↕️ Sort by", &kb)
		return
	case "spices":
		kb := choiceKeyboard(spiceLevels, b.getFilter(userID).SpiceLevel, "f:spice:", nil)
		b.editOrSend(chatID, msgID, "🌶 Spice level", &kb)
		return
	case "diets":
		kb := toggleKeyboard(services.DietaryFilters, b.getFilter(userID).DietaryTags, "f:diet:")
		b.editOrSend(chatID, msgID, "🥗 Dietary preferences (all selected must match)", &kb)
		return
	case "prices":
		kb := priceKeyboard()
		b.editOrSend(chatID, msgID, "💲 Price range", &kb)
		return
	case "subs", "sub":
		items, err := b.deps.Catalog.ListMenu(ctx)
		if err != nil {
			log.Printf("list menu: %v", err)
			return
		}
		f := b.getFilter(userID)
		if kind == "sub" {
			f = b.updateFilter(userID, func(f *services.MenuFilter) { f.Subcategories = services.ToggleString(f.Subcategories, value) })
		}
		kb := toggleKeyboard(services.Subcategories(items, f.Category), f.Subcategories, "f:sub:")
		b.editOrSend(chatID, msgID, "🏷 "+f.Category+" type (any selected)", &kb)
		return
	case "cat":
		b.updateFilter(userID, func(f *services.MenuFilter) {
			f.Category = value
			f.Subcategories = nil
		})
	case "sort":
		if !services.ValidSortBy(value) {
			return
		}
		b.updateFilter(userID, func(f *services.MenuFilter) { f.SortBy = value })
	case "spice":
		b.updateFilter(userID, func(f *services.MenuFilter) { f.SpiceLevel = value })
	case "diet":
		f := b.updateFilter(userID, func(f *services.MenuFilter) { f.DietaryTags = services.ToggleString(f.DietaryTags, value) })
		kb := toggleKeyboard(services.DietaryFilters, f.DietaryTags, "f:diet:")
		b.editOrSend(chatID, msgID, "🥗 Dietary preferences (all selected must match)", &kb)
		return
	case "max":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return
		}
		b.updateFilter(userID, func(f *services.MenuFilter) {
			if n <= 0 {
				f.PriceRange = nil
				return
			}
			f.PriceRange = &services.PriceRange{Min: decimal.Zero, Max: decimal.NewFromInt(n)}
		})
	case "clear":
		b.updateFilter(userID, func(f *services.MenuFilter) { *f = services.DefaultMenuFilter() })
	case "nosearch":
		b.updateFilter(userID, func(f *services.MenuFilter) { f.Search = "" })
	case "page":
		page, _ := strconv.Atoi(value)
		b.sendMenuPage(ctx, chatID, userID, msgID, page)
		return
	}
	b.sendMenu(ctx, chatID, userID, msgID)
}

// choiceKeyboard is a single-choice list; the current value gets a check mark.
func choiceKeyboard(values []string, current string, prefix string, labels map[string]string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, v := range values {
		label := v
		if l, ok := labels[v]; ok {
			label = l
		}
		if v == current {
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, prefix+v)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "f:back")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// toggleKeyboard is a multi-choice list; selected values get a check mark.
func toggleKeyboard(values []string, selected []string, prefix string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, v := range values {
		label := "◻️ " + v
		for _, s := range selected {
			if s == v {
				label = "✅ " + v
				break
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, prefix+v)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "f:back")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func priceKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, n := range priceCaps {
		label := fmt.Sprintf("≤ $%d", n)
		if n == 0 {
			label = "Any"
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "f:max:"+strconv.FormatInt(n, 10)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "f:back")),
	)
}

func (b *Bot) openItem(ctx context.Context, chatID int64, userID int64, itemID string) {
	item, err := services.GetMenuItem(ctx, b.deps.Catalog, itemID)
	if err != nil {
		b.send(chatID, "This item is no longer on the menu.")
		return
	}
	d := &itemDraft{Item: *item, Selections: services.DefaultSelections(*item), Qty: 1}
	b.draftsMu.Lock()
	b.drafts[userID] = d
	b.draftsMu.Unlock()

	kb := draftKeyboard(d)
	b.sendWithInline(chatID, itemDetailText(d), kb)
}

func itemDetailText(d *itemDraft) string {
	item := d.Item
	var b strings.Builder
	b.WriteString(item.Name)
	if item.IsVeg {
		b.WriteString(" 🟢")
	}
	b.WriteString("\n")
	if item.Description != "" {
		b.WriteString(item.Description + "\n")
	}
	b.WriteString("\n" + services.FormatMoney(item.Price))
	if savings := item.Savings(); savings.IsPositive() {
		fmt.Fprintf(&b, " (was %s, save %s)", services.FormatMoney(*item.OriginalPrice), services.FormatMoney(savings))
	}
	fmt.Fprintf(&b, "\n⭐ %.1f (%d reviews) · ⏱ %d mins · 🌶 %s\n", item.Rating, item.ReviewCount, item.PrepTime, item.SpiceLevel)
	if len(item.DietaryTags) > 0 {
		b.WriteString(strings.Join(item.DietaryTags, " · ") + "\n")
	}
	for _, c := range item.Customizations {
		kind := "choose one"
		if c.Type == models.CustomizationCheckbox {
			kind = "optional"
		}
		if c.Required {
			kind += ", required"
		}
		fmt.Fprintf(&b, "\n%s (%s)", c.Name, kind)
	}
	if d.Instructions != "" {
		fmt.Fprintf(&b, "\n\n📝 %s", d.Instructions)
	}
	line := d.line()
	fmt.Fprintf(&b, "\n\nQuantity: %d\n%s each · Total %s", d.Qty, services.FormatMoney(services.LineItemPrice(line)), services.FormatMoney(services.LineTotal(line)))
	return b.String()
}

// draftKeyboard uses customization / option indexes in callback data to stay under 64 bytes.
func draftKeyboard(d *itemDraft) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for ci, c := range d.Item.Customizations {
		for oi, o := range c.Options {
			mark := "◻️"
			if c.Type == models.CustomizationRadio {
				mark = "⚪"
			}
			for _, id := range d.Selections[c.ID] {
				if id == o.ID {
					mark = "✅"
				}
			}
			label := fmt.Sprintf("%s %s: %s", mark, c.Name, o.Label)
			if !o.PriceModifier.IsZero() {
				label += " +" + services.FormatMoney(o.PriceModifier)
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("opt:%d:%d", ci, oi)),
			))
		}
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖", "dq:-"),
			tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(d.Qty), "dq:="),
			tgbotapi.NewInlineKeyboardButtonData("➕", "dq:+"),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(noteLabel(d), "note")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛒 Add to Cart — "+services.FormatMoney(services.LineTotal(d.line())), "addcart"),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to menu", "menu")),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) toggleDraftOption(chatID int64, msgID int, userID int64, data string) {
	ciStr, oiStr, _ := strings.Cut(data, ":")
	ci, err1 := strconv.Atoi(ciStr)
	oi, err2 := strconv.Atoi(oiStr)
	if err1 != nil || err2 != nil {
		return
	}
	b.draftsMu.Lock()
	d, ok := b.drafts[userID]
	if ok {
		ok = applyDraftOption(d, ci, oi)
	}
	var text string
	var kb tgbotapi.InlineKeyboardMarkup
	if ok {
		text, kb = itemDetailText(d), draftKeyboard(d)
	}
	b.draftsMu.Unlock()
	if ok {
		b.editOrSend(chatID, msgID, text, &kb)
	}
}

// applyDraftOption toggles option oi of customization ci; false if out of range.
func applyDraftOption(d *itemDraft, ci, oi int) bool {
	if ci < 0 || ci >= len(d.Item.Customizations) {
		return false
	}
	c := d.Item.Customizations[ci]
	if oi < 0 || oi >= len(c.Options) {
		return false
	}
	d.Selections = services.ToggleOption(d.Item, d.Selections, c.ID, c.Options[oi].ID)
	return true
}

func (b *Bot) changeDraftQty(chatID int64, msgID int, userID int64, op string) {
	b.draftsMu.Lock()
	d, ok := b.drafts[userID]
	changed := false
	if ok {
		switch {
		case op == "+":
			d.Qty++
			changed = true
		case op == "-" && d.Qty > 1:
			d.Qty--
			changed = true
		}
	}
	var text string
	var kb tgbotapi.InlineKeyboardMarkup
	if changed {
		text, kb = itemDetailText(d), draftKeyboard(d)
	}
	b.draftsMu.Unlock()
	if changed {
		b.editOrSend(chatID, msgID, text, &kb)
	}
}

func (b *Bot) addDraftToCart(ctx context.Context, chatID int64, userID int64) {
	b.draftsMu.Lock()
	d, ok := b.drafts[userID]
	if ok {
		delete(b.drafts, userID)
	}
	b.draftsMu.Unlock()
	if !ok {
		b.sendMenu(ctx, chatID, userID, 0)
		return
	}
	if err := services.ValidateSelections(d.Item, d.Selections); err != nil {
		b.send(chatID, "⚠️ "+err.Error())
		b.draftsMu.Lock()
		b.drafts[userID] = d
		b.draftsMu.Unlock()
		return
	}

	var count int
	err := b.withCart(ctx, userID, func(cart *services.CartStore) error {
		if _, err := cart.Add(ctx, d.Item, d.Qty, d.Selections, d.Instructions); err != nil {
			return err
		}
		count = cart.Count()
		return nil
	})
	if err != nil {
		log.Printf("add to cart user=%d item=%s: %v", userID, d.Item.ID, err)
		b.send(chatID, "Could not add the item to your cart. Please try again.")
		return
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🛒 View Cart (%d)", count), "cart"),
			tgbotapi.NewInlineKeyboardButtonData("Continue Shopping", "menu"),
		),
	)
	b.sendWithInline(chatID, fmt.Sprintf("✅ Added %s × %d to cart", d.Item.Name, d.Qty), kb)
}

func noteLabel(d *itemDraft) string {
	if d.Instructions != "" {
		return "📝 Edit instructions"
	}
	return "📝 Special instructions"
}

// askNote makes the next text message the draft's special instructions.
func (b *Bot) askNote(chatID int64, userID int64) {
	b.draftsMu.Lock()
	d, ok := b.drafts[userID]
	if ok {
		d.AwaitingNote = true
	}
	b.draftsMu.Unlock()
	if !ok {
		return
	}
	b.send(chatID, "📝 Send your special instructions (e.g. no onions), or - to clear them.")
}

// handleNoteText consumes a text reply when a draft is waiting for instructions.
func (b *Bot) handleNoteText(chatID int64, userID int64, text string) bool {
	b.draftsMu.Lock()
	d, ok := b.drafts[userID]
	if !ok || !d.AwaitingNote || text == "" {
		b.draftsMu.Unlock()
		return false
	}
	d.setNote(text)
	detail, kb := itemDetailText(d), draftKeyboard(d)
	b.draftsMu.Unlock()
	b.sendWithInline(chatID, detail, kb)
	return true
}

// cartCount is the number of items in the user's cart; 0 if it cannot be loaded.
func (b *Bot) cartCount(ctx context.Context, userID int64) int {
	count := 0
	err := b.withCart(ctx, userID, func(cart *services.CartStore) error {
		count = cart.Count()
		return nil
	})
	if err != nil {
		log.Printf("load cart user=%d: %v", userID, err)
	}
	return count
}
