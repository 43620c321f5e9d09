package bot

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"food-storefront/models"
	"food-storefront/services"

	"github.com/shopspring/decimal"
)

func seedItems(t *testing.T) []models.MenuItem {
	t.Helper()
	items, err := services.SeedMenuItems()
	if err != nil {
		t.Fatalf("seed menu: %v", err)
	}
	return items
}

func findItem(t *testing.T, items []models.MenuItem, id string) models.MenuItem {
	t.Helper()
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("item %s not in seed menu", id)
	return models.MenuItem{}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		text string
		cmd  string
		args string
	}{
		{"/start", "/start", ""},
		{"/login a@b.co secret", "/login", "a@b.co secret"},
		{"/Menu@storefront_bot", "/menu", ""},
		{"paneer", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		cmd, args := splitCommand(tt.text)
		if cmd != tt.cmd || args != tt.args {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.text, cmd, args, tt.cmd, tt.args)
		}
	}
}

func TestParseQtyData(t *testing.T) {
	tests := []struct {
		data   string
		lineID string
		qty    int
		ok     bool
	}{
		{"paneer-tikka-0a1b2c3d4e5f:3", "paneer-tikka-0a1b2c3d4e5f", 3, true},
		{"x-1:0", "x-1", 0, true},
		{"x-1:-1", "x-1", -1, true},
		{"x-1", "", 0, false},
		{":2", "", 0, false},
		{"x-1:two", "", 0, false},
	}
	for _, tt := range tests {
		lineID, qty, ok := parseQtyData(tt.data)
		if lineID != tt.lineID || qty != tt.qty || ok != tt.ok {
			t.Errorf("parseQtyData(%q) = (%q, %d, %v), want (%q, %d, %v)", tt.data, lineID, qty, ok, tt.lineID, tt.qty, tt.ok)
		}
	}
}

func TestParseAddress(t *testing.T) {
	a, err := parseAddress("12 Main St, Springfield, 12345")
	if err != nil {
		t.Fatalf("parseAddress: %v", err)
	}
	if a.Line1 != "12 Main St" || a.City != "Springfield" || a.ZipCode != "12345" || a.Line2 != "" {
		t.Errorf("parseAddress = %+v", a)
	}

	a, err = parseAddress("12 Main St, Apt 4, Springfield, 12345")
	if err != nil {
		t.Fatalf("parseAddress: %v", err)
	}
	if a.Line2 != "Apt 4" || a.City != "Springfield" {
		t.Errorf("parseAddress with apartment = %+v", a)
	}

	for _, bad := range []string{"", "12 Main St", "12 Main St, Springfield", "a, b, c, d, e"} {
		if _, err := parseAddress(bad); err == nil {
			t.Errorf("parseAddress(%q) should fail", bad)
		}
	}
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+1 (555) 010-0199", true},
		{"5550100", true},
		{"555", false},
		{"call me", false},
		{"+1234567890123456", false},
	}
	for _, tt := range tests {
		if got := validPhone(tt.phone); got != tt.want {
			t.Errorf("validPhone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}

func TestParseAuthArgs(t *testing.T) {
	email, password, ok := parseLoginArgs("asha@example.com s3cret")
	if !ok || email != "asha@example.com" || password != "s3cret" {
		t.Errorf("parseLoginArgs = (%q, %q, %v)", email, password, ok)
	}
	if _, _, ok := parseLoginArgs("asha@example.com"); ok {
		t.Error("parseLoginArgs without password should fail")
	}

	name, email, password, ok := parseSignupArgs("Asha Rao asha@example.com s3cret")
	if !ok || name != "Asha Rao" || email != "asha@example.com" || password != "s3cret" {
		t.Errorf("parseSignupArgs = (%q, %q, %q, %v)", name, email, password, ok)
	}
	if _, _, _, ok := parseSignupArgs("asha@example.com s3cret"); ok {
		t.Error("parseSignupArgs without name should fail")
	}
}

func TestMenuScreen_Pagination(t *testing.T) {
	items := seedItems(t)
	f := services.DefaultMenuFilter()

	text, kb := menuScreen(items, f, 0, 3)
	if !strings.Contains(text, "12 items found") {
		t.Errorf("menu text = %q, want item count", text)
	}
	// 8 items + pager + 2 filter rows + clear row + cart row
	if got := len(kb.InlineKeyboard); got != menuPageSize+5 {
		t.Fatalf("page 0 rows = %d, want %d", got, menuPageSize+5)
	}
	first := kb.InlineKeyboard[0][0]
	if first.CallbackData == nil || *first.CallbackData != "item:paneer-tikka" {
		t.Errorf("first item callback = %v, want item:paneer-tikka", first.CallbackData)
	}
	last := kb.InlineKeyboard[len(kb.InlineKeyboard)-1][0]
	if last.Text != "🛒 Cart (3)" {
		t.Errorf("cart button = %q", last.Text)
	}

	_, kb = menuScreen(items, f, 1, 0)
	if got := len(kb.InlineKeyboard); got != 4+5 {
		t.Errorf("page 1 rows = %d, want 9", got)
	}

	// out-of-range pages clamp to the last page
	_, kb = menuScreen(items, f, 99, 0)
	if got := len(kb.InlineKeyboard); got != 4+5 {
		t.Errorf("clamped page rows = %d, want 9", got)
	}
}

func TestMenuScreen_Filtered(t *testing.T) {
	items := seedItems(t)
	f := services.DefaultMenuFilter()
	f.Category = "Breads"
	f.Search = "naan"

	text, kb := menuScreen(items, f, 0, 0)
	if !strings.Contains(text, "1 items found") {
		t.Errorf("menu text = %q", text)
	}
	if !strings.Contains(text, "Category: Breads") || !strings.Contains(text, `Search: "naan"`) {
		t.Errorf("filter summary missing from %q", text)
	}
	// 1 item, no pager, 2 filter rows, clear row (with clear search), cart row
	if got := len(kb.InlineKeyboard); got != 5 {
		t.Fatalf("rows = %d, want 5", got)
	}
	if got := len(kb.InlineKeyboard[3]); got != 2 {
		t.Errorf("clear row buttons = %d, want 2", got)
	}

	f.Search = "pizza"
	text, _ = menuScreen(items, f, 0, 0)
	if !strings.Contains(text, "No items match") {
		t.Errorf("empty result text = %q", text)
	}
}

func TestFilterSummary(t *testing.T) {
	if got := filterSummary(services.MenuFilter{}); got != "" {
		t.Errorf("filterSummary(zero) = %q, want empty", got)
	}
	f := services.DefaultMenuFilter()
	f.DietaryTags = []string{"Vegan", "Jain"}
	f.SortBy = services.SortPriceLow
	got := filterSummary(f)
	for _, want := range []string{"Dietary: Vegan, Jain", "Price: $0.00 – $25.00", "Sort: Price: Low to High"} {
		if !strings.Contains(got, want) {
			t.Errorf("filterSummary = %q, missing %q", got, want)
		}
	}
}

func TestDraftOptions(t *testing.T) {
	item := findItem(t, seedItems(t), "butter-chicken")
	d := &itemDraft{Item: item, Selections: services.DefaultSelections(item), Qty: 2}

	if got := d.Selections["spice"]; len(got) != 1 || got[0] != "mild" {
		t.Fatalf("default spice = %v, want [mild]", got)
	}
	// radio: medium replaces mild
	if !applyDraftOption(d, 0, 1) {
		t.Fatal("applyDraftOption(spice, medium) = false")
	}
	if got := d.Selections["spice"]; len(got) != 1 || got[0] != "medium" {
		t.Errorf("spice after toggle = %v, want [medium]", got)
	}
	// checkbox: extra-gravy and extra-chicken
	applyDraftOption(d, 1, 0)
	applyDraftOption(d, 1, 1)
	want := decimal.RequireFromString("22.49") // 16.99 + 1.50 + 4.00
	if got := services.LineItemPrice(d.line()); !got.Equal(want) {
		t.Errorf("unit price = %s, want %s", got, want)
	}
	if got := services.LineTotal(d.line()); !got.Equal(want.Mul(decimal.NewFromInt(2))) {
		t.Errorf("line total = %s, want %s", got, want.Mul(decimal.NewFromInt(2)))
	}
	// unchecking removes it again
	applyDraftOption(d, 1, 1)
	if got := d.Selections["extras"]; len(got) != 1 || got[0] != "extra-gravy" {
		t.Errorf("extras = %v, want [extra-gravy]", got)
	}

	if applyDraftOption(d, 5, 0) || applyDraftOption(d, 0, 9) {
		t.Error("out-of-range indexes should be rejected")
	}

	text := itemDetailText(d)
	if !strings.Contains(text, "Quantity: 2") || !strings.Contains(text, "Total $36.98") {
		t.Errorf("detail text = %q", text)
	}
}

func TestItemDetailText_Savings(t *testing.T) {
	item := findItem(t, seedItems(t), "paneer-tikka")
	d := &itemDraft{Item: item, Selections: services.DefaultSelections(item), Qty: 1}
	text := itemDetailText(d)
	if !strings.Contains(text, "was $13.99, save $2.00") {
		t.Errorf("detail text = %q, want savings", text)
	}
}

func TestMergeGuestCart(t *testing.T) {
	ctx := context.Background()
	storage := services.NewMemoryCartStorage()
	items := seedItems(t)

	guest, err := services.NewCartStore(ctx, storage, "tg:1")
	if err != nil {
		t.Fatal(err)
	}
	guest.Add(ctx, findItem(t, items, "garlic-naan"), 2, nil, "")
	guest.Add(ctx, findItem(t, items, "masala-chai"), 1, nil, "less sugar")

	user, _ := services.NewCartStore(ctx, storage, "user:u1")
	user.Add(ctx, findItem(t, items, "veg-samosa"), 1, nil, "")

	moved, err := mergeGuestCart(ctx, storage, "tg:1", "user:u1")
	if err != nil {
		t.Fatalf("mergeGuestCart: %v", err)
	}
	if moved != 2 {
		t.Errorf("moved = %d, want 2", moved)
	}

	merged, _ := services.NewCartStore(ctx, storage, "user:u1")
	if merged.Len() != 3 || merged.Count() != 4 {
		t.Errorf("merged cart lines=%d count=%d, want 3 / 4", merged.Len(), merged.Count())
	}
	if got := merged.Items()[2].SpecialInstructions; got != "less sugar" {
		t.Errorf("instructions = %q, want less sugar", got)
	}
	left, _ := services.NewCartStore(ctx, storage, "tg:1")
	if left.Len() != 0 {
		t.Errorf("guest cart should be empty, has %d lines", left.Len())
	}

	moved, err = mergeGuestCart(ctx, storage, "tg:1", "user:u1")
	if err != nil || moved != 0 {
		t.Errorf("merging an empty guest cart = (%d, %v), want (0, nil)", moved, err)
	}
}

// saveFailer fails every save under one key until ok is set.
type saveFailer struct {
	services.CartStorage
	key string
	ok  bool
}

func (s *saveFailer) SaveCart(ctx context.Context, key string, cart *models.Cart) error {
	if key == s.key && !s.ok {
		return errors.New("disk full")
	}
	return s.CartStorage.SaveCart(ctx, key, cart)
}

func TestMergeGuestCart_FailedSaveMovesNothing(t *testing.T) {
	ctx := context.Background()
	storage := &saveFailer{CartStorage: services.NewMemoryCartStorage(), key: "user:u1"}
	items := seedItems(t)

	guest, _ := services.NewCartStore(ctx, storage, "tg:1")
	guest.Add(ctx, findItem(t, items, "garlic-naan"), 2, nil, "")
	guest.Add(ctx, findItem(t, items, "masala-chai"), 1, nil, "")

	if _, err := mergeGuestCart(ctx, storage, "tg:1", "user:u1"); err == nil {
		t.Fatal("expected the account cart save to fail")
	}
	if c, _ := services.NewCartStore(ctx, storage, "user:u1"); c.Len() != 0 {
		t.Errorf("account cart has %d lines after a failed merge, want 0", c.Len())
	}
	if c, _ := services.NewCartStore(ctx, storage, "tg:1"); c.Len() != 2 {
		t.Errorf("guest cart has %d lines after a failed merge, want 2", c.Len())
	}

	// the retry moves each line exactly once
	storage.ok = true
	moved, err := mergeGuestCart(ctx, storage, "tg:1", "user:u1")
	if err != nil || moved != 2 {
		t.Fatalf("retry = (%d, %v), want (2, nil)", moved, err)
	}
	if c, _ := services.NewCartStore(ctx, storage, "user:u1"); c.Len() != 2 || c.Count() != 3 {
		t.Errorf("account cart lines=%d count=%d, want 2 / 3", c.Len(), c.Count())
	}
}

func TestCardMarkup(t *testing.T) {
	if kb := cardMarkup(services.CardContent{Text: "x"}); kb != nil {
		t.Error("no buttons should give no keyboard")
	}
	kb := cardMarkup(services.CardContent{Buttons: [][]services.CardButton{
		{{Text: "Menu", CallbackData: "menu"}, {Text: "Site", URL: "https://example.com"}},
	}})
	if kb == nil || len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("cardMarkup = %+v", kb)
	}
	if kb.InlineKeyboard[0][1].URL == nil || *kb.InlineKeyboard[0][1].URL != "https://example.com" {
		t.Error("URL button not converted")
	}
}

func TestParseMenuItemJSON(t *testing.T) {
	item, err := parseMenuItemJSON(`{"name": "Veg Pakora (6 pcs)", "price": 6.49, "category": "Starters"}`)
	if err != nil {
		t.Fatalf("parseMenuItemJSON: %v", err)
	}
	if item.ID != "veg-pakora-6-pcs" {
		t.Errorf("id = %q, want veg-pakora-6-pcs", item.ID)
	}
	if item.SpiceLevel != models.SpiceMild {
		t.Errorf("spice = %q, want mild", item.SpiceLevel)
	}
	if !item.Price.Equal(decimal.RequireFromString("6.49")) {
		t.Errorf("price = %s", item.Price)
	}

	bad := []string{
		`not json`,
		`{"name": "X", "price": -1}`,
		`{"name": "X", "spiceLevel": "volcanic"}`,
		`{"price": 3}`,
	}
	for _, s := range bad {
		if _, err := parseMenuItemJSON(s); err == nil {
			t.Errorf("parseMenuItemJSON(%q) should fail", s)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Butter Chicken":  "butter-chicken",
		"  Chicken 65!  ": "chicken-65",
		"Dal -- Makhani":  "dal-makhani",
		"":                "",
	}
	for in, want := range tests {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMenuScreen_TypeButton(t *testing.T) {
	items := seedItems(t)
	f := services.DefaultMenuFilter()

	_, kb := menuScreen(items, f, 0, 0)
	filterRow := kb.InlineKeyboard[len(kb.InlineKeyboard)-4]
	if len(filterRow) != 2 {
		t.Errorf("All: filter row has %d buttons, want 2", len(filterRow))
	}

	f.Category = "Main Course"
	f.Subcategories = []string{"Curries"}
	text, kb := menuScreen(items, f, 0, 0)
	filterRow = kb.InlineKeyboard[len(kb.InlineKeyboard)-4]
	if len(filterRow) != 3 || filterRow[2].CallbackData == nil || *filterRow[2].CallbackData != "f:subs" {
		t.Errorf("Main Course: filter row = %+v, want a Type button", filterRow)
	}
	if !strings.Contains(text, "Type: Curries") || !strings.Contains(text, "3 items found") {
		t.Errorf("menu text = %q", text)
	}
}

func TestToggleKeyboard(t *testing.T) {
	kb := toggleKeyboard([]string{"Curries", "Rice"}, []string{"Rice"}, "f:sub:")
	if len(kb.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d, want 2 options + back", len(kb.InlineKeyboard))
	}
	if got := kb.InlineKeyboard[0][0].Text; got != "◻️ Curries" {
		t.Errorf("unselected label = %q", got)
	}
	rice := kb.InlineKeyboard[1][0]
	if rice.Text != "✅ Rice" || *rice.CallbackData != "f:sub:Rice" {
		t.Errorf("selected button = %q / %q", rice.Text, *rice.CallbackData)
	}
}

func TestDraftNote(t *testing.T) {
	item := findItem(t, seedItems(t), "garlic-naan")
	d := &itemDraft{Item: item, Selections: services.DefaultSelections(item), Qty: 1, AwaitingNote: true}

	d.setNote("  extra butter, well done  ")
	if d.Instructions != "extra butter, well done" || d.AwaitingNote {
		t.Errorf("draft = %+v", d)
	}
	if got := d.line().SpecialInstructions; got != "extra butter, well done" {
		t.Errorf("line instructions = %q", got)
	}
	if !strings.Contains(itemDetailText(d), "📝 extra butter, well done") {
		t.Errorf("detail text missing the note: %q", itemDetailText(d))
	}
	if noteLabel(d) != "📝 Edit instructions" {
		t.Errorf("note label = %q", noteLabel(d))
	}

	d.setNote(strings.Repeat("é", maxNoteLen+50))
	if n := len([]rune(d.Instructions)); n != maxNoteLen {
		t.Errorf("note length = %d runes, want %d", n, maxNoteLen)
	}

	d.setNote("-")
	if d.Instructions != "" || noteLabel(d) != "📝 Special instructions" {
		t.Errorf("clearing the note left %q", d.Instructions)
	}
}

type brokenCarts struct{}

func (brokenCarts) LoadCart(ctx context.Context, key string) (*models.Cart, error) {
	return nil, errors.New("connection refused")
}

func (brokenCarts) SaveCart(ctx context.Context, key string, cart *models.Cart) error {
	return errors.New("connection refused")
}

func TestCartCount_LogsLoadError(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	b := newBot(nil, Deps{Carts: brokenCarts{}})
	if n := b.cartCount(context.Background(), 7); n != 0 {
		t.Errorf("cartCount = %d, want 0", n)
	}
	if !strings.Contains(buf.String(), "load cart user=7") {
		t.Errorf("log = %q, want the load error", buf.String())
	}
}
