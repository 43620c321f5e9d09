package services

import (
	"sort"
	"strings"

	"food-storefront/models"

	"github.com/shopspring/decimal"
)

const (
	CategoryAll   = "All"
	SpiceLevelAll = "all"
)

const (
	SortRecommended = "recommended"
	SortPriceLow    = "price-low"
	SortPriceHigh   = "price-high"
	SortRating      = "rating"
	SortPopularity  = "popularity"
)

// DietaryFilters are the dietary checkboxes offered on the menu page.
var DietaryFilters = []string{"Vegetarian", "Vegan", "Gluten-Free", "Jain"}

// PriceRange bounds are inclusive on both ends.
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// MenuFilter is the filter/sort state of the menu page.
type MenuFilter struct {
	Category      string      `json:"category"`
	Subcategories []string    `json:"subcategories"`
	DietaryTags   []string    `json:"dietaryTags"`
	SpiceLevel    string      `json:"spiceLevel"`
	PriceRange    *PriceRange `json:"priceRange,omitempty"` // nil = no price filter
	Search        string      `json:"search"`
	SortBy        string      `json:"sortBy"`
}

// DefaultMenuFilter is the "clear filters" state: everything shown, price capped at 25.
func DefaultMenuFilter() MenuFilter {
	return MenuFilter{
		Category:   CategoryAll,
		SpiceLevel: SpiceLevelAll,
		PriceRange: &PriceRange{Min: decimal.Zero, Max: decimal.NewFromInt(25)},
		SortBy:     SortRecommended,
	}
}

// Matches reports whether item passes every predicate of f.
func (f MenuFilter) Matches(item models.MenuItem) bool {
	if f.Category != "" && f.Category != CategoryAll && item.Category != f.Category {
		return false
	}
	if len(f.Subcategories) > 0 && !containsString(f.Subcategories, item.Subcategory) {
		return false
	}
	for _, tag := range f.DietaryTags {
		if !item.HasTag(tag) {
			return false
		}
	}
	if f.SpiceLevel != "" && f.SpiceLevel != SpiceLevelAll && item.SpiceLevel != f.SpiceLevel {
		return false
	}
	if f.PriceRange != nil {
		if item.Price.LessThan(f.PriceRange.Min) || item.Price.GreaterThan(f.PriceRange.Max) {
			return false
		}
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// FilterAndSort returns the items matching f, ordered by f.SortBy.
// The input slice is never modified; the result is never nil.
func FilterAndSort(items []models.MenuItem, f MenuFilter) []models.MenuItem {
	out := make([]models.MenuItem, 0, len(items))
	for _, item := range items {
		if f.Matches(item) {
			out = append(out, item)
		}
	}

	var less func(a, b models.MenuItem) bool
	switch f.SortBy {
	case SortPriceLow:
		less = func(a, b models.MenuItem) bool { return a.Price.LessThan(b.Price) }
	case SortPriceHigh:
		less = func(a, b models.MenuItem) bool { return a.Price.GreaterThan(b.Price) }
	case SortRating:
		less = func(a, b models.MenuItem) bool { return a.Rating > b.Rating }
	case SortPopularity:
		less = func(a, b models.MenuItem) bool { return a.ReviewCount > b.ReviewCount }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// ValidSortBy reports whether s is a known sort key.
func ValidSortBy(s string) bool {
	switch s {
	case SortRecommended, SortPriceLow, SortPriceHigh, SortRating, SortPopularity:
		return true
	}
	return false
}

// Categories returns "All" followed by the distinct categories in catalog order.
func Categories(items []models.MenuItem) []string {
	cats := []string{CategoryAll}
	seen := map[string]bool{}
	for _, item := range items {
		if item.Category == "" || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		cats = append(cats, item.Category)
	}
	return cats
}

// Subcategories returns the distinct subcategories of category ("All" = every category).
func Subcategories(items []models.MenuItem, category string) []string {
	var subs []string
	seen := map[string]bool{}
	for _, item := range items {
		if category != "" && category != CategoryAll && item.Category != category {
			continue
		}
		if item.Subcategory == "" || seen[item.Subcategory] {
			continue
		}
		seen[item.Subcategory] = true
		subs = append(subs, item.Subcategory)
	}
	return subs
}

// ToggleString adds s to list or removes it if already present.
func ToggleString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return append(list, s)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
