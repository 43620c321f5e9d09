package services

import (
	"context"
	"errors"
	"testing"

	"food-storefront/models"
)

func TestSeedMenuIsValid(t *testing.T) {
	items, err := SeedMenuItems()
	if err != nil {
		t.Fatalf("SeedMenuItems: %v", err)
	}
	if len(items) != 12 {
		t.Errorf("seed items = %d, want 12", len(items))
	}
	for _, item := range items {
		if err := ValidateSelections(item, DefaultSelections(item)); err != nil {
			t.Errorf("%s: default selections invalid: %v", item.ID, err)
		}
	}
}

func TestParseMenuJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", `[{"id":"a","name":"A","price":1,"spiceLevel":"mild"}]`, false},
		{"not json", `{`, true},
		{"duplicate id", `[{"id":"a","name":"A","price":1,"spiceLevel":"mild"},{"id":"a","name":"B","price":2,"spiceLevel":"mild"}]`, true},
		{"bad spice", `[{"id":"a","name":"A","price":1,"spiceLevel":"nuclear"}]`, true},
		{"negative price", `[{"id":"a","name":"A","price":-1,"spiceLevel":"mild"}]`, true},
		{"rating too high", `[{"id":"a","name":"A","price":1,"rating":6,"spiceLevel":"mild"}]`, true},
		{"empty options", `[{"id":"a","name":"A","price":1,"spiceLevel":"mild","customizations":[{"id":"s","name":"S","type":"radio","options":[]}]}]`, true},
		{"bad customization type", `[{"id":"a","name":"A","price":1,"spiceLevel":"mild","customizations":[{"id":"s","name":"S","type":"slider","options":[{"id":"x","label":"X"}]}]}]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMenuJSON([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStaticCatalog_Edit(t *testing.T) {
	ctx := context.Background()
	catalog := NewStaticCatalog([]models.MenuItem{menuItem("a", "1"), menuItem("b", "2")})

	updated := menuItem("a", "1.50")
	if err := catalog.SaveMenuItem(ctx, updated); err != nil {
		t.Fatal(err)
	}
	if err := catalog.SaveMenuItem(ctx, menuItem("c", "3")); err != nil {
		t.Fatal(err)
	}
	items, _ := catalog.ListMenu(ctx)
	if got := ids(items); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("ids = %v, want [a b c]", got)
	}
	if !items[0].Price.Equal(dec("1.50")) {
		t.Errorf("price = %s, want 1.50 (replaced in place)", items[0].Price)
	}

	bad := menuItem("d", "1")
	bad.SpiceLevel = "nuclear"
	if err := catalog.SaveMenuItem(ctx, bad); err == nil {
		t.Error("invalid item should be rejected")
	}

	if err := catalog.DeleteMenuItem(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := GetMenuItem(ctx, catalog, "b"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("deleted item lookup err = %v", err)
	}
	if err := catalog.DeleteMenuItem(ctx, "b"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("second delete err = %v, want ErrItemNotFound", err)
	}

	// ListMenu hands out a copy
	items[0].Name = "changed"
	if again, _ := GetMenuItem(ctx, catalog, "a"); again.Name != "a" {
		t.Error("ListMenu result aliases catalog storage")
	}
}
