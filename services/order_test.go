package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"food-storefront/models"
)

func TestOrderStatusLabel(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{OrderStatusConfirmed, "Confirmed"},
		{OrderStatusOutForDelivery, "Out For Delivery"},
		{OrderStatusPending, "Pending"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := OrderStatusLabel(tt.status); got != tt.want {
			t.Errorf("OrderStatusLabel(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestMemoryOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOrderRepository()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		o := models.Order{ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder %s: %v", id, err)
		}
	}
	repo.CreateOrder(ctx, models.Order{ID: "ORD-9", UserID: "u2", CreatedAt: base})

	if err := repo.CreateOrder(ctx, models.Order{ID: "ORD-1"}); err == nil {
		t.Error("duplicate order id should fail")
	}

	list, err := repo.ListOrdersByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, o := range list {
		got = append(got, o.ID)
	}
	if strings.Join(got, ",") != "ORD-3,ORD-2,ORD-1" {
		t.Errorf("orders = %v, want newest first", got)
	}

	if none, _ := repo.ListOrdersByUser(ctx, "nobody"); none == nil || len(none) != 0 {
		t.Errorf("unknown user orders = %#v, want empty slice", none)
	}

	if _, err := repo.GetOrder(ctx, "ORD-404"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("GetOrder err = %v, want ErrOrderNotFound", err)
	}
}

func TestNewOrderPlacedEvent(t *testing.T) {
	o := models.Order{
		ID:           "ORD-7",
		UserID:       "tg:99",
		DeliveryType: models.DeliveryTypePickup,
		Total:        dec("17.2800"),
		Items: []models.CartLineItem{
			{ID: "l1", MenuItem: sizedItem(), Quantity: 2, Customizations: models.Selections{"size": {"large"}}, SpecialInstructions: "no ice"},
			{ID: "l2", MenuItem: menuItem("naan", "3.99"), Quantity: 1},
		},
	}
	ev := NewOrderPlacedEvent(o)
	if ev.OrderID != "ORD-7" || ev.Total != "17.28" || ev.ItemCount != 3 || len(ev.Items) != 2 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Items[0].Options != "Size: Large" || ev.Items[0].Instructions != "no ice" {
		t.Errorf("first line = %+v", ev.Items[0])
	}
}
