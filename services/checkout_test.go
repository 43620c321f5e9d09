package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"food-storefront/models"

	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu     sync.Mutex
	orders []models.Order
	err    error
}

func (r *recordingPublisher) PublishOrderPlaced(ctx context.Context, order models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
	return r.err
}

// gatedOutcome blocks Charge until release is closed.
type gatedOutcome struct {
	charging chan struct{}
	release  chan struct{}
}

func (g gatedOutcome) Charge(ctx context.Context, amount decimal.Decimal, method string) (PaymentResult, error) {
	close(g.charging)
	<-g.release
	return PaymentResult{Success: true}, nil
}

func validDelivery() models.CheckoutInput {
	return models.CheckoutInput{
		UserID:        "u1",
		DeliveryType:  models.DeliveryTypeDelivery,
		ContactName:   "Asha",
		ContactNumber: "+1 555 010 0199",
		Address:       &models.Address{Line1: "12 Main St", City: "Springfield", ZipCode: "12345"},
		PaymentMethod: models.PaymentCard,
	}
}

func newCheckout(t *testing.T, success bool) (*CheckoutService, *MemoryOrderRepository, *recordingPublisher) {
	t.Helper()
	orders := NewMemoryOrderRepository()
	pub := &recordingPublisher{}
	svc := &CheckoutService{
		Rules:     DefaultPricingRules(),
		Outcome:   FixedOutcome{Result: PaymentResult{Success: success, Reason: "card declined"}},
		Orders:    orders,
		Publisher: pub,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	return svc, orders, pub
}

func filledCart(t *testing.T) *CartStore {
	t.Helper()
	ctx := context.Background()
	cart, err := NewCartStore(ctx, NewMemoryCartStorage(), "user:u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cart.Add(ctx, menuItem("X", "8.00"), 2, nil, ""); err != nil {
		t.Fatal(err)
	}
	return cart
}

func TestPlaceOrder_Success(t *testing.T) {
	ctx := context.Background()
	svc, orders, pub := newCheckout(t, true)
	cart := filledCart(t)

	res, err := svc.PlaceOrder(ctx, cart, validDelivery())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !res.Success || !strings.HasPrefix(res.OrderID, "ORD-1714564800000-") || len(res.OrderID) != len("ORD-1714564800000-")+6 {
		t.Errorf("result = %+v", res)
	}
	if !res.Totals.Total.Equal(dec("22.27")) {
		t.Errorf("total = %s, want 22.27", res.Totals.Total)
	}
	if res.EstimatedTime != "30-40" {
		t.Errorf("eta = %q", res.EstimatedTime)
	}
	if cart.Len() != 0 {
		t.Error("cart should be cleared after a successful order")
	}

	stored, err := orders.GetOrder(ctx, res.OrderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if stored.Status != OrderStatusConfirmed || stored.UserID != "u1" || len(stored.Items) != 1 {
		t.Errorf("stored order = %+v", stored)
	}
	if stored.DeliveryAddress == nil || stored.DeliveryAddress.City != "Springfield" {
		t.Errorf("address = %+v", stored.DeliveryAddress)
	}
	if len(pub.orders) != 1 || pub.orders[0].ID != res.OrderID {
		t.Errorf("published %d orders", len(pub.orders))
	}
}

func TestPlaceOrder_PaymentFailedKeepsCart(t *testing.T) {
	ctx := context.Background()
	svc, orders, pub := newCheckout(t, false)
	cart := filledCart(t)

	res, err := svc.PlaceOrder(ctx, cart, validDelivery())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if res.Success || res.OrderID != "" || res.Reason != "card declined" {
		t.Errorf("result = %+v", res)
	}
	if cart.Len() != 1 {
		t.Error("cart must survive a failed payment")
	}
	if list, _ := orders.ListOrdersByUser(ctx, "u1"); len(list) != 0 {
		t.Errorf("failed payment stored %d orders", len(list))
	}
	if len(pub.orders) != 0 {
		t.Error("failed payment should not be published")
	}
}

func TestPlaceOrder_PublishErrorIsNotFatal(t *testing.T) {
	svc, _, pub := newCheckout(t, true)
	pub.err = errors.New("broker down")
	res, err := svc.PlaceOrder(context.Background(), filledCart(t), validDelivery())
	if err != nil || !res.Success {
		t.Errorf("PlaceOrder = (%+v, %v), want success", res, err)
	}
}

func TestPlaceOrder_Pickup(t *testing.T) {
	svc, _, _ := newCheckout(t, true)
	in := validDelivery()
	in.DeliveryType = models.DeliveryTypePickup
	in.Address = nil

	res, err := svc.PlaceOrder(context.Background(), filledCart(t), in)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	// 16.00 + 1.28, no delivery fee
	if !res.Totals.Total.Equal(dec("17.28")) || res.Order.DeliveryAddress != nil {
		t.Errorf("pickup order = %+v", res.Order)
	}
}

func TestPlaceOrder_Rejects(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCheckout(t, true)

	empty, _ := NewCartStore(ctx, NewMemoryCartStorage(), "k")
	if _, err := svc.PlaceOrder(ctx, empty, validDelivery()); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("empty cart err = %v, want ErrEmptyCart", err)
	}

	in := validDelivery()
	in.Address = nil
	if _, err := svc.PlaceOrder(ctx, filledCart(t), in); !errors.Is(err, ErrInvalidCheckout) {
		t.Errorf("missing address err = %v, want ErrInvalidCheckout", err)
	}
}

func TestValidateCheckout(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CheckoutInput)
		ok     bool
	}{
		{"valid delivery", func(in *models.CheckoutInput) {}, true},
		{"pickup without address", func(in *models.CheckoutInput) {
			in.DeliveryType = models.DeliveryTypePickup
			in.Address = nil
		}, true},
		{"unknown delivery type", func(in *models.CheckoutInput) { in.DeliveryType = "drone" }, false},
		{"unknown payment", func(in *models.CheckoutInput) { in.PaymentMethod = "bitcoin" }, false},
		{"blank name", func(in *models.CheckoutInput) { in.ContactName = "  " }, false},
		{"missing phone", func(in *models.CheckoutInput) { in.ContactNumber = "" }, false},
		{"missing zip", func(in *models.CheckoutInput) { in.Address.ZipCode = "" }, false},
		{"negative discount", func(in *models.CheckoutInput) { in.Discount = dec("-1") }, false},
		{"discount in cents", func(in *models.CheckoutInput) { in.Discount = dec("2.50") }, true},
		{"fractional cent discount", func(in *models.CheckoutInput) { in.Discount = dec("0.005") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validDelivery()
			tt.mutate(&in)
			err := ValidateCheckout(in)
			if (err == nil) != tt.ok {
				t.Errorf("ValidateCheckout err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestRandomOutcome(t *testing.T) {
	ctx := context.Background()
	always := NewRandomOutcome(1, 0, 1)
	never := NewRandomOutcome(0, 0, 1)
	for i := 0; i < 20; i++ {
		if r, _ := always.Charge(ctx, decimal.NewFromInt(10), models.PaymentCard); !r.Success {
			t.Fatal("rate 1 should always succeed")
		}
		if r, _ := never.Charge(ctx, decimal.NewFromInt(10), models.PaymentCard); r.Success {
			t.Fatal("rate 0 should never succeed")
		}
	}

	// same seed, same sequence
	a := NewRandomOutcome(0.5, 0, 42)
	b := NewRandomOutcome(0.5, 0, 42)
	for i := 0; i < 20; i++ {
		ra, _ := a.Charge(ctx, decimal.Zero, models.PaymentCash)
		rb, _ := b.Charge(ctx, decimal.Zero, models.PaymentCash)
		if ra.Success != rb.Success {
			t.Fatalf("draw %d differs for equal seeds", i)
		}
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	slow := NewRandomOutcome(1, time.Hour, 1)
	if _, err := slow.Charge(cancelled, decimal.Zero, models.PaymentCard); !errors.Is(err, ErrPaymentCancelled) {
		t.Errorf("cancelled charge err = %v, want ErrPaymentCancelled", err)
	}
}

func TestPlaceOrder_ConcurrentOrdersGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	svc, orders, _ := newCheckout(t, true)
	storage := NewMemoryCartStorage()

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := NewCartStore(ctx, storage, fmt.Sprintf("user:%d", i))
			if err != nil {
				t.Error(err)
				return
			}
			cart.Add(ctx, menuItem("X", "8.00"), 1, nil, "")
			res, err := svc.PlaceOrder(ctx, cart, validDelivery())
			if err != nil {
				t.Errorf("PlaceOrder %d: %v", i, err)
				return
			}
			ids <- res.OrderID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate order id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("placed %d orders, want %d", len(seen), n)
	}
	if list, _ := orders.ListOrdersByUser(ctx, "u1"); len(list) != n {
		t.Errorf("stored %d orders, want %d", len(list), n)
	}
}

func TestPlaceOrder_CartUnlockedDuringPayment(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryCartStorage()
	locks := NewCartLocks()
	gate := gatedOutcome{charging: make(chan struct{}), release: make(chan struct{})}
	svc := &CheckoutService{
		Rules:   DefaultPricingRules(),
		Outcome: gate,
		Orders:  NewMemoryOrderRepository(),
		Locks:   locks,
	}

	cart, _ := NewCartStore(ctx, storage, "user:42")
	cart.Add(ctx, menuItem("X", "8.00"), 2, nil, "")

	type result struct {
		res *CheckoutResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := svc.PlaceOrder(ctx, cart, validDelivery())
		done <- result{res, err}
	}()
	<-gate.charging

	// another writer edits the same cart while payment is pending
	edited := make(chan struct{})
	go func() {
		unlock := locks.Lock("user:42")
		defer unlock()
		other, _ := NewCartStore(ctx, storage, "user:42")
		other.Add(ctx, menuItem("naan", "3.99"), 1, nil, "")
		close(edited)
	}()
	select {
	case <-edited:
	case <-time.After(2 * time.Second):
		t.Fatal("cart stayed locked while payment was pending")
	}
	close(gate.release)

	r := <-done
	if r.err != nil || !r.res.Success {
		t.Fatalf("PlaceOrder = (%+v, %v)", r.res, r.err)
	}
	if got := r.res.Order.Items; len(got) != 1 || got[0].MenuItem.ID != "X" {
		t.Errorf("order lines = %v, want only the X line", got)
	}
	after, _ := NewCartStore(ctx, storage, "user:42")
	if after.Len() != 1 || after.Items()[0].MenuItem.ID != "naan" {
		t.Errorf("cart after order = %v, want the naan added during payment", after.Items())
	}
	if locks.Len() != 0 {
		t.Errorf("%d cart locks still held", locks.Len())
	}
}
