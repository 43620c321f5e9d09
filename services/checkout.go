package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"food-storefront/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidCheckout  = errors.New("invalid checkout details")
	ErrPaymentCancelled = errors.New("payment cancelled")
)

// PaymentResult is the outcome of a simulated payment attempt.
type PaymentResult struct {
	Success bool
	Reason  string
}

// OutcomeProvider decides whether a payment attempt succeeds.
type OutcomeProvider interface {
	Charge(ctx context.Context, amount decimal.Decimal, method string) (PaymentResult, error)
}

// RandomOutcome succeeds with probability SuccessRate after waiting Delay.
type RandomOutcome struct {
	SuccessRate float64
	Delay       time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomOutcome(successRate float64, delay time.Duration, seed int64) *RandomOutcome {
	return &RandomOutcome{
		SuccessRate: successRate,
		Delay:       delay,
		rnd:         rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomOutcome) Charge(ctx context.Context, amount decimal.Decimal, method string) (PaymentResult, error) {
	if err := sleepCtx(ctx, r.Delay); err != nil {
		return PaymentResult{}, ErrPaymentCancelled
	}
	r.mu.Lock()
	draw := r.rnd.Float64()
	r.mu.Unlock()
	if draw < r.SuccessRate {
		return PaymentResult{Success: true}, nil
	}
	return PaymentResult{Success: false, Reason: "payment declined"}, nil
}

// FixedOutcome always returns the same result; used in tests and demos.
type FixedOutcome struct {
	Result PaymentResult
}

func (f FixedOutcome) Charge(ctx context.Context, amount decimal.Decimal, method string) (PaymentResult, error) {
	return f.Result, nil
}

// CheckoutResult is what the success / failure page shows.
type CheckoutResult struct {
	Success       bool
	OrderID       string
	Totals        models.PricingBreakdown
	EstimatedTime string
	Reason        string
	Order         *models.Order
}

// CheckoutService turns a cart into an order.
type CheckoutService struct {
	Rules         PricingRules
	Outcome       OutcomeProvider
	Orders        OrderRepository
	Publisher     OrderPublisher // optional
	Locks         *CartLocks     // shared with the cart editors; nil skips locking
	EstimatedTime string
	Now           func() time.Time
}

// ValidateCheckout checks the customer's details for the chosen delivery type.
func ValidateCheckout(in models.CheckoutInput) error {
	switch in.DeliveryType {
	case models.DeliveryTypeDelivery, models.DeliveryTypePickup:
	default:
		return fmt.Errorf("%w: delivery type must be delivery or pickup", ErrInvalidCheckout)
	}
	switch in.PaymentMethod {
	case models.PaymentCard, models.PaymentUPI, models.PaymentCash:
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidCheckout, in.PaymentMethod)
	}
	if strings.TrimSpace(in.ContactName) == "" || strings.TrimSpace(in.ContactNumber) == "" {
		return fmt.Errorf("%w: name and phone number are required", ErrInvalidCheckout)
	}
	if in.DeliveryType == models.DeliveryTypeDelivery {
		a := in.Address
		if a == nil || strings.TrimSpace(a.Line1) == "" || strings.TrimSpace(a.City) == "" || strings.TrimSpace(a.ZipCode) == "" {
			return fmt.Errorf("%w: street address, city and ZIP code are required for delivery", ErrInvalidCheckout)
		}
	}
	if in.Discount.IsNegative() {
		return fmt.Errorf("%w: discount must be >= 0", ErrInvalidCheckout)
	}
	if !in.Discount.Equal(in.Discount.Round(2)) {
		return fmt.Errorf("%w: discount must be whole cents", ErrInvalidCheckout)
	}
	return nil
}

// PlaceOrder prices the lines currently in cart, attempts payment and, on success,
// records the order and removes those lines from the stored cart. A declined payment
// leaves the cart untouched. The caller must not hold the cart's lock: payment can
// take a while, and lines added meanwhile stay in the cart for the next order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, cart *CartStore, in models.CheckoutInput) (*CheckoutResult, error) {
	items := cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := ValidateCheckout(in); err != nil {
		return nil, err
	}

	totals := CartTotals(items, s.Rules, in.DeliveryType, in.Discount)
	payment, err := s.Outcome.Charge(ctx, totals.Total, in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if !payment.Success {
		return &CheckoutResult{Success: false, Totals: totals, Reason: payment.Reason}, nil
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	createdAt := now().UTC()
	order := models.Order{
		ID:            NewOrderID(createdAt),
		UserID:        in.UserID,
		Items:         items,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		DeliveryFee:   totals.DeliveryFee,
		Discount:      totals.Discount,
		Total:         totals.Total,
		Status:        OrderStatusConfirmed,
		DeliveryType:  in.DeliveryType,
		ContactName:   in.ContactName,
		ContactNumber: in.ContactNumber,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     createdAt,
	}
	if in.DeliveryType == models.DeliveryTypeDelivery {
		order.DeliveryAddress = in.Address
	}
	if err := s.Orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	if s.Publisher != nil {
		if err := s.Publisher.PublishOrderPlaced(ctx, order); err != nil {
			log.Printf("publish order placed order_id=%s: %v", order.ID, err)
		}
	}
	if err := s.removeOrdered(ctx, cart, items); err != nil {
		log.Printf("failed to clear cart after order %s: %v", order.ID, err)
	}

	eta := s.EstimatedTime
	if eta == "" {
		eta = "30-40"
	}
	return &CheckoutResult{
		Success:       true,
		OrderID:       order.ID,
		Totals:        totals,
		EstimatedTime: eta,
		Order:         &order,
	}, nil
}

// NewOrderID is "ORD-<unix millis>-<6 hex>"; the suffix keeps orders placed in
// the same millisecond apart.
func NewOrderID(createdAt time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("ORD-%d-%s", createdAt.UnixMilli(), suffix)
}

func (s *CheckoutService) removeOrdered(ctx context.Context, cart *CartStore, items []models.CartLineItem) error {
	if s.Locks != nil {
		unlock := s.Locks.Lock(cart.Key())
		defer unlock()
	}
	if err := cart.Reload(ctx); err != nil {
		return err
	}
	ids := make([]string, len(items))
	for i, line := range items {
		ids[i] = line.ID
	}
	return cart.RemoveLines(ctx, ids)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
