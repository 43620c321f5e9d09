package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
)

const (
	PaymentCard = "card"
	PaymentUPI  = "upi"
	PaymentCash = "cash"
)

type Address struct {
	Name         string `json:"name"`
	Line1        string `json:"line1"`
	Line2        string `json:"line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zipCode"`
	Instructions string `json:"instructions,omitempty"`
}

// CheckoutInput is what the customer fills in on the checkout step.
type CheckoutInput struct {
	UserID        string          `json:"userId,omitempty"`
	DeliveryType  string          `json:"deliveryType"`
	ContactName   string          `json:"contactName"`
	ContactNumber string          `json:"contactNumber"`
	Address       *Address        `json:"address,omitempty"`
	PaymentMethod string          `json:"paymentMethod"`
	Discount      decimal.Decimal `json:"discount"`
}

// Order is a placed order (one row of the orders table).
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId,omitempty"`
	Items           []CartLineItem  `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	DeliveryType    string          `json:"deliveryType"`
	DeliveryAddress *Address        `json:"deliveryAddress,omitempty"`
	ContactName     string          `json:"contactName"`
	ContactNumber   string          `json:"contactNumber"`
	PaymentMethod   string          `json:"paymentMethod"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
