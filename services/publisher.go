package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"food-storefront/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	OrdersExchange      = "orders_topic"
	OrderPlacedRouteKey = "order.placed"
)

// OrderPublisher announces placed orders to whoever prepares them.
type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, order models.Order) error
}

// OrderPlacedEvent is the message body published for a placed order.
type OrderPlacedEvent struct {
	OrderID      string          `json:"order_id"`
	UserID       string          `json:"user_id,omitempty"`
	DeliveryType string          `json:"delivery_type"`
	Total        string          `json:"total"`
	ItemCount    int             `json:"item_count"`
	Items        []EventLine     `json:"items"`
	Address      *models.Address `json:"delivery_address,omitempty"`
	PlacedAt     time.Time       `json:"placed_at"`
}

type EventLine struct {
	MenuItemID   string `json:"menu_item_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Options      string `json:"options,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

func NewOrderPlacedEvent(o models.Order) OrderPlacedEvent {
	ev := OrderPlacedEvent{
		OrderID:      o.ID,
		UserID:       o.UserID,
		DeliveryType: o.DeliveryType,
		Total:        o.Total.StringFixed(2),
		ItemCount:    CartCount(o.Items),
		Address:      o.DeliveryAddress,
		PlacedAt:     o.CreatedAt,
	}
	for _, line := range o.Items {
		ev.Items = append(ev.Items, EventLine{
			MenuItemID:   line.MenuItem.ID,
			Name:         line.MenuItem.Name,
			Quantity:     line.Quantity,
			Options:      SelectionLabels(line),
			Instructions: line.SpecialInstructions,
		})
	}
	return ev
}

// AMQPPublisher publishes order events to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(OrdersExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch}, nil
}

func (p *AMQPPublisher) PublishOrderPlaced(ctx context.Context, order models.Order) error {
	body, err := json.Marshal(NewOrderPlacedEvent(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	return p.ch.PublishWithContext(ctx, OrdersExchange, OrderPlacedRouteKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		MessageId:    order.ID,
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
