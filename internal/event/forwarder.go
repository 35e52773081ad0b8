// Package event forwards local cart activity to Kafka.
package event

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/internal/cart"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// Aggregate type and source used in the event envelope.
const (
	AggregateTypeCart = "cart"
	SourceStorefront  = "storefront"
	anonymousID       = "anonymous"
)

// DefaultBuffer is the number of events held while the producer is busy.
const DefaultBuffer = 256

// Publisher is implemented by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// CartActivityData is the payload of every cart activity event.
type CartActivityData struct {
	UserID    string         `json:"user_id"`
	ProductID string         `json:"product_id,omitempty"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Subtotal  string         `json:"subtotal"`
	Error     string         `json:"error,omitempty"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID    string  `json:"product_id"`
	Quantity     int     `json:"quantity"`
	OfferedPrice float64 `json:"offered_price"`
	Status       string  `json:"status,omitempty"`
}

type pending struct {
	event  cart.Event
	userID string
}

// Forwarder publishes cart store events to a Kafka topic. Delivery is best
// effort: events that arrive while the buffer is full are dropped and
// counted.
type Forwarder struct {
	pub    Publisher
	topic  string
	userID func() string
	queue  chan pending
	logger *slog.Logger
}

// NewForwarder creates a forwarder. userID names the shopper an event
// belongs to; an empty id is published as "anonymous".
func NewForwarder(pub Publisher, topic string, userID func() string, buffer int, logger *slog.Logger) *Forwarder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Forwarder{
		pub:    pub,
		topic:  topic,
		userID: userID,
		queue:  make(chan pending, buffer),
		logger: logger,
	}
}

// Attach subscribes to store. The returned function detaches.
func (f *Forwarder) Attach(store *cart.Store) (detach func()) {
	return store.Subscribe(f.enqueue)
}

func (f *Forwarder) enqueue(e cart.Event) {
	uid := f.userID()
	if uid == "" {
		uid = anonymousID
	}
	select {
	case f.queue <- pending{event: e, userID: uid}:
	default:
		pkgkafka.ProducerEventsDropped.WithLabelValues(f.topic).Inc()
	}
}

// Run publishes queued events until ctx is canceled.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-f.queue:
			f.publish(ctx, p)
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, p pending) {
	evt, err := pkgkafka.NewEvent("cart."+string(p.event.Kind), p.userID, AggregateTypeCart, SourceStorefront, activityData(p))
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to build cart event", slog.String("error", err.Error()))
		return
	}
	if err := f.pub.Publish(ctx, f.topic, evt); err != nil {
		f.logger.WarnContext(ctx, "cart event not forwarded",
			slog.String("event_type", evt.EventType),
			slog.String("error", err.Error()),
		)
	}
}

func activityData(p pending) CartActivityData {
	c := p.event.Cart
	items := make([]CartItemData, len(c.Items))
	for i, it := range c.Items {
		items[i] = CartItemData{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			OfferedPrice: it.OfferedPrice,
			Status:       string(it.Status),
		}
	}
	return CartActivityData{
		UserID:    p.userID,
		ProductID: p.event.ProductID,
		Items:     items,
		ItemCount: c.ItemCount(),
		Subtotal:  c.Subtotal().StringFixed(2),
		Error:     p.event.Message,
	}
}
