package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/source"
)

var currencies = []string{"USD", "EUR", "MXN"}

var orderStatuses = []string{"processing", "packed", "out_for_delivery", "delivered"}

// templates holds a title and message per event type. The message may
// reference the order or payment id with %s.
var templates = map[string][2]string{
	"order_created":        {"Order placed", "Your order %s has been received."},
	"order_canceled":       {"Order canceled", "Order %s was canceled and will be refunded."},
	"order_shipped":        {"Order shipped", "Order %s is on its way."},
	"order_status_changed": {"Order update", "Order %s changed status."},
	"payment_confirmed":    {"Payment confirmed", "Payment %s went through."},
	"payment_status":       {"Payment status changed", "Payment %s is being reviewed."},
	"payment_issue":        {"Payment failed", "We could not charge payment %s. Please retry."},
	"payment_dispute":      {"Payment disputed", "A dispute was opened for payment %s."},
}

// shortID returns an upper-case 8 character reference.
func shortID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.New().String()[:8])
}

// RandomSeed builds a plausible random notification for subscriberID.
// About half are delivered over push.
func RandomSeed(rnd *rand.Rand, subscriberID string, now time.Time) Seed {
	eventTypes := model.EventTypes()
	eventType := eventTypes[rnd.IntN(len(eventTypes))]

	channels := []int{source.ChannelCodeEmail}
	if rnd.IntN(2) == 0 {
		channels = append(channels, source.ChannelCodePush)
	}

	md := map[string]any{
		"amount":   float64(rnd.IntN(50000)) / 100,
		"currency": currencies[rnd.IntN(len(currencies))],
	}

	ref := ""
	switch {
	case strings.HasPrefix(eventType, "order_"):
		ref = shortID("ORD")
		md["orderId"] = ref
		if eventType == "order_status_changed" {
			md["status"] = orderStatuses[rnd.IntN(len(orderStatuses))]
		}
	case eventType == "payment_dispute":
		ref = shortID("PAY")
		md["paymentId"] = ref
		md["disputeId"] = shortID("DSP")
		md["responseDeadline"] = now.Add(72 * time.Hour).UTC().Format(time.RFC3339)
	default:
		ref = shortID("PAY")
		md["paymentId"] = ref
		if eventType == "payment_issue" {
			md["retryUrl"] = "https://pay.example.com/retry/" + ref
		}
	}

	tmpl := templates[eventType]
	return Seed{
		ID:           uuid.New().String(),
		SubscriberID: subscriberID,
		EventType:    eventType,
		Title:        tmpl[0],
		Message:      fmt.Sprintf(tmpl[1], ref),
		ChannelIDs:   channels,
		Metadata:     md,
		CreatedAt:    now,
	}
}

// Generate inserts one random notification and returns it.
func (b *Backend) Generate(ctx context.Context, rnd *rand.Rand, subscriberID string) (Seed, error) {
	s := RandomSeed(rnd, subscriberID, b.now())
	if _, err := b.Insert(ctx, s); err != nil {
		return Seed{}, fmt.Errorf("generating notification: %w", err)
	}
	return s, nil
}

// Populate inserts n random notifications spread over the past n hours,
// some already read. It gives a fresh mock feed something to show.
func (b *Backend) Populate(ctx context.Context, rnd *rand.Rand, subscriberID string, n int) error {
	now := b.now()
	for i := range n {
		s := RandomSeed(rnd, subscriberID, now.Add(-time.Duration(i+1)*time.Hour))
		s.Read = rnd.IntN(3) == 0
		if _, err := b.Insert(ctx, s); err != nil {
			return fmt.Errorf("populating mock feed: %w", err)
		}
	}
	return nil
}
