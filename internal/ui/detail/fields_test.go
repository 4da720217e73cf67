package detail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/notification-sync/internal/model"
)

func withAttrs(attrs map[string]any) model.Notification {
	return model.Notification{ID: "n1", Kind: model.KindPaymentDispute, Meta: model.Meta{Attrs: attrs}}
}

func TestFields_DisplayOrderAndFormatting(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := withAttrs(map[string]any{
		"amount":           float64(1500),
		"currency":         "eur",
		"paymentId":        "PAY-1",
		"disputeId":        "DSP-9",
		"responseDeadline": now.Add(2 * time.Hour).Format(time.RFC3339),
		"unrelated":        "ignored",
	})

	got := Fields(n, now)

	assert.Equal(t, []Field{
		{Label: "Amount", Value: "1,500 EUR"},
		{Label: "Payment", Value: "PAY-1"},
		{Label: "Dispute", Value: "DSP-9"},
		{Label: "Respond by", Value: "2 hours from now"},
	}, got)
}

func TestFields_SkipsMissingAndUnusable(t *testing.T) {
	n := withAttrs(map[string]any{
		"amount":  "not a number",
		"orderId": "  ",
		"status":  nil,
	})
	assert.Empty(t, Fields(n, time.Now()))
	assert.Empty(t, Fields(model.Notification{}, time.Now()))
}

func TestFields_NumericStringsAndRawDeadline(t *testing.T) {
	n := withAttrs(map[string]any{
		"amount":           "42",
		"orderId":          123,
		"responseDeadline": "next friday",
	})

	got := Fields(n, time.Now())

	assert.Equal(t, []Field{
		{Label: "Amount", Value: "42"},
		{Label: "Order", Value: "123"},
		{Label: "Respond by", Value: "next friday"},
	}, got)
}

func TestSetNotification_RendersAttributes(t *testing.T) {
	m := New(80, 20)
	m.SetSize(80, 20)
	n := withAttrs(map[string]any{"orderId": "ORD-77"})
	n.Title = "Order shipped"
	n.Body = "On its way."
	n.CreatedAt = time.Now().Add(-time.Minute)

	m.SetNotification(&n)

	out := m.renderContent()
	assert.Contains(t, out, "Order shipped")
	assert.Contains(t, out, "ORD-77")
	assert.Contains(t, out, "On its way.")

	m.SetNotification(nil)
	assert.Empty(t, m.renderContent())
}
