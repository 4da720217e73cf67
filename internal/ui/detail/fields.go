package detail

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nhle/notification-sync/internal/model"
)

// Field is one labelled, display-ready attribute.
type Field struct {
	Label string
	Value string
}

// extractor turns an attribute bag into a display value.
type extractor struct {
	label string
	value func(attrs map[string]any, now time.Time) (string, bool)
}

// extractors run in display order. Absent or unusable attributes are
// skipped.
var extractors = []extractor{
	{label: "Amount", value: amount},
	{label: "Order", value: text("orderId")},
	{label: "Payment", value: text("paymentId")},
	{label: "Dispute", value: text("disputeId")},
	{label: "Status", value: text("status")},
	{label: "Respond by", value: deadline},
	{label: "Retry at", value: text("retryUrl")},
}

// Fields extracts the kind-specific attributes of n.
func Fields(n model.Notification, now time.Time) []Field {
	var out []Field
	for _, ex := range extractors {
		if v, ok := ex.value(n.Meta.Attrs, now); ok {
			out = append(out, Field{Label: ex.label, Value: v})
		}
	}
	return out
}

func text(key string) func(map[string]any, time.Time) (string, bool) {
	return func(attrs map[string]any, _ time.Time) (string, bool) {
		v, ok := attrs[key]
		if !ok || v == nil {
			return "", false
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		return s, s != ""
	}
}

func amount(attrs map[string]any, _ time.Time) (string, bool) {
	f, ok := number(attrs["amount"])
	if !ok {
		return "", false
	}
	s := humanize.CommafWithDigits(f, 2)
	if cur, ok := attrs["currency"].(string); ok && cur != "" {
		s += " " + strings.ToUpper(cur)
	}
	return s, true
}

func deadline(attrs map[string]any, now time.Time) (string, bool) {
	raw, ok := attrs["responseDeadline"].(string)
	if !ok || raw == "" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw, true
	}
	return humanize.RelTime(t, now, "ago", "from now"), true
}

// number accepts JSON numbers and numeric strings.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
