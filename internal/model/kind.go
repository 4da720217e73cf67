package model

import "strings"

// Kind is the closed set of event categories a notification can carry.
type Kind string

const (
	KindOrderCreated         Kind = "ORDER_CREATED"
	KindOrderCanceled        Kind = "ORDER_CANCELED"
	KindOrderShipped         Kind = "ORDER_SHIPPED"
	KindOrderStatusUpdated   Kind = "ORDER_STATUS_UPDATED"
	KindPaymentConfirmed     Kind = "PAYMENT_CONFIRMED"
	KindPaymentStatusChanged Kind = "PAYMENT_STATUS_CHANGED"
	KindPaymentIssue         Kind = "PAYMENT_ISSUE"
	KindPaymentDispute       Kind = "PAYMENT_DISPUTE"
	KindGeneric              Kind = "GENERIC"
)

// Kinds lists every Kind in display order.
var Kinds = []Kind{
	KindOrderCreated,
	KindOrderCanceled,
	KindOrderShipped,
	KindOrderStatusUpdated,
	KindPaymentConfirmed,
	KindPaymentStatusChanged,
	KindPaymentIssue,
	KindPaymentDispute,
	KindGeneric,
}

// eventKinds maps backend event type strings to kinds. Several backend
// revisions spell the same event differently; all spellings are listed.
var eventKinds = map[string]Kind{
	"order_created":          KindOrderCreated,
	"order_canceled":         KindOrderCanceled,
	"order_cancelled":        KindOrderCanceled,
	"order_shipped":          KindOrderShipped,
	"order_status_changed":   KindOrderStatusUpdated,
	"order_status_updated":   KindOrderStatusUpdated,
	"payment_confirmed":      KindPaymentConfirmed,
	"payment_status":         KindPaymentStatusChanged,
	"payment_status_changed": KindPaymentStatusChanged,
	"payment_issue":          KindPaymentIssue,
	"payment_dispute":        KindPaymentDispute,
}

// KindFromEventType maps a backend event type to a Kind. Unknown or
// empty event types map to KindGeneric.
func KindFromEventType(eventType string) Kind {
	if k, ok := eventKinds[strings.ToLower(strings.TrimSpace(eventType))]; ok {
		return k
	}
	return KindGeneric
}

// EventTypes returns the canonical backend event type for each non-generic
// kind, in display order. Used by the mock generator and compose form.
func EventTypes() []string {
	return []string{
		"order_created",
		"order_canceled",
		"order_shipped",
		"order_status_changed",
		"payment_confirmed",
		"payment_status",
		"payment_issue",
		"payment_dispute",
	}
}
