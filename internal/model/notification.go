package model

import (
	"maps"
	"time"
)

// Channel is the logical delivery channel of a notification.
// Raw "push" values never survive normalization; they collapse into
// ChannelInternal and are remembered in Meta.WasPush.
type Channel string

const (
	ChannelInternal Channel = "internal"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
)

// Meta holds kind-specific attributes plus the two reserved push flags.
type Meta struct {
	// WasPush is true when the backend delivered the record over a
	// push-like channel before it was normalized to ChannelInternal.
	WasPush bool `json:"wasPush"`

	// OriginalChannel is the channel string as the backend reported it.
	OriginalChannel string `json:"originalChannel,omitempty"`

	// Attrs is the open bag: amounts, order/payment ids, deadlines,
	// action targets.
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Attr returns the attribute stored under key, if any.
func (m Meta) Attr(key string) (any, bool) {
	v, ok := m.Attrs[key]
	return v, ok
}

// Notification is the canonical entity every downstream component
// consumes. It is a value: copies never share Attrs with the backend
// payload, and only IsRead changes after construction.
type Notification struct {
	// ID is unique within a subscriber's lifetime and is the dedup key.
	ID string `json:"id"`

	// Kind is the event category (see Kind* constants).
	Kind Kind `json:"kind"`

	// Title is the display headline, backend-provided or derived from Body.
	Title string `json:"title"`

	// Body is the optional secondary text.
	Body string `json:"body,omitempty"`

	// Channel is the normalized delivery channel.
	Channel Channel `json:"channel,omitempty"`

	// Status is the backend delivery status, passed through untouched.
	Status string `json:"status,omitempty"`

	// CreatedAt is the sole sort key.
	CreatedAt time.Time `json:"createdAt"`

	// SentAt is informational and may be zero.
	SentAt time.Time `json:"sentAt,omitzero"`

	// IsRead is flipped only after the backend acknowledges a read.
	IsRead bool `json:"isRead"`

	Meta Meta `json:"meta"`
}

// WithRead returns a copy of n with IsRead set to read. Attrs are
// cloned so the copy stays independent of n.
func (n Notification) WithRead(read bool) Notification {
	out := n
	out.IsRead = read
	out.Meta.Attrs = maps.Clone(n.Meta.Attrs)
	return out
}
