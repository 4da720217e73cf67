package source

import (
	"encoding/json"
	"fmt"
)

// Numeric channel codes used by the notification service shape.
const (
	ChannelCodeEmail = 1
	ChannelCodeSMS   = 2
	ChannelCodePush  = 3
)

// StateRead is the service shape's "read" state token.
const StateRead = "leido"

// FlexString decodes from either a JSON string or a JSON number. Backends
// disagree on whether identifiers are numeric.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier is neither string nor number: %s", b)
	}
	*f = FlexString(n.String())
	return nil
}

// ServiceRecord is the notification service's native shape, served by
// GET /notifications/user/:id.
type ServiceRecord struct {
	ID         FlexString     `json:"id_notificacion"`
	Timestamp  string         `json:"fecha_hora"`
	SenderID   FlexString     `json:"id_emisor,omitempty"`
	ReceiverID FlexString     `json:"id_receptor,omitempty"`
	TemplateID int            `json:"id_plantilla,omitempty"`
	ChannelIDs []int          `json:"channel_ids,omitempty"`
	State      string         `json:"estado,omitempty"`
	Title      string         `json:"title,omitempty"`
	Message    string         `json:"message,omitempty"`
	Type       string         `json:"type,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// HistoryRecord is the per-user delivery history shape, served by
// GET /notifications/user-history/:id.
type HistoryRecord struct {
	ID        FlexString     `json:"id"`
	EventType string         `json:"eventType,omitempty"`
	Title     string         `json:"title,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Status    string         `json:"status,omitempty"`
	SentAt    string         `json:"sentAt,omitempty"`
	CreatedAt string         `json:"createdAt,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// InternalRecord is the in-app feed shape. Every internal record belongs
// to the internal channel.
type InternalRecord struct {
	ID        string         `json:"_id"`
	Title     string         `json:"title,omitempty"`
	Content   string         `json:"content,omitempty"`
	Status    string         `json:"status,omitempty"`
	CreatedAt string         `json:"createdAt,omitempty"`
	SentAt    string         `json:"sentAt,omitempty"`
	IsRead    bool           `json:"isRead"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Encode marshals v into a RawRecord. It is used by backends that build
// records locally.
func Encode(v any) (RawRecord, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return RawRecord(b), nil
}
