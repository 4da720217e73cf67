package email

import (
	"slices"
	"time"
)

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	Flags     []string // \Seen, \Flagged, \Answered, \Deleted
	UID       uint32
}

// Message is an envelope plus a plain-text body preview.
type Message struct {
	Envelope Envelope
	TextBody string
}

// sortNewestFirst orders messages by UID descending.
func sortNewestFirst(msgs []Message) {
	slices.SortFunc(msgs, func(a, b Message) int {
		return int(int64(b.Envelope.UID) - int64(a.Envelope.UID))
	})
}
