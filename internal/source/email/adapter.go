// Package email implements source.Backend on an IMAP mailbox. Each
// message becomes a history-shape record; a "[event_type]" subject
// prefix carries the event type and \Seen is the read marker.
package email

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/notification-sync/internal/source"
)

// idPrefix namespaces IMAP UIDs inside notification ids.
const idPrefix = "imap:"

// subjectTag matches a leading "[event_type]" tag.
var subjectTag = regexp.MustCompile(`^\s*\[([A-Za-z_]+)\]\s*`)

// mailClient is the subset of IMAPClient the adapter uses.
type mailClient interface {
	FetchMessages(ctx context.Context, skip, limit int) ([]Message, error)
	SetFlags(ctx context.Context, uid uint32, flags []imap.Flag, add bool) error
}

// Adapter implements source.Backend for an IMAP mailbox. The mailbox
// belongs to one subscriber, so subscriberID is not used for lookups.
type Adapter struct {
	client   mailClient
	username string
}

var _ source.Backend = (*Adapter)(nil)

// NewAdapter creates a new mailbox backend.
func NewAdapter(
	host, port string,
	username, password string,
	useTLS bool,
	mailbox string,
) *Adapter {
	return &Adapter{
		client:   NewIMAPClient(host, port, username, password, useTLS, mailbox),
		username: username,
	}
}

// FetchPage returns one page of messages, newest first.
func (a *Adapter) FetchPage(
	ctx context.Context,
	_ string,
	page int,
	limit int,
) ([]source.RawRecord, error) {
	if page < 1 {
		page = 1
	}
	msgs, err := a.client.FetchMessages(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching mailbox: %w", err)
	}

	out := make([]source.RawRecord, 0, len(msgs))
	for _, m := range msgs {
		rec, err := source.Encode(messageToRecord(m))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// FetchHistory returns nothing: a mailbox has a single timeline, which
// FetchPage already serves.
func (a *Adapter) FetchHistory(
	_ context.Context,
	_ string,
	_ int,
) ([]source.RawRecord, error) {
	return nil, nil
}

// MarkRead adds \Seen to the message. Ids not minted by this backend are
// declined.
func (a *Adapter) MarkRead(
	ctx context.Context,
	id string,
	_ string,
) (bool, error) {
	uid, ok := parseID(id)
	if !ok {
		return false, nil
	}
	if err := a.client.SetFlags(ctx, uid, []imap.Flag{imap.FlagSeen}, true); err != nil {
		return false, fmt.Errorf("marking %s read: %w", id, err)
	}
	return true, nil
}

// messageToRecord maps one message to the history record shape.
func messageToRecord(m Message) source.HistoryRecord {
	eventType, title := splitSubject(m.Envelope.Subject)

	status := "unread"
	if slices.Contains(m.Envelope.Flags, string(imap.FlagSeen)) {
		status = "read"
	}

	date := m.Envelope.Date
	if date.IsZero() {
		date = time.Unix(0, 0)
	}

	md := map[string]any{}
	if m.Envelope.From != "" {
		md["from"] = m.Envelope.From
	}
	if m.Envelope.MessageID != "" {
		md["messageId"] = m.Envelope.MessageID
	}

	return source.HistoryRecord{
		ID:        source.FlexString(formatID(m.Envelope.UID)),
		EventType: eventType,
		Title:     title,
		Subject:   m.TextBody,
		Channel:   "email",
		Status:    status,
		SentAt:    date.UTC().Format(time.RFC3339),
		Metadata:  md,
	}
}

// splitSubject separates a leading "[event_type]" tag from the subject.
func splitSubject(subject string) (eventType, rest string) {
	loc := subjectTag.FindStringSubmatchIndex(subject)
	if loc == nil {
		return "", strings.TrimSpace(subject)
	}
	return strings.ToLower(subject[loc[2]:loc[3]]), strings.TrimSpace(subject[loc[1]:])
}

func formatID(uid uint32) string {
	return idPrefix + strconv.FormatUint(uint64(uid), 10)
}

func parseID(id string) (uint32, bool) {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint32(n), true
}
