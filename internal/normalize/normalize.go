// Package normalize maps the backend's heterogeneous record shapes onto
// model.Notification. Every function here is pure.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/source"
)

// ErrMalformed marks a record that cannot become a Notification. Such
// records are dropped, never propagated.
var ErrMalformed = errors.New("malformed record")

// MaxTitleRunes is the display length of a title derived from the body,
// ellipsis included.
const MaxTitleRunes = 60

const ellipsis = "…"

// timeLayouts are tried in order when parsing backend timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// shape identifies which raw record layout a payload uses.
type shape int

const (
	shapeUnknown shape = iota
	shapeService
	shapeHistory
	shapeInternal
)

// detect picks the shape by key presence.
func detect(keys map[string]json.RawMessage) shape {
	if _, ok := keys["id_notificacion"]; ok {
		return shapeService
	}
	if _, ok := keys["_id"]; ok {
		return shapeInternal
	}
	if _, ok := keys["id"]; ok {
		return shapeHistory
	}
	return shapeUnknown
}

// Normalize converts one raw record into a Notification.
func Normalize(raw source.RawRecord) (model.Notification, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil || keys == nil {
		return model.Notification{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	switch detect(keys) {
	case shapeService:
		var rec source.ServiceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return model.Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fromService(rec)
	case shapeHistory:
		var rec source.HistoryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return model.Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fromHistory(rec)
	case shapeInternal:
		var rec source.InternalRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return model.Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fromInternal(rec)
	default:
		return model.Notification{}, fmt.Errorf("%w: unrecognized shape", ErrMalformed)
	}
}

// NormalizeAll normalizes raws in order, dropping malformed records.
func NormalizeAll(raws []source.RawRecord) ([]model.Notification, int) {
	out := make([]model.Notification, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		n, err := Normalize(raw)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, n)
	}
	return out, dropped
}

func fromService(rec source.ServiceRecord) (model.Notification, error) {
	id := strings.TrimSpace(string(rec.ID))
	if id == "" {
		return model.Notification{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	createdAt, err := parseTime(rec.Timestamp)
	if err != nil {
		return model.Notification{}, err
	}

	wasPush := slices.Contains(rec.ChannelIDs, source.ChannelCodePush)
	channel := channelFromCodes(rec.ChannelIDs)
	original := string(channel)
	if wasPush {
		channel = model.ChannelInternal
		original = "push"
	}

	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = deriveTitle(rec.Message, rec.Type)
	}

	return model.Notification{
		ID:        id,
		Kind:      model.KindFromEventType(rec.Type),
		Title:     title,
		Body:      rec.Message,
		Channel:   channel,
		Status:    rec.State,
		CreatedAt: createdAt,
		SentAt:    createdAt,
		IsRead:    isReadState(rec.State),
		Meta: model.Meta{
			WasPush:         wasPush,
			OriginalChannel: original,
			Attrs:           maps.Clone(rec.Metadata),
		},
	}, nil
}

func fromHistory(rec source.HistoryRecord) (model.Notification, error) {
	id := strings.TrimSpace(string(rec.ID))
	if id == "" {
		return model.Notification{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	ts := rec.CreatedAt
	if ts == "" {
		ts = rec.SentAt
	}
	createdAt, err := parseTime(ts)
	if err != nil {
		return model.Notification{}, err
	}
	sentAt, _ := parseTime(rec.SentAt)

	channel, wasPush := normalizeChannel(rec.Channel)

	title := strings.TrimSpace(rec.Title)
	body := rec.Subject
	if title == "" {
		title = deriveTitle(body, rec.EventType)
		// A one-line subject already became the title.
		if strings.TrimSpace(body) == title {
			body = ""
		}
	}

	return model.Notification{
		ID:        id,
		Kind:      model.KindFromEventType(rec.EventType),
		Title:     title,
		Body:      body,
		Channel:   channel,
		Status:    rec.Status,
		CreatedAt: createdAt,
		SentAt:    sentAt,
		IsRead:    isReadState(rec.Status),
		Meta: model.Meta{
			WasPush:         wasPush,
			OriginalChannel: rec.Channel,
			Attrs:           maps.Clone(rec.Metadata),
		},
	}, nil
}

func fromInternal(rec source.InternalRecord) (model.Notification, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return model.Notification{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	ts := rec.CreatedAt
	if ts == "" {
		ts = rec.SentAt
	}
	createdAt, err := parseTime(ts)
	if err != nil {
		return model.Notification{}, err
	}
	sentAt, _ := parseTime(rec.SentAt)

	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = deriveTitle(rec.Content, "")
	}

	return model.Notification{
		ID:        id,
		Kind:      kindFromMetadata(rec.Metadata),
		Title:     title,
		Body:      rec.Content,
		Channel:   model.ChannelInternal,
		Status:    rec.Status,
		CreatedAt: createdAt,
		SentAt:    sentAt,
		IsRead:    rec.IsRead || isReadState(rec.Status),
		Meta: model.Meta{
			OriginalChannel: string(model.ChannelInternal),
			Attrs:           maps.Clone(rec.Metadata),
		},
	}, nil
}

// kindFromMetadata reads the event type internal records carry in
// their metadata, if any.
func kindFromMetadata(md map[string]any) model.Kind {
	for _, key := range []string{"eventType", "type"} {
		if s, ok := md[key].(string); ok {
			return model.KindFromEventType(s)
		}
	}
	return model.KindGeneric
}

// channelFromCodes picks the primary non-push channel from numeric codes.
func channelFromCodes(codes []int) model.Channel {
	switch {
	case slices.Contains(codes, source.ChannelCodeEmail):
		return model.ChannelEmail
	case slices.Contains(codes, source.ChannelCodeSMS):
		return model.ChannelSMS
	default:
		return model.ChannelEmail
	}
}

// normalizeChannel collapses push into internal.
func normalizeChannel(raw string) (model.Channel, bool) {
	if strings.EqualFold(strings.TrimSpace(raw), "push") {
		return model.ChannelInternal, true
	}
	return model.Channel(raw), false
}

func isReadState(state string) bool {
	s := strings.ToLower(strings.TrimSpace(state))
	return s == source.StateRead || s == "read"
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrMalformed, s)
}

// deriveTitle builds a title from the first non-empty body line, then
// the event type, then a fixed fallback.
func deriveTitle(body, eventType string) string {
	for line := range strings.Lines(body) {
		line = strings.TrimSpace(line)
		if line != "" {
			return truncate(line, MaxTitleRunes)
		}
	}
	if et := strings.TrimSpace(eventType); et != "" {
		return strings.ToUpper(strings.ReplaceAll(et, "_", " "))
	}
	return "Notification"
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + ellipsis
}
