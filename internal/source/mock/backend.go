// Package mock is an in-process source.Backend backed by SQLite. It lets
// the app run without the notification service and lets tests script a
// feed. Each Backend owns its own database; there is no shared state.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/notification-sync/internal/source"
)

// State tokens stored in the estado column.
const (
	stateSent = "enviado"
	stateRead = source.StateRead
)

// Seed describes one notification to insert.
type Seed struct {
	ID           string
	SubscriberID string
	EventType    string
	Title        string
	Message      string

	// ChannelIDs are service channel codes; source.ChannelCodePush marks
	// a push delivery. Empty means email.
	ChannelIDs []int

	Read      bool
	Metadata  map[string]any
	CreatedAt time.Time
}

// row mirrors the notifications table.
type row struct {
	ID           string `db:"id"`
	SubscriberID string `db:"subscriber_id"`
	EventType    string `db:"event_type"`
	Title        string `db:"title"`
	Message      string `db:"message"`
	ChannelIDs   string `db:"channel_ids"`
	State        string `db:"estado"`
	Metadata     string `db:"metadata"`
	CreatedAtMS  int64  `db:"created_at_ms"`
}

// Backend implements source.Backend on a SQLite database.
type Backend struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ source.Backend = (*Backend)(nil)

// New opens a SQLite database at dsn (":memory:" for a throwaway feed)
// and runs any pending schema migrations.
func New(dsn string) (*Backend, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every pooled connection to :memory: would get its own database.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, now: time.Now}
	if err := b.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return b, nil
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (b *Backend) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := b.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = b.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := b.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Insert stores s and returns its id. Missing ids and timestamps are
// filled in.
func (b *Backend) Insert(ctx context.Context, s Seed) (string, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = b.now()
	}
	if len(s.ChannelIDs) == 0 {
		s.ChannelIDs = []int{source.ChannelCodeEmail}
	}

	channels, err := json.Marshal(s.ChannelIDs)
	if err != nil {
		return "", fmt.Errorf("marshaling channel ids: %w", err)
	}
	metadata := []byte("{}")
	if s.Metadata != nil {
		if metadata, err = json.Marshal(s.Metadata); err != nil {
			return "", fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	state := stateSent
	if s.Read {
		state = stateRead
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, subscriber_id, event_type, title, message,
			channel_ids, estado, metadata, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.SubscriberID, s.EventType, s.Title, s.Message,
		string(channels), state, string(metadata), s.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting notification %s: %w", s.ID, err)
	}
	return s.ID, nil
}

// Count returns the number of notifications stored for subscriberID.
func (b *Backend) Count(ctx context.Context, subscriberID string) (int, error) {
	var n int
	if err := b.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM notifications WHERE subscriber_id = ?", subscriberID,
	); err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return n, nil
}

// FetchPage returns service-shape records, newest first.
func (b *Backend) FetchPage(
	ctx context.Context,
	subscriberID string,
	page int,
	limit int,
) ([]source.RawRecord, error) {
	if page < 1 {
		page = 1
	}
	rows, err := b.query(ctx, subscriberID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	out := make([]source.RawRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.serviceRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// FetchHistory returns history-shape records of the same notifications.
func (b *Backend) FetchHistory(
	ctx context.Context,
	subscriberID string,
	limit int,
) ([]source.RawRecord, error) {
	rows, err := b.query(ctx, subscriberID, limit, 0)
	if err != nil {
		return nil, err
	}

	out := make([]source.RawRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.historyRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkRead flips the stored state. Unknown ids are declined.
func (b *Backend) MarkRead(
	ctx context.Context,
	id string,
	subscriberID string,
) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		"UPDATE notifications SET estado = ? WHERE id = ? AND subscriber_id = ?",
		stateRead, id, subscriberID,
	)
	if err != nil {
		return false, fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return n > 0, nil
}

func (b *Backend) query(ctx context.Context, subscriberID string, limit, offset int) ([]row, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []row
	err := b.db.SelectContext(ctx, &rows, `
		SELECT * FROM notifications
		WHERE subscriber_id = ?
		ORDER BY created_at_ms DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		subscriberID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	return rows, nil
}

func (r row) decode() ([]int, map[string]any, error) {
	var channels []int
	if err := json.Unmarshal([]byte(r.ChannelIDs), &channels); err != nil {
		return nil, nil, fmt.Errorf("decoding channel ids for %s: %w", r.ID, err)
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(r.Metadata), &metadata); err != nil {
		return nil, nil, fmt.Errorf("decoding metadata for %s: %w", r.ID, err)
	}
	return channels, metadata, nil
}

func (r row) timestamp() string {
	return time.UnixMilli(r.CreatedAtMS).UTC().Format(time.RFC3339Nano)
}

func (r row) serviceRecord() (source.RawRecord, error) {
	channels, metadata, err := r.decode()
	if err != nil {
		return nil, err
	}
	return source.Encode(source.ServiceRecord{
		ID:         source.FlexString(r.ID),
		Timestamp:  r.timestamp(),
		SenderID:   "mock",
		ReceiverID: source.FlexString(r.SubscriberID),
		ChannelIDs: channels,
		State:      r.State,
		Title:      r.Title,
		Message:    r.Message,
		Type:       r.EventType,
		Metadata:   metadata,
	})
}

func (r row) historyRecord() (source.RawRecord, error) {
	channels, metadata, err := r.decode()
	if err != nil {
		return nil, err
	}
	status := "sent"
	if r.State == stateRead {
		status = "read"
	}
	return source.Encode(source.HistoryRecord{
		ID:        source.FlexString(r.ID),
		EventType: r.EventType,
		Subject:   r.Title,
		Channel:   channelName(channels),
		Status:    status,
		SentAt:    r.timestamp(),
		Metadata:  metadata,
	})
}

// channelName is the history feed's string form of a code list.
func channelName(codes []int) string {
	name := "email"
	for _, c := range codes {
		switch c {
		case source.ChannelCodePush:
			return "push"
		case source.ChannelCodeSMS:
			name = "sms"
		}
	}
	return name
}
