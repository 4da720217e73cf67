// Package readstate derives filtered views and read/unread counts from a
// notification list, and reconciles locally confirmed reads against
// fresher fetches.
package readstate

import (
	"time"

	"github.com/nhle/notification-sync/internal/model"
)

// Counts summarises the whole list, independent of any filter.
type Counts struct {
	Total  int `json:"total"`
	Read   int `json:"read"`
	Unread int `json:"unread"`
}

// Result is a filtered view plus counts over the unfiltered list.
type Result struct {
	Items  []model.Notification `json:"items"`
	Counts Counts               `json:"counts"`
}

// View applies filter to list. Items preserve list order.
func View(list []model.Notification, filter model.ReadFilter) Result {
	res := Result{Items: make([]model.Notification, 0, len(list))}
	for _, n := range list {
		res.Counts.Total++
		if n.IsRead {
			res.Counts.Read++
		} else {
			res.Counts.Unread++
		}
		if filter.Match(n) {
			res.Items = append(res.Items, n)
		}
	}
	return res
}

// Ledger remembers reads the backend acknowledged. Within the grace
// window a confirmed read is not downgraded by a fetch that still
// reports the item unread. A Ledger is not safe for concurrent use.
type Ledger struct {
	grace     time.Duration
	confirmed map[string]time.Time
}

// NewLedger creates a Ledger. A zero grace lets the backend always win.
func NewLedger(grace time.Duration) *Ledger {
	return &Ledger{grace: grace, confirmed: make(map[string]time.Time)}
}

// Confirm records an acknowledged read of id at time at.
func (l *Ledger) Confirm(id string, at time.Time) {
	l.confirmed[id] = at
}

// Apply returns a copy of list with confirmed reads overlaid. Entries the
// backend already reports read, and entries older than the grace window,
// are forgotten.
func (l *Ledger) Apply(list []model.Notification, now time.Time) []model.Notification {
	out := make([]model.Notification, len(list))
	copy(out, list)

	for i, n := range out {
		at, ok := l.confirmed[n.ID]
		if !ok {
			continue
		}
		switch {
		case n.IsRead:
			delete(l.confirmed, n.ID)
		case now.Sub(at) < l.grace:
			out[i] = n.WithRead(true)
		default:
			delete(l.confirmed, n.ID)
		}
	}

	for id, at := range l.confirmed {
		if now.Sub(at) >= l.grace {
			delete(l.confirmed, id)
		}
	}
	return out
}

// Len returns the number of reads still held.
func (l *Ledger) Len() int {
	return len(l.confirmed)
}
