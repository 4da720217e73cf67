// Package ordering sorts and deduplicates notification lists. Neither
// function modifies its input.
package ordering

import (
	"slices"

	"github.com/nhle/notification-sync/internal/model"
)

// SortDesc returns a copy of list ordered newest first. Entries with the
// same CreatedAt keep their input order.
func SortDesc(list []model.Notification) []model.Notification {
	type indexed struct {
		n   model.Notification
		pos int
	}

	tmp := make([]indexed, len(list))
	for i, n := range list {
		tmp[i] = indexed{n: n, pos: i}
	}

	slices.SortFunc(tmp, func(a, b indexed) int {
		if c := b.n.CreatedAt.Compare(a.n.CreatedAt); c != 0 {
			return c
		}
		return a.pos - b.pos
	})

	out := make([]model.Notification, len(tmp))
	for i, e := range tmp {
		out[i] = e.n
	}
	return out
}

// DedupeByID returns a copy of list keeping only the first occurrence of
// each ID.
func DedupeByID(list []model.Notification) []model.Notification {
	seen := make(map[string]struct{}, len(list))
	out := make([]model.Notification, 0, len(list))
	for _, n := range list {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Merge concatenates page before history, deduplicates and sorts. The
// page copy of an id wins over its history copy.
func Merge(page, history []model.Notification) []model.Notification {
	all := make([]model.Notification, 0, len(page)+len(history))
	all = append(all, page...)
	all = append(all, history...)
	return SortDesc(DedupeByID(all))
}
