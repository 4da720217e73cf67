package model

import "strings"

// ReadFilter selects which notifications a list view shows.
type ReadFilter string

const (
	FilterAll    ReadFilter = "all"
	FilterUnread ReadFilter = "unread"
	FilterRead   ReadFilter = "read"
)

// ParseReadFilter parses s, falling back to FilterAll.
func ParseReadFilter(s string) ReadFilter {
	switch ReadFilter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterUnread:
		return FilterUnread
	case FilterRead:
		return FilterRead
	default:
		return FilterAll
	}
}

// Next cycles all -> unread -> read -> all.
func (f ReadFilter) Next() ReadFilter {
	switch f {
	case FilterAll:
		return FilterUnread
	case FilterUnread:
		return FilterRead
	default:
		return FilterAll
	}
}

// Match reports whether n passes the filter.
func (f ReadFilter) Match(n Notification) bool {
	switch f {
	case FilterRead:
		return n.IsRead
	case FilterUnread:
		return !n.IsRead
	default:
		return true
	}
}
