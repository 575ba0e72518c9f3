package domain

import "time"

// DefaultPageSize matches the history view's items per page.
const DefaultPageSize = 10

// MaxPageSize caps page_size and limit parameters.
const MaxPageSize = 100

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to sane values.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// ClampLimit maps a non-positive limit to DefaultPageSize and caps it at
// MaxPageSize.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return min(limit, MaxPageSize)
}

// Range returns the inclusive row range [from, to] covered by the page.
func (p Page) Range() (from, to int) {
	p = p.Normalize()
	from = (p.Number - 1) * p.Size
	to = from + p.Size - 1
	return from, to
}

// Cursor is a keyset position in a created_at-descending log listing.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// LogQuery selects a window of a user's logs ordered by created_at descending.
// A zero Limit returns every matching row. After, when set, takes precedence
// over Offset.
type LogQuery struct {
	Offset int
	Limit  int
	After  *Cursor
}

// QueryForPage converts a page request into a LogQuery.
func QueryForPage(p Page) LogQuery {
	from, to := p.Range()
	return LogQuery{Offset: from, Limit: to - from + 1}
}
