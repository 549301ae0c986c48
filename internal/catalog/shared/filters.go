// Package shared holds the listing filters used by the catalog and the
// dashboards: temporal buckets relative to "today" and the name/location
// search pattern.
package shared

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Bucket selects events relative to today.
type Bucket string

const (
	BucketAll      Bucket = "all"
	BucketUpcoming Bucket = "upcoming"
	BucketPast     Bucket = "past"
	BucketToday    Bucket = "today"
)

// Buckets lists the selectable buckets in display order.
func Buckets() []Bucket {
	return []Bucket{BucketAll, BucketUpcoming, BucketToday, BucketPast}
}

// ParseBucket maps a query value to a Bucket. Unknown values select all.
func ParseBucket(raw string) Bucket {
	switch Bucket(strings.ToLower(strings.TrimSpace(raw))) {
	case BucketUpcoming:
		return BucketUpcoming
	case BucketPast:
		return BucketPast
	case BucketToday:
		return BucketToday
	default:
		return BucketAll
	}
}

// Contains reports whether an event dated date falls in the bucket. Upcoming
// includes today; past is strictly before it.
func (b Bucket) Contains(date, today time.Time) bool {
	d, t := civil(date), civil(today)
	switch b {
	case BucketUpcoming:
		return !d.Before(t)
	case BucketPast:
		return d.Before(t)
	case BucketToday:
		return d.Equal(t)
	default:
		return true
	}
}

// Today returns the calendar date of now in loc, at midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return civil(now.In(loc))
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SQL returns the WHERE fragment for the bucket against column, using the
// placeholder for today. It is empty for BucketAll.
func (b Bucket) SQL(column, placeholder string) string {
	switch b {
	case BucketUpcoming:
		return column + " >= " + placeholder
	case BucketPast:
		return column + " < " + placeholder
	case BucketToday:
		return column + " = " + placeholder
	default:
		return ""
	}
}

// ListFilters narrows event listings.
type ListFilters struct {
	Search string
	Bucket Bucket
	Today  time.Time
	Page   int
	Limit  int
}

// Normalize fills defaults and clamps paging.
func (f ListFilters) Normalize() ListFilters {
	f.Search = strings.TrimSpace(f.Search)
	if f.Bucket == "" {
		f.Bucket = BucketAll
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 25
	}
	return f
}

// Offset is the row offset of the current page.
func (f ListFilters) Offset() int {
	return (f.Page - 1) * f.Limit
}

// lower lowercases s rune by rune without expanding characters such as "ß",
// which keeps the needle comparable under ILIKE. Casers carry state, so one is
// built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// SearchPattern returns an ILIKE pattern matching search as a substring, with
// LIKE metacharacters escaped. It is empty when search is blank.
func SearchPattern(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(lower(search)) + "%"
}

// MatchesSearch reports whether name or location contains search, ignoring
// case. It mirrors the SQL filter for in-memory callers.
func MatchesSearch(search, name, location string) bool {
	search = strings.TrimSpace(search)
	if search == "" {
		return true
	}
	needle := lower(search)
	return strings.Contains(lower(name), needle) || strings.Contains(lower(location), needle)
}
