package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParseBucket(t *testing.T) {
	assert.Equal(t, BucketUpcoming, ParseBucket("upcoming"))
	assert.Equal(t, BucketPast, ParseBucket(" PAST "))
	assert.Equal(t, BucketToday, ParseBucket("today"))
	assert.Equal(t, BucketAll, ParseBucket(""))
	assert.Equal(t, BucketAll, ParseBucket("yesterday"))
}

func TestPastBucketScenario(t *testing.T) {
	today := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{today.AddDate(0, 0, -1), today, today.AddDate(0, 0, 1)}

	var past []time.Time
	for _, d := range dates {
		if BucketPast.Contains(d, today) {
			past = append(past, d)
		}
	}
	assert.Equal(t, []time.Time{today.AddDate(0, 0, -1)}, past)
	assert.True(t, BucketToday.Contains(today.Add(23*time.Hour), today))
	assert.True(t, BucketUpcoming.Contains(dates[2], today))
	assert.True(t, BucketUpcoming.Contains(today, today))
}

func TestUpcomingAndPastPartitionDates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		today := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rapid.IntRange(0, 3650).Draw(t, "today"))
		date := today.AddDate(0, 0, rapid.IntRange(-400, 400).Draw(t, "offset"))

		upcoming := BucketUpcoming.Contains(date, today)
		past := BucketPast.Contains(date, today)
		if upcoming == past {
			t.Fatalf("date %s: upcoming=%v past=%v for today %s", date, upcoming, past, today)
		}
		if BucketToday.Contains(date, today) && !upcoming {
			t.Fatalf("today's date %s not upcoming", date)
		}
		if !BucketAll.Contains(date, today) {
			t.Fatalf("all bucket rejected %s", date)
		}
	})
}

func TestTodayUsesLocation(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Today(now, nil))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Today(now, tokyo))
}

func TestBucketSQL(t *testing.T) {
	assert.Equal(t, "e.date >= $1", BucketUpcoming.SQL("e.date", "$1"))
	assert.Equal(t, "e.date < $1", BucketPast.SQL("e.date", "$1"))
	assert.Equal(t, "e.date = $1", BucketToday.SQL("e.date", "$1"))
	assert.Empty(t, BucketAll.SQL("e.date", "$1"))
}

func TestSearchPattern(t *testing.T) {
	assert.Empty(t, SearchPattern("   "))
	assert.Equal(t, "%workshop%", SearchPattern(" Workshop "))
	assert.Equal(t, `%50\%\_off%`, SearchPattern("50%_off"))
}

func TestMatchesSearch(t *testing.T) {
	assert.True(t, MatchesSearch("", "anything", ""))
	assert.True(t, MatchesSearch("hall", "Go Meetup", "Main HALL"))
	assert.True(t, MatchesSearch("MEET", "Go Meetup", ""))
	assert.False(t, MatchesSearch("gala", "Go Meetup", "Main Hall"))
}

func TestSearchPatternAgreesWithMatchesSearch(t *testing.T) {
	assert.Equal(t, "%straße%", SearchPattern("Straße"))
	assert.True(t, MatchesSearch("Straße", "Straße", ""))
	assert.True(t, MatchesSearch("STRAßE", "Konzert", "Hauptstraße 5"))
	assert.False(t, MatchesSearch("strasse", "Straße", ""), "no expansion, same as ILIKE")
	assert.Equal(t, "%ärger%", SearchPattern("ÄRGER"))
}

func TestListFiltersNormalize(t *testing.T) {
	f := ListFilters{Search: "  x ", Page: -3, Limit: 1000}.Normalize()
	assert.Equal(t, "x", f.Search)
	assert.Equal(t, BucketAll, f.Bucket)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 25, f.Limit)
	assert.Equal(t, 0, f.Offset())
	assert.Equal(t, 50, ListFilters{Page: 3, Limit: 25}.Offset())
}
