package dashboard

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	catalog "github.com/odyssey-erp/eventhub/internal/catalog/shared"
	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

type reservation struct {
	user  string
	event int64
	at    time.Time
}

type mockRepository struct {
	events       []events.Event
	reservations []reservation
	userIDs      map[string]int64
	fail         error
	snapshotDays []string
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func (m *mockRepository) filter(bucket catalog.Bucket, today string) []events.Event {
	var out []events.Event
	for _, e := range m.events {
		if bucket.Contains(e.Date, date(today)) {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockRepository) CountEvents(_ context.Context, bucket catalog.Bucket, today string) (int, error) {
	if m.fail != nil {
		return 0, m.fail
	}
	return len(m.filter(bucket, today)), nil
}

func (m *mockRepository) AdminSnapshot(_ context.Context, today string) (AdminSnapshot, error) {
	m.snapshotDays = append(m.snapshotDays, today)
	if m.fail != nil {
		return AdminSnapshot{}, m.fail
	}
	seen := map[string]struct{}{}
	for _, r := range m.reservations {
		seen[r.user] = struct{}{}
	}
	return AdminSnapshot{
		TotalEvents:       len(m.filter(catalog.BucketAll, today)),
		TotalParticipants: len(seen),
		UpcomingCount:     len(m.filter(catalog.BucketUpcoming, today)),
		PastCount:         len(m.filter(catalog.BucketPast, today)),
		TodaysEvents:      m.filter(catalog.BucketToday, today),
	}, nil
}

func (m *mockRepository) EventsIn(_ context.Context, bucket catalog.Bucket, today string) ([]events.Event, error) {
	return m.filter(bucket, today), nil
}

func (m *mockRepository) event(id int64) events.Event {
	for _, e := range m.events {
		if e.ID == id {
			return e
		}
	}
	return events.Event{}
}

func (m *mockRepository) Participants(context.Context) ([]ParticipantRow, error) {
	var rows []ParticipantRow
	for _, r := range m.reservations {
		e := m.event(r.event)
		rows = append(rows, ParticipantRow{Username: r.user, Email: r.user + "@example.com", EventName: e.Name, EventDate: e.Date, ReservedAt: r.at})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Username < rows[j].Username })
	return rows, nil
}

func (m *mockRepository) ReservedEvents(_ context.Context, userID int64) ([]events.Event, error) {
	var out []events.Event
	for _, r := range m.reservations {
		if m.userIDs[r.user] == userID {
			out = append(out, m.event(r.event))
		}
	}
	return out, nil
}

var (
	admin       = rbac.Principal{UserID: 1, Authenticated: true, Groups: []string{"Admin"}}
	organizer   = rbac.Principal{UserID: 2, Authenticated: true, Groups: []string{"Organizer"}}
	participant = rbac.Principal{UserID: 3, Authenticated: true, Groups: []string{"Participant"}}
)

func fixture() *mockRepository {
	return &mockRepository{
		events: []events.Event{
			{ID: 1, Name: "Go Workshop", Date: date("2025-06-01")},
			{ID: 2, Name: "Jazz Night", Date: date("2025-06-02")},
			{ID: 3, Name: "Hackathon", Date: date("2025-07-15")},
		},
		reservations: []reservation{
			{user: "pat", event: 1},
			{user: "pat", event: 3},
			{user: "sam", event: 3},
		},
		userIDs: map[string]int64{"pat": 3, "sam": 4},
	}
}

func clock(day string) func() time.Time {
	return func() time.Time { return date(day).Add(10 * time.Hour) }
}

func TestAdminDashboard(t *testing.T) {
	svc := NewService(fixture(), time.UTC, clock("2025-06-02"))

	view, err := svc.Admin(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, view.Role)
	assert.Equal(t, 3, view.TotalEvents)
	assert.Equal(t, 2, view.TotalParticipants)
	assert.Equal(t, 2, view.UpcomingCount)
	assert.Equal(t, 1, view.PastCount)
	require.Len(t, view.TodaysEvents, 1)
	assert.Equal(t, "Jazz Night", view.TodaysEvents[0].Name)

	_, err = svc.Admin(context.Background(), organizer)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCountsFollowTheClock(t *testing.T) {
	now := date("2025-06-02")
	svc := NewService(fixture(), time.UTC, func() time.Time { return now })

	view, err := svc.Admin(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 1, view.PastCount)

	now = date("2025-06-03")
	view, err = svc.Admin(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 2, view.PastCount)
	assert.Empty(t, view.TodaysEvents)
}

func TestTodayUsesConfiguredLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 20:00 UTC on June 1st is already June 2nd in Jakarta.
	svc := NewService(fixture(), jakarta, func() time.Time { return time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC) })

	view, err := svc.Admin(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, view.TodaysEvents, 1)
	assert.Equal(t, "Jazz Night", view.TodaysEvents[0].Name)
}

func TestOrganizerDashboardFiltersByBucket(t *testing.T) {
	svc := NewService(fixture(), time.UTC, clock("2025-06-02"))

	view, err := svc.Organizer(context.Background(), organizer, catalog.BucketPast)
	require.NoError(t, err)
	assert.Equal(t, catalog.BucketPast, view.Bucket)
	assert.Equal(t, 1, view.TotalEvents)
	assert.Equal(t, 2, view.UpcomingCount)
	assert.Equal(t, 1, view.PastCount)

	view, err = svc.Organizer(context.Background(), admin, "")
	require.NoError(t, err)
	assert.Equal(t, catalog.BucketAll, view.Bucket)
	assert.Equal(t, 3, view.TotalEvents)

	_, err = svc.Organizer(context.Background(), participant, catalog.BucketAll)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestParticipantsAndParticipantViews(t *testing.T) {
	svc := NewService(fixture(), time.UTC, clock("2025-06-02"))

	list, err := svc.Participants(context.Background(), organizer)
	require.NoError(t, err)
	assert.Len(t, list.Rows, 3)
	_, err = svc.Participants(context.Background(), participant)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	mine, err := svc.Participant(context.Background(), participant)
	require.NoError(t, err)
	require.Len(t, mine.Events, 2)
	assert.Equal(t, "Go Workshop", mine.Events[0].Name)
	_, err = svc.Participant(context.Background(), organizer)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAdminDashboardReadsOneSnapshot(t *testing.T) {
	repo := fixture()
	svc := NewService(repo, time.UTC, clock("2025-06-02"))

	_, err := svc.Admin(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-02"}, repo.snapshotDays)
}

func TestAdminDashboardPropagatesErrors(t *testing.T) {
	repo := fixture()
	repo.fail = errors.New("db down")
	svc := NewService(repo, time.UTC, clock("2025-06-02"))

	_, err := svc.Admin(context.Background(), admin)
	assert.EqualError(t, err, "db down")
}

func TestUpcomingAndPastCoverEveryEvent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := date("2025-01-01")
		n := rapid.IntRange(0, 30).Draw(t, "n")
		repo := &mockRepository{}
		for i := 0; i < n; i++ {
			offset := rapid.IntRange(0, 365).Draw(t, "offset")
			repo.events = append(repo.events, events.Event{ID: int64(i + 1), Date: base.AddDate(0, 0, offset)})
		}
		todayOffset := rapid.IntRange(0, 365).Draw(t, "today")
		svc := NewService(repo, time.UTC, func() time.Time { return base.AddDate(0, 0, todayOffset) })

		view, err := svc.Admin(context.Background(), admin)
		if err != nil {
			t.Fatal(err)
		}
		if view.UpcomingCount+view.PastCount != view.TotalEvents {
			t.Fatalf("upcoming %d + past %d != total %d", view.UpcomingCount, view.PastCount, view.TotalEvents)
		}
		if len(view.TodaysEvents) > view.UpcomingCount {
			t.Fatalf("today's events %d exceed upcoming %d", len(view.TodaysEvents), view.UpcomingCount)
		}
	})
}
