package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/notify"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// memStore is an in-memory catalog plus reservation table. The rsvps map
// plays the role of the (user_id, event_id) unique index and the delete
// helpers mirror the ON DELETE CASCADE foreign keys.
type memStore struct {
	mu         sync.Mutex
	categories map[int64]string
	events     map[int64]events.Event
	rsvps      map[[2]int64]Reservation
	nextID     int64
	// raceWindow makes Exists report false so concurrent callers all reach
	// the insert, as they can against a real database.
	raceWindow bool
}

func newMemStore() *memStore {
	return &memStore{
		categories: map[int64]string{},
		events:     map[int64]events.Event{},
		rsvps:      map[[2]int64]Reservation{},
		nextID:     1,
	}
}

func (m *memStore) addCategory(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.categories[id] = name
	return id
}

func (m *memStore) addEvent(name, date string, categoryID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, _ := time.Parse("2006-01-02", date)
	id := m.nextID
	m.nextID++
	m.events[id] = events.Event{ID: id, Name: name, Date: d, Time: "18:00", Location: "Hall A", CategoryID: categoryID, CategoryName: m.categories[categoryID]}
	return id
}

func (m *memStore) deleteEvent(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteEventLocked(id)
}

func (m *memStore) deleteEventLocked(id int64) {
	delete(m.events, id)
	for key := range m.rsvps {
		if key[1] == id {
			delete(m.rsvps, key)
		}
	}
}

func (m *memStore) deleteCategory(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for eventID, e := range m.events {
		if e.CategoryID == id {
			m.deleteEventLocked(eventID)
		}
	}
	delete(m.categories, id)
}

func (m *memStore) count(userID, eventID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.rsvps {
		if key == [2]int64{userID, eventID} {
			n++
		}
	}
	return n
}

func (m *memStore) reservationsFor(eventID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.rsvps {
		if key[1] == eventID {
			n++
		}
	}
	return n
}

func (m *memStore) Get(_ context.Context, id int64) (events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return events.Event{}, shared.ErrNotFound
	}
	return e, nil
}

func (m *memStore) Exists(_ context.Context, userID, eventID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceWindow {
		return false, nil
	}
	_, ok := m.rsvps[[2]int64{userID, eventID}]
	return ok, nil
}

func (m *memStore) Create(_ context.Context, userID, eventID int64) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return Reservation{}, shared.ErrNotFound
	}
	key := [2]int64{userID, eventID}
	if _, ok := m.rsvps[key]; ok {
		return Reservation{}, ErrAlreadyReserved
	}
	res := Reservation{ID: m.nextID, UserID: userID, EventID: eventID, CreatedAt: time.Now()}
	m.nextID++
	m.rsvps[key] = res
	return res, nil
}

func (m *memStore) ListForUser(_ context.Context, userID int64) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Event
	for key := range m.rsvps {
		if key[0] == userID {
			out = append(out, m.events[key[1]])
		}
	}
	return out, nil
}

type sentMail struct {
	to    notify.Recipient
	event notify.EventInfo
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) ReservationCreated(_ context.Context, to notify.Recipient, event notify.EventInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to: to, event: event})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *outcomeCounter) ReservationOutcome(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[outcome]++
}

var (
	admin       = rbac.Principal{UserID: 1, Username: "root", Email: "root@example.com", Authenticated: true, Groups: []string{"Admin"}}
	organizer   = rbac.Principal{UserID: 2, Username: "olga", Email: "olga@example.com", Authenticated: true, Groups: []string{"Organizer"}}
	participant = rbac.Principal{UserID: 3, Username: "pat", Email: "pat@example.com", Authenticated: true, Groups: []string{"Participant"}}
)

func TestReserveCreatesOnceAndNotifies(t *testing.T) {
	store := newMemStore()
	eventID := store.addEvent("Go Workshop", "2025-06-01", store.addCategory("Workshops"))
	notifier := &recordingNotifier{}
	outcomes := &outcomeCounter{}
	svc := NewService(store, store, notifier, outcomes, nil)

	result, err := svc.Reserve(context.Background(), participant, eventID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReserved, result.Outcome)
	assert.Equal(t, "You have successfully RSVP’d to Go Workshop.", result.Outcome.Message(result.Event.Name))
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "pat@example.com", notifier.sent[0].to.Email)
	assert.Equal(t, "Go Workshop", notifier.sent[0].event.Name)

	result, err = svc.Reserve(context.Background(), participant, eventID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyReserved, result.Outcome)
	assert.Equal(t, "You have already RSVP’d to Go Workshop.", result.Outcome.Message(result.Event.Name))
	assert.Equal(t, 1, store.count(participant.UserID, eventID))
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, map[string]int{"reserved": 1, "already_reserved": 1}, outcomes.counts)
}

func TestReserveGuard(t *testing.T) {
	store := newMemStore()
	eventID := store.addEvent("Go Workshop", "2025-06-01", store.addCategory("Workshops"))
	svc := NewService(store, store, nil, nil, nil)

	for _, p := range []rbac.Principal{organizer, {UserID: 9, Authenticated: true}, rbac.Anonymous} {
		_, err := svc.Reserve(context.Background(), p, eventID)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	}
	result, err := svc.Reserve(context.Background(), admin, eventID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReserved, result.Outcome)
}

func TestReserveMissingEvent(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, store, notifier, nil, nil)

	_, err := svc.Reserve(context.Background(), participant, 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Zero(t, notifier.count())
}

func TestConcurrentReserveKeepsOneReservation(t *testing.T) {
	store := newMemStore()
	store.raceWindow = true
	eventID := store.addEvent("Go Workshop", "2025-06-01", store.addCategory("Workshops"))
	notifier := &recordingNotifier{}
	svc := NewService(store, store, notifier, nil, nil)

	const callers = 32
	var wg sync.WaitGroup
	results := make(chan Outcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Reserve(context.Background(), participant, eventID)
			assert.NoError(t, err)
			results <- result.Outcome
		}()
	}
	wg.Wait()
	close(results)

	reserved := 0
	for outcome := range results {
		if outcome == OutcomeReserved {
			reserved++
		} else {
			assert.Equal(t, OutcomeAlreadyReserved, outcome)
		}
	}
	assert.Equal(t, 1, reserved)
	assert.Equal(t, 1, store.count(participant.UserID, eventID))
	assert.Equal(t, 1, notifier.count())
}

func TestIsReservedAndListForUser(t *testing.T) {
	store := newMemStore()
	cat := store.addCategory("Workshops")
	first := store.addEvent("Go Workshop", "2025-06-01", cat)
	second := store.addEvent("Rust Workshop", "2025-06-08", cat)
	svc := NewService(store, store, nil, nil, nil)

	_, err := svc.Reserve(context.Background(), participant, second)
	require.NoError(t, err)

	reserved, err := svc.IsReserved(context.Background(), participant.UserID, second)
	require.NoError(t, err)
	assert.True(t, reserved)
	reserved, err = svc.IsReserved(context.Background(), participant.UserID, first)
	require.NoError(t, err)
	assert.False(t, reserved)

	list, err := svc.ListForUser(context.Background(), participant.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Rust Workshop", list[0].Name)
}
