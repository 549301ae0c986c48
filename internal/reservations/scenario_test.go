package reservations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/odyssey-erp/eventhub/internal/shared"
)

// WorkshopScenarioSuite walks an event from publication through reservation
// to removal of its category.
type WorkshopScenarioSuite struct {
	suite.Suite
	store    *memStore
	notifier *recordingNotifier
	service  *Service
	ctx      context.Context
	category int64
	event    int64
}

func (s *WorkshopScenarioSuite) SetupTest() {
	s.store = newMemStore()
	s.notifier = &recordingNotifier{}
	s.service = NewService(s.store, s.store, s.notifier, nil, nil)
	s.ctx = context.Background()
	s.category = s.store.addCategory("Workshops")
	s.event = s.store.addEvent("Go Workshop", "2025-06-01", s.category)
}

func (s *WorkshopScenarioSuite) TestReserveTwice() {
	result, err := s.service.Reserve(s.ctx, participant, s.event)
	s.Require().NoError(err)
	s.Equal(OutcomeReserved, result.Outcome)
	s.Equal(1, s.notifier.count())
	s.Equal("pat@example.com", s.notifier.sent[0].to.Email)

	result, err = s.service.Reserve(s.ctx, participant, s.event)
	s.Require().NoError(err)
	s.Equal(OutcomeAlreadyReserved, result.Outcome)
	s.Equal(1, s.store.count(participant.UserID, s.event))
	s.Equal(1, s.notifier.count())
}

func (s *WorkshopScenarioSuite) TestDeletingCategoryRemovesEventAndReservations() {
	_, err := s.service.Reserve(s.ctx, participant, s.event)
	s.Require().NoError(err)
	_, err = s.service.Reserve(s.ctx, admin, s.event)
	s.Require().NoError(err)
	s.Equal(2, s.store.reservationsFor(s.event))

	s.store.deleteCategory(s.category)

	_, err = s.store.Get(s.ctx, s.event)
	s.ErrorIs(err, shared.ErrNotFound)
	s.Zero(s.store.reservationsFor(s.event))
	_, err = s.service.Reserve(s.ctx, participant, s.event)
	s.ErrorIs(err, shared.ErrNotFound)
}

func (s *WorkshopScenarioSuite) TestDeletingEventKeepsCategory() {
	_, err := s.service.Reserve(s.ctx, participant, s.event)
	s.Require().NoError(err)

	s.store.deleteEvent(s.event)

	s.Zero(s.store.reservationsFor(s.event))
	s.Contains(s.store.categories, s.category)
}

func TestWorkshopScenarioSuite(t *testing.T) {
	suite.Run(t, new(WorkshopScenarioSuite))
}
