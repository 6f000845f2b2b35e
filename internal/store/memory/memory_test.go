package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

func seedUser(t *testing.T, s *Store, name string) uuid.UUID {
	t.Helper()
	u := &models.User{Email: name + "@example.com", DisplayName: name}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u.ID
}

func seedTrip(t *testing.T, s *Store, owner uuid.UUID, dest string, start time.Time) *models.Trip {
	t.Helper()
	trip := &models.Trip{
		Destination: dest, StartDate: start, EndDate: start.AddDate(0, 0, 3),
		TripType: models.TripTypeTrek, BudgetRange: models.BudgetRangeMidRange,
		GroupType: models.GroupTypeMixed, MaxMembers: 4, CreatedBy: owner,
	}
	require.NoError(t, s.Trips().CreateTrip(context.Background(), trip))
	return trip
}

func TestSearchOpenTripsFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := seedUser(t, s, "asha")
	today := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	later := seedTrip(t, s, owner, "Manali", today.AddDate(0, 1, 0))
	sooner := seedTrip(t, s, owner, "Old Manali", today.AddDate(0, 0, 5))
	seedTrip(t, s, owner, "Goa", today.AddDate(0, 0, 1))
	seedTrip(t, s, owner, "Manali", today.AddDate(0, 0, -1))

	trips, err := s.Trips().SearchOpenTrips(ctx, store.TripFilter{Destination: "manALI", StartsOnOrAfter: today})
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, sooner.ID, trips[0].ID)
	assert.Equal(t, later.ID, trips[1].ID)

	require.NoError(t, s.Trips().CloseTrip(ctx, sooner.ID))
	trips, err = s.Trips().SearchOpenTrips(ctx, store.TripFilter{StartsOnOrAfter: today})
	require.NoError(t, err)
	assert.Len(t, trips, 2)
	assert.ErrorIs(t, s.Trips().CloseTrip(ctx, sooner.ID), store.ErrConflict)
}

func TestCreateRequestReturnsExistingPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := seedUser(t, s, "asha")
	joiner := seedUser(t, s, "ravi")
	trip := seedTrip(t, s, owner, "Rishikesh", time.Now().AddDate(0, 1, 0))

	first := &models.TripRequest{TripID: trip.ID, UserID: joiner, Message: "hello"}
	created, err := s.Requests().CreateRequest(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &models.TripRequest{TripID: trip.ID, UserID: joiner, Message: "again"}
	created, err = s.Requests().CreateRequest(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "hello", second.Message)

	require.NoError(t, s.Requests().ResolveRequest(ctx, first.ID, models.RequestStatusDeclined, owner))
	assert.ErrorIs(t, s.Requests().ResolveRequest(ctx, first.ID, models.RequestStatusAccepted, owner), store.ErrConflict)
	assert.ErrorIs(t, s.Requests().ResolveRequest(ctx, uuid.New(), models.RequestStatusAccepted, owner), store.ErrNotFound)

	third := &models.TripRequest{TripID: trip.ID, UserID: joiner}
	created, err = s.Requests().CreateRequest(ctx, third)
	require.NoError(t, err)
	assert.True(t, created, "a declined request does not block a new one")
}

func TestCreateMessageRequiresMembership(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := seedUser(t, s, "asha")
	stranger := seedUser(t, s, "zed")
	trip := seedTrip(t, s, owner, "Kasol", time.Now())
	require.NoError(t, s.Members().AddMember(ctx, &models.TripMember{TripID: trip.ID, UserID: owner, Role: models.MemberRoleOwner}))

	err := s.Messages().CreateMessage(ctx, &models.TripMessage{TripID: trip.ID, UserID: stranger, Content: "hi"})
	assert.ErrorIs(t, err, store.ErrForbidden)

	for _, c := range []string{"one", "two", "three"} {
		require.NoError(t, s.Messages().CreateMessage(ctx, &models.TripMessage{TripID: trip.ID, UserID: owner, Content: c}))
	}
	msgs, err := s.Messages().ListMessages(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
	assert.True(t, msgs[1].CreatedAt.Before(msgs[2].CreatedAt))

	require.NoError(t, s.Trips().CloseTrip(ctx, trip.ID))
	err = s.Messages().CreateMessage(ctx, &models.TripMessage{TripID: trip.ID, UserID: owner, Content: "late"})
	assert.ErrorIs(t, err, store.ErrConflict)
	err = s.Messages().CreateMessage(ctx, &models.TripMessage{TripID: trip.ID, UserID: stranger, Content: "late"})
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestSecondOwnerIsRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := seedUser(t, s, "asha")
	other := seedUser(t, s, "ravi")
	trip := seedTrip(t, s, owner, "Kasol", time.Now())

	require.NoError(t, s.Members().AddMember(ctx, &models.TripMember{TripID: trip.ID, UserID: owner, Role: models.MemberRoleOwner}))
	err := s.Members().AddMember(ctx, &models.TripMember{TripID: trip.ID, UserID: other, Role: models.MemberRoleOwner})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := seedUser(t, s, "asha")
	boom := errors.New("membership write failed")
	s.InjectFault("AddMember", boom)

	var tripID uuid.UUID
	err := s.WithTx(ctx, func(tx store.Store) error {
		trip := seedTrip(t, tx.(*Store), owner, "Spiti", time.Now())
		tripID = trip.ID
		return tx.Members().AddMember(ctx, &models.TripMember{TripID: trip.ID, UserID: owner, Role: models.MemberRoleOwner})
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Trips().GetTrip(ctx, tripID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	s.ClearFaults()
	err = s.WithTx(ctx, func(tx store.Store) error {
		trip := seedTrip(t, tx.(*Store), owner, "Spiti", time.Now())
		tripID = trip.ID
		return tx.Members().AddMember(ctx, &models.TripMember{TripID: trip.ID, UserID: owner, Role: models.MemberRoleOwner})
	})
	require.NoError(t, err)
	ok, err := s.Members().IsMember(ctx, tripID, owner)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetProfilesOmitsUnknown(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seedUser(t, s, "asha")
	require.NoError(t, s.SetVerified(ctx, a, true))

	profiles, err := s.Users().GetProfiles(ctx, []uuid.UUID{a, uuid.New()})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.True(t, profiles[a].Verified)
	assert.Equal(t, "asha", profiles[a].DisplayName)
}
