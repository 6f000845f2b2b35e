package trips

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store/memory"
	"github.com/yatri-app/backend/pkg/retry"
)

var today = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := NewService(st, zap.NewNop(),
		WithClock(func() time.Time { return today }),
		WithRetryPolicy(retry.Policy{Attempts: 2, Backoff: time.Millisecond}),
	)
	return svc, st
}

func newUser(t *testing.T, st *memory.Store, name string) uuid.UUID {
	t.Helper()
	u := &models.User{Email: name + "@example.com", DisplayName: name, PasswordHash: "x"}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u.ID
}

func manaliInput() CreateInput {
	return CreateInput{
		Destination: "Manali",
		StartDate:   "2025-06-01",
		EndDate:     "2025-06-05",
		TripType:    models.TripTypeTrek,
		BudgetRange: models.BudgetRangeMidRange,
		GroupType:   models.GroupTypeMixed,
		MaxMembers:  6,
	}
}

var answers = models.ScreeningAnswers{ArrivalTime: "morning", FirstVisit: "yes", GroupStay: "yes"}

func TestCreateTripListsOwnerAsOnlyMember(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")

	created, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", created.StartDate)
	assert.Equal(t, models.TripStatusOpen, created.Status)

	mine, err := svc.ListMine(ctx, u1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)
	assert.True(t, mine[0].IsOwner)
	assert.True(t, mine[0].IsMember)
	assert.Equal(t, 1, mine[0].MemberCount)
}

func TestJoinRequestAcceptFlow(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	u2 := newUser(t, st, "u2")
	trip, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)

	req, created, err := svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RequestStatusPending, req.Status)

	pending, err := svc.ListPending(ctx, trip.ID, u1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, u2, pending[0].UserID)
	assert.Equal(t, "u2", pending[0].RequesterName)

	reviewed, err := svc.Review(ctx, ReviewInput{RequestID: req.ID, TripID: trip.ID, RequesterID: u2, ReviewerID: u1, Action: models.RequestStatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, u1, *reviewed.ReviewedBy)

	mine, err := svc.ListMine(ctx, u2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsMember)
	assert.False(t, mine[0].IsOwner)
	assert.Equal(t, 2, mine[0].MemberCount)
	require.NotNil(t, mine[0].MyRequestStatus)
	assert.Equal(t, models.RequestStatusAccepted, *mine[0].MyRequestStatus)

	pending, err = svc.ListPending(ctx, trip.ID, u1)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeclineKeepsRequesterOutside(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	u2 := newUser(t, st, "u2")
	trip, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)
	req, _, err := svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers})
	require.NoError(t, err)

	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: u1, Action: models.RequestStatusDeclined})
	require.NoError(t, err)

	mine, err := svc.ListMine(ctx, u2)
	require.NoError(t, err)
	require.Len(t, mine, 1, "declined requests stay visible")
	assert.False(t, mine[0].IsMember)
	require.NotNil(t, mine[0].MyRequestStatus)
	assert.Equal(t, models.RequestStatusDeclined, *mine[0].MyRequestStatus)
	assert.Equal(t, 1, mine[0].MemberCount)
}

func TestSecondReviewIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	u2 := newUser(t, st, "u2")
	trip, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)
	req, _, err := svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers})
	require.NoError(t, err)

	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: u1, Action: models.RequestStatusDeclined})
	require.NoError(t, err)
	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: u1, Action: models.RequestStatusAccepted})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	member, err := st.Members().IsMember(ctx, trip.ID, u2)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestReviewAuthorizationAndCrossChecks(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	u2 := newUser(t, st, "u2")
	u3 := newUser(t, st, "u3")
	trip, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)
	other, err := svc.Create(ctx, manaliInput(), u3)
	require.NoError(t, err)
	req, _, err := svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers})
	require.NoError(t, err)

	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: u3, Action: models.RequestStatusAccepted})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, TripID: other.ID, ReviewerID: u1, Action: models.RequestStatusAccepted})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, RequesterID: u3, ReviewerID: u1, Action: models.RequestStatusAccepted})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: u1, Action: models.RequestStatusPending})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Review(ctx, ReviewInput{RequestID: uuid.New(), ReviewerID: u1, Action: models.RequestStatusAccepted})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.ListPending(ctx, trip.ID, u2)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestRequestToJoinIsIdempotentWhilePending(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	u2 := newUser(t, st, "u2")
	trip, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)

	first, created, err := svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers, Message: "hi"})
	require.NoError(t, err)
	require.True(t, created)
	again, created, err := svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	pending, err := svc.ListPending(ctx, trip.ID, u1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, _, err = svc.RequestToJoin(ctx, trip.ID, u1, JoinInput{Answers: answers})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "owner is already a member")
}

func TestRequestToJoinValidation(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	u2 := newUser(t, st, "u2")
	trip, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)

	_, _, err = svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: models.ScreeningAnswers{ArrivalTime: "morning", FirstVisit: "  "}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, _, err = svc.RequestToJoin(ctx, uuid.New(), u2, JoinInput{Answers: answers})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, st.Trips().CloseTrip(ctx, trip.ID))
	_, _, err = svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")

	cases := map[string]func(*CreateInput){
		"missing destination": func(in *CreateInput) { in.Destination = " " },
		"malformed date":      func(in *CreateInput) { in.StartDate = "01/06/2025" },
		"end before start":    func(in *CreateInput) { in.EndDate = "2025-05-30" },
		"unknown trip type":   func(in *CreateInput) { in.TripType = "cruise" },
		"unknown budget":      func(in *CreateInput) { in.BudgetRange = "luxury" },
		"unknown group":       func(in *CreateInput) { in.GroupType = "solo" },
		"missing max members": func(in *CreateInput) { in.MaxMembers = 0 },
		"negative max":        func(in *CreateInput) { in.MaxMembers = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := manaliInput()
			mutate(&in)
			_, err := svc.Create(ctx, in, u1)
			assert.True(t, apperr.Is(err, apperr.KindValidation), err)
		})
	}

	mine, err := svc.ListMine(ctx, u1)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCreateRollsBackWhenOwnerMembershipFails(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	st.InjectFault("AddMember", errors.New("connection reset"))

	_, err := svc.Create(ctx, manaliInput(), u1)
	require.True(t, apperr.Is(err, apperr.KindConsistency))

	st.ClearFaults()
	trips, err := svc.Search(ctx, "", u1)
	require.NoError(t, err)
	assert.Empty(t, trips, "no orphaned trip without an owner")
}

func TestAcceptRollsBackWhenMembershipFails(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	u2 := newUser(t, st, "u2")
	trip, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)
	req, _, err := svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers})
	require.NoError(t, err)

	st.InjectFault("AddMember", errors.New("connection reset"))
	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: u1, Action: models.RequestStatusAccepted})
	require.True(t, apperr.Is(err, apperr.KindConsistency))
	st.ClearFaults()

	stored, err := st.Requests().GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, stored.Status, "decision is rolled back so it can be retried")

	_, err = svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: u1, Action: models.RequestStatusAccepted})
	require.NoError(t, err)
}

func TestSearchFiltersAndAnnotates(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1 := newUser(t, st, "u1")
	u2 := newUser(t, st, "u2")
	require.NoError(t, st.SetVerified(ctx, u1, true))

	later := manaliInput()
	later.StartDate, later.EndDate = "2025-07-01", "2025-07-04"
	_, err := svc.Create(ctx, later, u1)
	require.NoError(t, err)
	_, err = svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)
	past := manaliInput()
	past.StartDate, past.EndDate = "2025-04-01", "2025-04-03"
	_, err = svc.Create(ctx, past, u1)
	require.NoError(t, err)
	goa := manaliInput()
	goa.Destination = "Goa"
	_, err = svc.Create(ctx, goa, u1)
	require.NoError(t, err)

	results, err := svc.Search(ctx, "  manali ", u2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "2025-06-01", results[0].StartDate)
	assert.Equal(t, "2025-07-01", results[1].StartDate)
	for _, r := range results {
		assert.False(t, r.IsMember)
		assert.Nil(t, r.MyRequestStatus)
		assert.Equal(t, 1, r.MemberCount)
		assert.Equal(t, 1, r.VerifiedCount)
	}

	all, err := svc.Search(ctx, "", u2)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSearchSurfacesTransientErrorsAfterRetry(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	newUser(t, st, "u1")
	st.InjectFault("SearchOpenTrips", context.DeadlineExceeded)

	_, err := svc.Search(ctx, "", uuid.New())
	assert.True(t, apperr.IsTransient(err))
}

func TestReviewProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("a resolved request never changes and never adds a second membership", prop.ForAll(
		func(first, second bool, repeats int) bool {
			ctx := context.Background()
			svc, st := newTestService(t)
			owner := newUser(t, st, "owner")
			joiner := newUser(t, st, "joiner")
			trip, err := svc.Create(ctx, manaliInput(), owner)
			if err != nil {
				return false
			}
			req, _, err := svc.RequestToJoin(ctx, trip.ID, joiner, JoinInput{Answers: answers})
			if err != nil {
				return false
			}
			action := func(accept bool) models.RequestStatus {
				if accept {
					return models.RequestStatusAccepted
				}
				return models.RequestStatusDeclined
			}
			if _, err := svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: owner, Action: action(first)}); err != nil {
				return false
			}
			for i := 0; i < repeats; i++ {
				_, err := svc.Review(ctx, ReviewInput{RequestID: req.ID, ReviewerID: owner, Action: action(second)})
				if !apperr.Is(err, apperr.KindConflict) {
					return false
				}
			}
			members, err := st.Members().ListMembers(ctx, []uuid.UUID{trip.ID})
			if err != nil {
				return false
			}
			stored, err := st.Requests().GetRequest(ctx, req.ID)
			if err != nil || stored.Status != action(first) {
				return false
			}
			want := 1
			if first {
				want = 2
			}
			return len(members) == want
		},
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

func TestGetAnnotatesForViewer(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	u1, u2 := newUser(t, st, "u1"), newUser(t, st, "u2")

	trip, err := svc.Create(ctx, manaliInput(), u1)
	require.NoError(t, err)
	_, _, err = svc.RequestToJoin(ctx, trip.ID, u2, JoinInput{Answers: answers})
	require.NoError(t, err)

	asOwner, err := svc.Get(ctx, trip.ID, u1)
	require.NoError(t, err)
	assert.True(t, asOwner.IsOwner)
	assert.Nil(t, asOwner.MyRequestStatus)

	asRequester, err := svc.Get(ctx, trip.ID, u2)
	require.NoError(t, err)
	assert.False(t, asRequester.IsMember)
	require.NotNil(t, asRequester.MyRequestStatus)
	assert.Equal(t, models.RequestStatusPending, *asRequester.MyRequestStatus)

	_, err = svc.Get(ctx, uuid.New(), u1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
