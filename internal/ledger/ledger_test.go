package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/transpool/internal/graph"
	"github.com/example/transpool/internal/matcher"
	"github.com/example/transpool/internal/schedule"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

type fixture struct {
	sched  *schedule.Schedule
	engine *matcher.Engine
	ledger *Ledger
	offer  *schedule.Offer
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	m, err := graph.New(10, 10)
	require.NoError(t, err)
	require.NoError(t, m.AddStop("A", 0, 0))
	require.NoError(t, m.AddStop("B", 1, 0))
	require.NoError(t, m.AddStop("C", 2, 0))
	require.NoError(t, m.AddPath("A", "B", 10, 1, 60, true))
	require.NoError(t, m.AddPath("B", "C", 20, 1, 60, true))

	s := schedule.New(m, nil)
	o, err := s.AddOffer(schedule.OfferSpec{
		DriverID:   "dave",
		Stops:      []string{"A", "B", "C"},
		Departure:  8 * 60,
		PricePerKm: 2,
		Capacity:   capacity,
		Recurrence: schedule.Daily(),
	})
	require.NoError(t, err)

	l := New(schedule.NewIDAllocator(500))
	l.now = func() time.Time { return monday }
	return &fixture{sched: s, engine: matcher.NewEngine(s), ledger: l, offer: o}
}

func (f *fixture) rider(t *testing.T, id string, reqID int) *matcher.TripRequest {
	t.Helper()
	if _, err := f.ledger.Account(id); err != nil {
		_, err := f.ledger.OpenAccount(id, CapRider)
		require.NoError(t, err)
	}
	req := &matcher.TripRequest{ID: reqID, RiderID: id, Source: "A", Destination: "C", Date: monday, Time: 8 * 60}
	require.NoError(t, f.ledger.AddRequest(req))
	return req
}

func TestAcceptMatchCommitsEverything(t *testing.T) {
	f := newFixture(t, 2)
	req := f.rider(t, "rita", 1)
	var notified []*MatchedTripRequest
	f.ledger.Subscribe(SubscriberFunc(func(m *MatchedTripRequest) { notified = append(notified, m) }))

	routes, err := f.engine.FindPossibleMatches(req, 1)
	require.NoError(t, err)

	match, err := f.ledger.AcceptMatch(req, routes[0])
	require.NoError(t, err)

	assert.Equal(t, 500, match.ID)
	assert.Equal(t, 60, match.TotalPrice)
	assert.Equal(t, []string{"dave"}, match.Drivers)
	assert.Equal(t, []int{f.offer.ID}, match.OfferIDs)
	assert.Equal(t, monday, match.CreatedAt)
	for _, leg := range routes[0].Legs {
		assert.Equal(t, 1, leg.Remaining())
		assert.Equal(t, []string{"rita"}, leg.Riders())
	}

	rita, err := f.ledger.Account("rita")
	require.NoError(t, err)
	assert.Equal(t, -60, rita.Balance(), "balance may go negative")
	assert.Empty(t, rita.Pending())
	assert.Len(t, rita.Matches(), 1)
	assert.Equal(t, []string{"dave"}, rita.FeedbackEligible())

	dave, err := f.ledger.Account("dave")
	require.NoError(t, err)
	assert.Equal(t, 60, dave.Balance())
	assert.True(t, dave.Capabilities().Has(CapDriver))

	require.Len(t, notified, 1)
	assert.Same(t, match, notified[0])

	dto := match.Snapshot()
	assert.Equal(t, 1, dto.Request.ID)
	assert.Len(t, dto.Route, 2)
}

func TestAcceptMatchTwiceForSameRequest(t *testing.T) {
	f := newFixture(t, 2)
	req := f.rider(t, "rita", 1)
	routes, err := f.engine.FindPossibleMatches(req, 1)
	require.NoError(t, err)

	_, err = f.ledger.AcceptMatch(req, routes[0])
	require.NoError(t, err)
	_, err = f.ledger.AcceptMatch(req, routes[0])
	assert.ErrorIs(t, err, ErrUnknownRequest)
	assert.Equal(t, 1, routes[0].Legs[0].Remaining())
}

func TestRideFullAbortsWithoutPartialChange(t *testing.T) {
	f := newFixture(t, 1)
	second := f.rider(t, "sam", 2)

	stale, err := f.engine.FindPossibleMatches(second, 1)
	require.NoError(t, err)

	// rita takes B->C only, boarding at 08:10
	_, err = f.ledger.OpenAccount("rita", CapRider)
	require.NoError(t, err)
	first := &matcher.TripRequest{ID: 1, RiderID: "rita", Source: "B", Destination: "C", Date: monday, Time: 8*60 + 10}
	require.NoError(t, f.ledger.AddRequest(first))
	bc := matcher.PossibleRoute{Legs: f.sched.Legs(f.offer, monday, 1, 2)}
	_, err = f.ledger.AcceptMatch(first, bc)
	require.NoError(t, err)

	_, err = f.ledger.AcceptMatch(second, stale[0])
	assert.ErrorIs(t, err, ErrRideFull)

	sam, err := f.ledger.Account("sam")
	require.NoError(t, err)
	assert.Equal(t, 0, sam.Balance())
	assert.Len(t, sam.Pending(), 1)
	assert.Empty(t, sam.FeedbackEligible())
	assert.Equal(t, 1, stale[0].Legs[0].Remaining(), "A->B must stay untouched")
}

func TestConcurrentRidersOneSeat(t *testing.T) {
	f := newFixture(t, 1)
	const n = 20
	reqs := make([]*matcher.TripRequest, n)
	routes := make([]matcher.PossibleRoute, n)
	for i := range reqs {
		reqs[i] = f.rider(t, fmt.Sprintf("rider-%d", i), i+1)
		found, err := f.engine.FindPossibleMatches(reqs[i], 1)
		require.NoError(t, err)
		routes[i] = found[0]
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.AcceptMatch(reqs[i], routes[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrRideFull)
	}
	assert.Equal(t, 1, succeeded)

	dave, err := f.ledger.Account("dave")
	require.NoError(t, err)
	assert.Equal(t, 60, dave.Balance())
	for _, leg := range routes[0].Legs {
		assert.Equal(t, 0, leg.Remaining())
	}
}

func TestAcceptMatchContractErrors(t *testing.T) {
	f := newFixture(t, 1)
	req := &matcher.TripRequest{ID: 9, RiderID: "ghost", Source: "A", Destination: "C", Date: monday, Time: 480}
	route := matcher.PossibleRoute{Legs: f.sched.Legs(f.offer, monday, 0, 2)}

	_, err := f.ledger.AcceptMatch(req, route)
	assert.ErrorIs(t, err, ErrUnknownAccount)

	_, err = f.ledger.AcceptMatch(req, matcher.PossibleRoute{})
	assert.ErrorIs(t, err, matcher.ErrInvalidRoute)

	_, err = f.ledger.OpenAccount("dora", CapDriver)
	require.NoError(t, err)
	req.RiderID = "dora"
	assert.ErrorIs(t, f.ledger.AddRequest(req), ErrNotRider)
	_, err = f.ledger.AcceptMatch(req, route)
	assert.ErrorIs(t, err, ErrNotRider)
}

func TestFeedbackEligibility(t *testing.T) {
	f := newFixture(t, 1)
	req := f.rider(t, "rita", 1)

	assert.ErrorIs(t, f.ledger.LeaveFeedback("rita", "dave", 5, ""), ErrNotFeedbackEligible)

	routes, err := f.engine.FindPossibleMatches(req, 1)
	require.NoError(t, err)
	_, err = f.ledger.AcceptMatch(req, routes[0])
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.LeaveFeedback("rita", "dave", 6, ""), ErrInvalidRating)
	require.NoError(t, f.ledger.LeaveFeedback("rita", "dave", 4, "smooth ride"))
	assert.ErrorIs(t, f.ledger.LeaveFeedback("rita", "dave", 4, ""), ErrNotFeedbackEligible)

	dave, err := f.ledger.Account("dave")
	require.NoError(t, err)
	assert.Equal(t, 4.0, dave.AverageRating())
	assert.Equal(t, []Feedback{{RiderID: "rita", DriverID: "dave", Rating: 4, Comment: "smooth ride"}}, dave.Feedback())

	rita, err := f.ledger.Account("rita")
	require.NoError(t, err)
	assert.Empty(t, rita.FeedbackEligible())
}

func TestDepositAndAccounts(t *testing.T) {
	l := New(nil)
	_, err := l.OpenAccount("rita", CapRider|CapDriver)
	require.NoError(t, err)
	_, err = l.OpenAccount("rita", CapRider)
	assert.ErrorIs(t, err, ErrAccountExists)

	require.NoError(t, l.Deposit("rita", 100))
	assert.ErrorIs(t, l.Deposit("rita", 0), ErrInvalidAmount)
	assert.ErrorIs(t, l.Deposit("nobody", 5), ErrUnknownAccount)

	a, err := l.Account("rita")
	require.NoError(t, err)
	dto := a.Snapshot()
	assert.Equal(t, 100, dto.Balance)
	assert.True(t, dto.Rider)
	assert.True(t, dto.Driver)
}

func TestParseCapabilities(t *testing.T) {
	c, err := ParseCapabilities([]string{"rider", "Driver"})
	require.NoError(t, err)
	assert.True(t, c.Has(CapRider|CapDriver))

	_, err = ParseCapabilities([]string{"pilot"})
	assert.ErrorIs(t, err, ErrUnknownRole)
	_, err = ParseCapabilities(nil)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestAcceptMatchRejectsRouteNotServingRequest(t *testing.T) {
	f := newFixture(t, 1)
	req := f.rider(t, "rita", 1)
	lastYear := monday.AddDate(-1, 0, 0)

	cases := map[string]matcher.PossibleRoute{
		"wrong source":      {Legs: f.sched.Legs(f.offer, monday, 1, 2)},
		"wrong destination": {Legs: f.sched.Legs(f.offer, monday, 0, 1)},
		"wrong date":        {Legs: f.sched.Legs(f.offer, lastYear, 0, 2)},
		"wrong run":         {Legs: f.sched.Legs(f.offer, monday.AddDate(0, 0, 1), 0, 2)},
	}
	for name, route := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ledger.AcceptMatch(req, route)
			assert.ErrorIs(t, err, matcher.ErrInvalidRoute)
			for _, leg := range route.Legs {
				assert.Equal(t, 1, leg.Remaining())
			}
		})
	}

	rita, err := f.ledger.Account("rita")
	require.NoError(t, err)
	assert.Len(t, rita.Pending(), 1)
	assert.Equal(t, 0, rita.Balance())
}
