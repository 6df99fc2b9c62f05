package schedule

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/transpool/internal/graph"
)

func abcMap(t *testing.T) *graph.Map {
	t.Helper()
	m, err := graph.New(10, 10)
	require.NoError(t, err)
	require.NoError(t, m.AddStop("A", 0, 0))
	require.NoError(t, m.AddStop("B", 1, 0))
	require.NoError(t, m.AddStop("C", 2, 0))
	require.NoError(t, m.AddPath("A", "B", 10, 1.0, 60, true))
	require.NoError(t, m.AddPath("B", "C", 20, 3.0, 60, true))
	return m
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("08:05")
	require.NoError(t, err)
	assert.Equal(t, Clock(485), c)
	assert.Equal(t, "08:05", c.String())

	_, err = ParseClock("25:00")
	assert.ErrorIs(t, err, ErrInvalidTime)
	_, err = ParseDate("19/10/2026")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestParseRecurrence(t *testing.T) {
	r, err := ParseRecurrence([]string{"Monday", "fri", "2026-10-20"})
	require.NoError(t, err)
	assert.False(t, r.Continuous)
	assert.True(t, r.Includes(mustDate(t, "2026-10-19")))  // monday
	assert.True(t, r.Includes(mustDate(t, "2026-10-23")))  // friday
	assert.True(t, r.Includes(mustDate(t, "2026-10-20")))  // listed date
	assert.False(t, r.Includes(mustDate(t, "2026-10-21"))) // wednesday
	assert.Equal(t, []string{"monday", "friday", "2026-10-20"}, r.Strings())

	r, err = ParseRecurrence([]string{"daily"})
	require.NoError(t, err)
	assert.True(t, r.Includes(mustDate(t, "2026-10-21")))

	_, err = ParseRecurrence([]string{"someday"})
	assert.ErrorIs(t, err, ErrInvalidRecurrence)
	_, err = ParseRecurrence(nil)
	assert.ErrorIs(t, err, ErrInvalidRecurrence)
}

func TestNewOfferValidation(t *testing.T) {
	m := abcMap(t)
	base := OfferSpec{DriverID: "d1", Stops: []string{"A", "B", "C"}, Departure: 480, PricePerKm: 2, Capacity: 1, Recurrence: Daily()}

	spec := base
	spec.Stops = []string{"A"}
	_, err := NewOffer(m, spec)
	assert.ErrorIs(t, err, ErrRouteTooShort)

	spec = base
	spec.Stops = []string{"C", "B"}
	_, err = NewOffer(m, spec)
	assert.ErrorIs(t, err, ErrDisconnectedRoute)

	spec = base
	spec.Stops = []string{"A", "Z"}
	_, err = NewOffer(m, spec)
	assert.ErrorIs(t, err, graph.ErrUnknownStop)

	spec = base
	spec.Capacity = -1
	_, err = NewOffer(m, spec)
	assert.ErrorIs(t, err, ErrNegativeCapacity)

	spec = base
	spec.Recurrence = Recurrence{}
	_, err = NewOffer(m, spec)
	assert.ErrorIs(t, err, ErrInvalidRecurrence)

	o, err := NewOffer(m, base)
	require.NoError(t, err)
	assert.Equal(t, 30, o.Duration())
	legs := o.Legs()
	require.Len(t, legs, 2)
	assert.Equal(t, 20, legs[0].Price)
	assert.Equal(t, 40, legs[1].Price)
	assert.Equal(t, 20, legs[1].Minutes)
}

func TestOfferTimesAndSubRoute(t *testing.T) {
	m := abcMap(t)
	o, err := NewOffer(m, OfferSpec{DriverID: "d1", Stops: []string{"A", "B", "C"}, Departure: 480, Capacity: 1, Recurrence: Daily()})
	require.NoError(t, err)

	day := mustDate(t, "2026-10-19")
	assert.Equal(t, time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC), o.TimeAt(day, 0))
	assert.Equal(t, time.Date(2026, 10, 19, 8, 10, 0, 0, time.UTC), o.TimeAt(day, 1))
	assert.Equal(t, time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC), o.TimeAt(day, 2))

	i, j, ok := o.ContainsSubRoute("A", "C")
	assert.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, 2, j)

	_, _, ok = o.ContainsSubRoute("C", "A")
	assert.False(t, ok)
	_, _, ok = o.ContainsSubRoute("A", "A")
	assert.False(t, ok)
}

func TestSpanDaysAcrossMidnight(t *testing.T) {
	m := abcMap(t)
	o, err := NewOffer(m, OfferSpec{DriverID: "d", Stops: []string{"A", "B", "C"}, Departure: 23*60 + 50, Capacity: 1, Recurrence: Daily()})
	require.NoError(t, err)
	assert.Equal(t, 1, o.SpanDays())
	assert.Equal(t, time.Date(2026, 10, 20, 0, 20, 0, 0, time.UTC), o.TimeAt(mustDate(t, "2026-10-19"), 2))
}

func TestExpandOccurrencesCapacityIsPerDate(t *testing.T) {
	m := abcMap(t)
	s := New(m, NewIDAllocator(100))
	o, err := s.AddOffer(OfferSpec{DriverID: "d1", Stops: []string{"A", "B", "C"}, Departure: 480, Capacity: 2, Recurrence: Daily()})
	require.NoError(t, err)
	assert.Equal(t, 100, o.ID)

	from, to := mustDate(t, "2026-10-19"), mustDate(t, "2026-10-20")
	var got []*Occurrence
	for oc := range s.ExpandOccurrences(from, to) {
		got = append(got, oc)
	}
	require.Len(t, got, 4)
	assert.Equal(t, "2026-10-19", got[0].Key().Date)
	assert.Equal(t, 1, got[1].Key().Leg)
	assert.Equal(t, "2026-10-20", got[2].Key().Date)

	require.NoError(t, Reserve(got[:1], "r1"))
	assert.Equal(t, 1, got[0].Remaining())
	assert.Equal(t, 2, got[2].Remaining(), "other date keeps its own counter")

	// same date and leg resolves to the same counter
	same := s.Occurrence(o, from, 0)
	assert.Same(t, got[0], same)
	assert.Equal(t, []string{"r1"}, same.Riders())
}

func TestReserveIsAllOrNothing(t *testing.T) {
	m := abcMap(t)
	s := New(m, nil)
	o, err := s.AddOffer(OfferSpec{DriverID: "d1", Stops: []string{"A", "B", "C"}, Departure: 480, Capacity: 1, Recurrence: Daily()})
	require.NoError(t, err)

	day := mustDate(t, "2026-10-19")
	require.NoError(t, Reserve(s.Legs(o, day, 1, 2), "r1"))

	legs := s.Legs(o, day, 0, 2)
	err = Reserve(legs, "r2")
	assert.ErrorIs(t, err, ErrRideFull)
	assert.Equal(t, 1, legs[0].Remaining(), "first leg must not be decremented")
	assert.Equal(t, 0, legs[1].Remaining())
}

func TestReserveConcurrentLastSeat(t *testing.T) {
	m := abcMap(t)
	s := New(m, nil)
	o, err := s.AddOffer(OfferSpec{DriverID: "d1", Stops: []string{"A", "B", "C"}, Departure: 480, Capacity: 1, Recurrence: Daily()})
	require.NoError(t, err)
	day := mustDate(t, "2026-10-19")

	const riders = 50
	var ok, full atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := Reserve(s.Legs(o, day, 0, 2), "r"); err != nil {
				full.Add(1)
				return
			}
			ok.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(riders-1), full.Load())
	for _, oc := range s.Legs(o, day, 0, 2) {
		assert.Equal(t, 0, oc.Remaining())
		assert.LessOrEqual(t, oc.Remaining(), o.Capacity)
	}
}

func TestLookup(t *testing.T) {
	m := abcMap(t)
	s := New(m, nil)
	r, err := ParseRecurrence([]string{"monday"})
	require.NoError(t, err)
	o, err := s.AddOffer(OfferSpec{DriverID: "d1", Stops: []string{"A", "B"}, Departure: 480, Capacity: 1, Recurrence: r})
	require.NoError(t, err)

	oc, err := s.Lookup(OccurrenceKey{OfferID: o.ID, Date: "2026-10-19", Leg: 0})
	require.NoError(t, err)
	assert.Same(t, s.Occurrence(o, mustDate(t, "2026-10-19"), 0), oc)

	_, err = s.Lookup(OccurrenceKey{OfferID: o.ID, Date: "2026-10-20", Leg: 0})
	assert.ErrorIs(t, err, ErrUnknownOccurrence)
	_, err = s.Lookup(OccurrenceKey{OfferID: o.ID, Date: "2026-10-19", Leg: 1})
	assert.ErrorIs(t, err, ErrUnknownOccurrence)
	_, err = s.Lookup(OccurrenceKey{OfferID: 99, Date: "2026-10-19", Leg: 0})
	assert.ErrorIs(t, err, ErrUnknownOffer)
}

func TestIDAllocatorConcurrent(t *testing.T) {
	a := NewIDAllocator(1)
	seen := sync.Map{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(a.Next(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
	assert.Equal(t, 101, a.Next())
}
