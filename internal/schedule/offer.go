package schedule

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/example/transpool/internal/graph"
	"github.com/example/transpool/internal/models"
)

var (
	ErrRouteTooShort     = errors.New("route needs at least two stops")
	ErrDisconnectedRoute = errors.New("route has no path between consecutive stops")
	ErrNegativeCapacity  = errors.New("capacity must not be negative")
	ErrNegativePrice     = errors.New("price per distance must not be negative")
	ErrInvalidDeparture  = errors.New("departure must be within a day")
)

// OfferSpec is what a driver submits to publish a recurring trip.
type OfferSpec struct {
	DriverID   string
	Stops      []string
	Departure  Clock
	PricePerKm int
	Capacity   int
	Recurrence Recurrence
}

// Leg is the template for one consecutive stop pair of an offer.
type Leg struct {
	Index           int
	From, To        string
	Minutes         int
	Length          int
	FuelConsumption float64
	Price           int
}

type Offer struct {
	ID         int
	DriverID   string
	Stops      []string
	Departure  Clock
	PricePerKm int
	Capacity   int
	Recurrence Recurrence

	legs []Leg
	// reach[i] is the minutes from departure until stop i is reached.
	reach []int
}

// NewOffer validates spec against the map. The returned offer has no ID yet.
func NewOffer(m *graph.Map, spec OfferSpec) (*Offer, error) {
	if len(spec.Stops) < 2 {
		return nil, ErrRouteTooShort
	}
	if spec.Capacity < 0 {
		return nil, fmt.Errorf("capacity %d: %w", spec.Capacity, ErrNegativeCapacity)
	}
	if spec.PricePerKm < 0 {
		return nil, fmt.Errorf("price %d: %w", spec.PricePerKm, ErrNegativePrice)
	}
	if spec.Departure < 0 || spec.Departure >= MinutesPerDay {
		return nil, fmt.Errorf("departure %d: %w", spec.Departure, ErrInvalidDeparture)
	}
	if spec.Recurrence.IsZero() {
		return nil, fmt.Errorf("offer of %s: %w", spec.DriverID, ErrInvalidRecurrence)
	}
	for _, s := range spec.Stops {
		if !m.HasStop(s) {
			return nil, fmt.Errorf("route stop %q: %w", s, graph.ErrUnknownStop)
		}
	}

	o := &Offer{
		DriverID:   spec.DriverID,
		Stops:      append([]string(nil), spec.Stops...),
		Departure:  spec.Departure,
		PricePerKm: spec.PricePerKm,
		Capacity:   spec.Capacity,
		Recurrence: spec.Recurrence,
		legs:       make([]Leg, 0, len(spec.Stops)-1),
		reach:      make([]int, len(spec.Stops)),
	}
	for i := 0; i+1 < len(o.Stops); i++ {
		p, ok := m.FindPath(o.Stops[i], o.Stops[i+1])
		if !ok {
			return nil, fmt.Errorf("%s->%s: %w", o.Stops[i], o.Stops[i+1], ErrDisconnectedRoute)
		}
		leg := Leg{
			Index:           i,
			From:            p.Source,
			To:              p.Destination,
			Minutes:         p.TravelTime(),
			Length:          p.Length,
			FuelConsumption: p.FuelConsumption,
			Price:           spec.PricePerKm * p.Length,
		}
		o.legs = append(o.legs, leg)
		o.reach[i+1] = o.reach[i] + leg.Minutes
	}
	return o, nil
}

func (o *Offer) Legs() []Leg {
	out := make([]Leg, len(o.legs))
	copy(out, o.legs)
	return out
}

// Duration is the minutes from departure until the last stop.
func (o *Offer) Duration() int {
	return o.reach[len(o.reach)-1]
}

// ContainsSubRoute reports whether src is visited strictly before dst and
// returns the earliest such pair of stop indexes.
func (o *Offer) ContainsSubRoute(src, dst string) (from, to int, ok bool) {
	for i, j := range o.SubRoutes(src, dst) {
		return i, j, true
	}
	return 0, 0, false
}

// SubRoutes yields every stop index pair i < j with Stops[i] == src and
// Stops[j] == dst, ordered by i then j. Routes that revisit a stop yield
// one pair per visit.
func (o *Offer) SubRoutes(src, dst string) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for i, s := range o.Stops {
			if s != src {
				continue
			}
			for j := i + 1; j < len(o.Stops); j++ {
				if o.Stops[j] == dst && !yield(i, j) {
					return
				}
			}
		}
	}
}

// TimeAt is when the run that departs on date reaches stop index i.
func (o *Offer) TimeAt(date time.Time, i int) time.Time {
	return o.Departure.On(date).Add(time.Duration(o.reach[i]) * time.Minute)
}

// SpanDays is how many midnights a single run can cross.
func (o *Offer) SpanDays() int {
	return (int(o.Departure) + o.Duration()) / MinutesPerDay
}

// ServiceDates yields the run dates in [from, to] in chronological order.
func (o *Offer) ServiceDates(from, to time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		last := Day(to)
		for d := Day(from); !d.After(last); d = d.AddDate(0, 0, 1) {
			if !o.Recurrence.Includes(d) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

func (o *Offer) Snapshot() models.OfferDTO {
	return models.OfferDTO{
		ID:              o.ID,
		DriverID:        o.DriverID,
		Route:           append([]string(nil), o.Stops...),
		DepartureTime:   o.Departure.String(),
		PricePerKm:      o.PricePerKm,
		Capacity:        o.Capacity,
		Recurrence:      o.Recurrence.Strings(),
		DurationMinutes: o.Duration(),
	}
}
