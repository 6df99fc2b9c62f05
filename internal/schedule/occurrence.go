package schedule

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/example/transpool/internal/models"
)

var ErrRideFull = errors.New("ride is full")

// OccurrenceKey identifies one dated leg of an offer.
type OccurrenceKey struct {
	OfferID int    `json:"offer_id"`
	Date    string `json:"date"`
	Leg     int    `json:"leg"`
}

func (k OccurrenceKey) String() string {
	return fmt.Sprintf("%d/%s/%d", k.OfferID, k.Date, k.Leg)
}

func compareKeys(a, b OccurrenceKey) int {
	if c := cmp.Compare(a.OfferID, b.OfferID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.Leg, b.Leg)
}

// Occurrence is a dated, capacity-tracked leg. Everything except the seat
// counter and the rider list is fixed at creation.
type Occurrence struct {
	key OccurrenceKey

	DriverID        string
	From, To        string
	Departure       time.Time
	Arrival         time.Time
	Price           int
	FuelConsumption float64
	Capacity        int

	mu        sync.Mutex
	remaining int
	riders    []string
}

func newOccurrence(o *Offer, date time.Time, leg int) *Occurrence {
	l := o.legs[leg]
	return &Occurrence{
		key:             OccurrenceKey{OfferID: o.ID, Date: FormatDate(date), Leg: leg},
		DriverID:        o.DriverID,
		From:            l.From,
		To:              l.To,
		Departure:       o.TimeAt(date, leg),
		Arrival:         o.TimeAt(date, leg+1),
		Price:           l.Price,
		FuelConsumption: l.FuelConsumption,
		Capacity:        o.Capacity,
		remaining:       o.Capacity,
	}
}

func (oc *Occurrence) Key() OccurrenceKey { return oc.key }
func (oc *Occurrence) OfferID() int       { return oc.key.OfferID }

func (oc *Occurrence) Remaining() int {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.remaining
}

// Riders lists who holds a seat on this leg, in booking order.
func (oc *Occurrence) Riders() []string {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return append([]string(nil), oc.riders...)
}

func (oc *Occurrence) Snapshot() models.LegDTO {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return models.LegDTO{
		OfferID:   oc.key.OfferID,
		DriverID:  oc.DriverID,
		Leg:       oc.key.Leg,
		From:      oc.From,
		To:        oc.To,
		Departure: oc.Departure,
		Arrival:   oc.Arrival,
		Price:     oc.Price,
		Capacity:  oc.Capacity,
		Remaining: oc.remaining,
		Riders:    append([]string(nil), oc.riders...),
	}
}

// Reserve takes one seat on every leg or on none. Leg locks are taken in key
// order so overlapping reservations cannot deadlock.
func Reserve(legs []*Occurrence, riderID string) error {
	ordered := slices.Clone(legs)
	slices.SortFunc(ordered, func(a, b *Occurrence) int { return compareKeys(a.key, b.key) })
	ordered = slices.CompactFunc(ordered, func(a, b *Occurrence) bool { return a == b })

	for _, oc := range ordered {
		oc.mu.Lock()
		defer oc.mu.Unlock()
	}
	for _, oc := range ordered {
		if oc.remaining <= 0 {
			return fmt.Errorf("leg %s %s->%s: %w", oc.key, oc.From, oc.To, ErrRideFull)
		}
	}
	for _, oc := range ordered {
		oc.remaining--
		oc.riders = append(oc.riders, riderID)
	}
	return nil
}
