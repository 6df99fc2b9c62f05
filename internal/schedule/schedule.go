// Package schedule expands recurring driver offers into dated leg
// occurrences and owns their seat counters.
package schedule

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/example/transpool/internal/graph"
)

var (
	ErrUnknownOffer      = errors.New("unknown offer")
	ErrUnknownOccurrence = errors.New("offer does not run on that leg and date")
)

// Schedule holds the offers of one map. Offers are append-only; occurrences
// are materialized on first use and live as long as the schedule.
type Schedule struct {
	m   *graph.Map
	ids *IDAllocator

	mu     sync.RWMutex
	offers []*Offer
	byID   map[int]*Offer

	occMu       sync.RWMutex
	occurrences map[OccurrenceKey]*Occurrence
}

func New(m *graph.Map, ids *IDAllocator) *Schedule {
	if ids == nil {
		ids = NewIDAllocator(1)
	}
	return &Schedule{
		m:           m,
		ids:         ids,
		byID:        make(map[int]*Offer),
		occurrences: make(map[OccurrenceKey]*Occurrence),
	}
}

func (s *Schedule) Map() *graph.Map { return s.m }

func (s *Schedule) AddOffer(spec OfferSpec) (*Offer, error) {
	o, err := NewOffer(s.m, spec)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.ids.Next()
	s.offers = append(s.offers, o)
	s.byID[o.ID] = o
	return o, nil
}

func (s *Schedule) Offer(id int) (*Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	return o, ok
}

// Offers returns offers in creation order.
func (s *Schedule) Offers() []*Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Offer, len(s.offers))
	copy(out, s.offers)
	return out
}

// Occurrence returns the shared occurrence of leg on date, creating it with
// full capacity the first time it is asked for.
func (s *Schedule) Occurrence(o *Offer, date time.Time, leg int) *Occurrence {
	key := OccurrenceKey{OfferID: o.ID, Date: FormatDate(date), Leg: leg}

	s.occMu.RLock()
	oc, ok := s.occurrences[key]
	s.occMu.RUnlock()
	if ok {
		return oc
	}

	s.occMu.Lock()
	defer s.occMu.Unlock()
	if oc, ok := s.occurrences[key]; ok {
		return oc
	}
	oc = newOccurrence(o, Day(date), leg)
	s.occurrences[key] = oc
	return oc
}

// Legs returns the occurrences carrying a rider from stop index from to stop
// index to on the run departing on date.
func (s *Schedule) Legs(o *Offer, date time.Time, from, to int) []*Occurrence {
	out := make([]*Occurrence, 0, to-from)
	for leg := from; leg < to; leg++ {
		out = append(out, s.Occurrence(o, date, leg))
	}
	return out
}

// Lookup resolves a key back to its live occurrence.
func (s *Schedule) Lookup(key OccurrenceKey) (*Occurrence, error) {
	o, ok := s.Offer(key.OfferID)
	if !ok {
		return nil, fmt.Errorf("offer %d: %w", key.OfferID, ErrUnknownOffer)
	}
	date, err := ParseDate(key.Date)
	if err != nil {
		return nil, fmt.Errorf("occurrence %s: %w", key, ErrUnknownOccurrence)
	}
	if key.Leg < 0 || key.Leg >= len(o.legs) || !o.Recurrence.Includes(date) {
		return nil, fmt.Errorf("occurrence %s: %w", key, ErrUnknownOccurrence)
	}
	return s.Occurrence(o, date, key.Leg), nil
}

// ExpandOccurrences lazily yields every leg occurrence of every offer whose
// run date falls in [from, to]: offers in creation order, then dates, then
// legs.
func (s *Schedule) ExpandOccurrences(from, to time.Time) iter.Seq[*Occurrence] {
	return func(yield func(*Occurrence) bool) {
		for _, o := range s.Offers() {
			for date := range o.ServiceDates(from, to) {
				for leg := range o.legs {
					if !yield(s.Occurrence(o, date, leg)) {
						return
					}
				}
			}
		}
	}
}
