// Package matcher finds offer runs that can carry a trip request.
package matcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/transpool/internal/schedule"
)

var (
	ErrNoMatchesFound    = errors.New("no matches found")
	ErrInvalidMaxResults = errors.New("max results must be positive")
)

// ContainsSubRoute reports whether the offer visits src and later dst.
func ContainsSubRoute(o *schedule.Offer, src, dst string) bool {
	_, _, ok := o.ContainsSubRoute(src, dst)
	return ok
}

// TimeMatches compares the run departing on date against the request's
// desired time: the time at stop from for departure requests, the time at
// stop to for arrival requests. Only exact equality matches.
func TimeMatches(o *schedule.Offer, date time.Time, from, to int, req *TripRequest) bool {
	at := o.TimeAt(date, from)
	if req.Arrival {
		at = o.TimeAt(date, to)
	}
	return at.Equal(req.DesiredAt())
}

type Engine struct {
	Schedule *schedule.Schedule
}

func NewEngine(s *schedule.Schedule) *Engine {
	return &Engine{Schedule: s}
}

// FindPossibleMatches returns up to maxResults single-offer routes for req,
// offers in creation order, runs in date order, then boarding stop order
// when the offer passes the source more than once. It never changes seat
// counts, so repeated calls return the same routes until a booking lands.
func (e *Engine) FindPossibleMatches(req *TripRequest, maxResults int) ([]PossibleRoute, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("max results %d: %w", maxResults, ErrInvalidMaxResults)
	}
	day := schedule.Day(req.DesiredAt())

	var out []PossibleRoute
	for _, o := range e.Schedule.Offers() {
		if !ContainsSubRoute(o, req.Source, req.Destination) {
			continue
		}
		for date := range o.ServiceDates(day.AddDate(0, 0, -o.SpanDays()), day) {
			for from, to := range o.SubRoutes(req.Source, req.Destination) {
				if !TimeMatches(o, date, from, to, req) {
					continue
				}
				legs := e.Schedule.Legs(o, date, from, to)
				if !hasSeats(legs) {
					continue
				}
				out = append(out, PossibleRoute{Legs: legs})
				if len(out) == maxResults {
					return out, nil
				}
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("request %d %s->%s at %s: %w",
			req.ID, req.Source, req.Destination, req.DesiredAt().Format(time.DateTime), ErrNoMatchesFound)
	}
	return out, nil
}

func hasSeats(legs []*schedule.Occurrence) bool {
	for _, l := range legs {
		if l.Remaining() <= 0 {
			return false
		}
	}
	return true
}
