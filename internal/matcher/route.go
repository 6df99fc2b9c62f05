package matcher

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/example/transpool/internal/models"
	"github.com/example/transpool/internal/schedule"
)

var ErrInvalidRoute = errors.New("invalid route")

// PossibleRoute is a candidate itinerary. The search only produces routes
// drawn from a single offer run, but any contiguous chain of legs is valid.
type PossibleRoute struct {
	Legs []*schedule.Occurrence
}

// Validate checks that legs chain stop to stop and never leave before the
// previous leg arrives.
func (r PossibleRoute) Validate() error {
	if len(r.Legs) == 0 {
		return fmt.Errorf("empty route: %w", ErrInvalidRoute)
	}
	for i := 1; i < len(r.Legs); i++ {
		prev, next := r.Legs[i-1], r.Legs[i]
		if prev.To != next.From {
			return fmt.Errorf("leg %d ends at %s, leg %d starts at %s: %w", i-1, prev.To, i, next.From, ErrInvalidRoute)
		}
		if prev.Arrival.After(next.Departure) {
			return fmt.Errorf("leg %d departs before leg %d arrives: %w", i, i-1, ErrInvalidRoute)
		}
	}
	return nil
}

// Serves checks that the route runs from req's source to its destination
// and meets the requested time exactly: the first departure for departure
// requests, the last arrival for arrival requests.
func (r PossibleRoute) Serves(req *TripRequest) error {
	if len(r.Legs) == 0 {
		return fmt.Errorf("empty route: %w", ErrInvalidRoute)
	}
	from, to := r.Legs[0].From, r.Legs[len(r.Legs)-1].To
	if from != req.Source || to != req.Destination {
		return fmt.Errorf("route %s->%s for request %d %s->%s: %w", from, to, req.ID, req.Source, req.Destination, ErrInvalidRoute)
	}
	at := r.Departure()
	if req.Arrival {
		at = r.Arrival()
	}
	if !at.Equal(req.DesiredAt()) {
		return fmt.Errorf("route at %s for request %d at %s: %w",
			at.Format(time.DateTime), req.ID, req.DesiredAt().Format(time.DateTime), ErrInvalidRoute)
	}
	return nil
}

func (r PossibleRoute) Price() int {
	total := 0
	for _, l := range r.Legs {
		total += l.Price
	}
	return total
}

func (r PossibleRoute) Departure() time.Time { return r.Legs[0].Departure }
func (r PossibleRoute) Arrival() time.Time   { return r.Legs[len(r.Legs)-1].Arrival }

// TravelTime is the minutes between the first departure and the last arrival.
func (r PossibleRoute) TravelTime() int {
	return int(r.Arrival().Sub(r.Departure()) / time.Minute)
}

// FuelConsumption averages the legs' consumption rates.
func (r PossibleRoute) FuelConsumption() float64 {
	if len(r.Legs) == 0 {
		return 0
	}
	var sum float64
	for _, l := range r.Legs {
		sum += l.FuelConsumption
	}
	return sum / float64(len(r.Legs))
}

// Drivers lists distinct drivers in the order they are met.
func (r PossibleRoute) Drivers() []string {
	var out []string
	for _, l := range r.Legs {
		if !slices.Contains(out, l.DriverID) {
			out = append(out, l.DriverID)
		}
	}
	return out
}

func (r PossibleRoute) OfferIDs() []int {
	var out []int
	for _, l := range r.Legs {
		if !slices.Contains(out, l.OfferID()) {
			out = append(out, l.OfferID())
		}
	}
	return out
}

func (r PossibleRoute) Keys() []schedule.OccurrenceKey {
	out := make([]schedule.OccurrenceKey, 0, len(r.Legs))
	for _, l := range r.Legs {
		out = append(out, l.Key())
	}
	return out
}

func (r PossibleRoute) Snapshot(id, requestID int) models.RouteDTO {
	dto := models.RouteDTO{
		ID:              id,
		RequestID:       requestID,
		Legs:            make([]models.LegDTO, 0, len(r.Legs)),
		TotalPrice:      r.Price(),
		TravelMinutes:   r.TravelTime(),
		Departure:       r.Departure(),
		Arrival:         r.Arrival(),
		FuelConsumption: r.FuelConsumption(),
		Drivers:         r.Drivers(),
	}
	for _, l := range r.Legs {
		dto.Legs = append(dto.Legs, l.Snapshot())
	}
	return dto
}
