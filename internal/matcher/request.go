package matcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/transpool/internal/graph"
	"github.com/example/transpool/internal/models"
	"github.com/example/transpool/internal/schedule"
)

var ErrSameStops = errors.New("source and destination must differ")

// TripRequest is a rider asking to get from Source to Destination, leaving
// at (or, when Arrival is set, arriving at) Time on Date.
type TripRequest struct {
	ID          int
	RiderID     string
	Source      string
	Destination string
	Date        time.Time
	Time        schedule.Clock
	Arrival     bool
}

func (r *TripRequest) DesiredAt() time.Time {
	return r.Time.On(r.Date)
}

func (r *TripRequest) Validate(m *graph.Map) error {
	if r.Source == r.Destination {
		return fmt.Errorf("request %s->%s: %w", r.Source, r.Destination, ErrSameStops)
	}
	for _, s := range []string{r.Source, r.Destination} {
		if !m.HasStop(s) {
			return fmt.Errorf("request stop %q: %w", s, graph.ErrUnknownStop)
		}
	}
	return nil
}

func (r *TripRequest) Snapshot() models.RequestDTO {
	return models.RequestDTO{
		ID:          r.ID,
		RiderID:     r.RiderID,
		Source:      r.Source,
		Destination: r.Destination,
		Date:        schedule.FormatDate(r.Date),
		Time:        r.Time.String(),
		IsArrival:   r.Arrival,
	}
}
