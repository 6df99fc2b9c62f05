package ledger

import (
	"slices"
	"time"

	"github.com/example/transpool/internal/matcher"
	"github.com/example/transpool/internal/models"
	"github.com/example/transpool/internal/schedule"
)

// MatchedTripRequest is a committed booking. It is never modified after
// AcceptMatch returns it.
type MatchedTripRequest struct {
	ID              int
	Request         matcher.TripRequest
	Route           []*schedule.Occurrence
	TotalPrice      int
	Drivers         []string
	OfferIDs        []int
	Departure       time.Time
	Arrival         time.Time
	FuelConsumption float64
	CreatedAt       time.Time
}

func newMatchedTripRequest(id int, req *matcher.TripRequest, route matcher.PossibleRoute, now time.Time) *MatchedTripRequest {
	return &MatchedTripRequest{
		ID:              id,
		Request:         *req,
		Route:           slices.Clone(route.Legs),
		TotalPrice:      route.Price(),
		Drivers:         route.Drivers(),
		OfferIDs:        route.OfferIDs(),
		Departure:       route.Departure(),
		Arrival:         route.Arrival(),
		FuelConsumption: route.FuelConsumption(),
		CreatedAt:       now,
	}
}

func (m *MatchedTripRequest) Snapshot() models.MatchDTO {
	dto := models.MatchDTO{
		ID:              m.ID,
		Request:         m.Request.Snapshot(),
		Route:           make([]models.LegDTO, 0, len(m.Route)),
		TotalPrice:      m.TotalPrice,
		Drivers:         slices.Clone(m.Drivers),
		OfferIDs:        slices.Clone(m.OfferIDs),
		Departure:       m.Departure,
		Arrival:         m.Arrival,
		FuelConsumption: m.FuelConsumption,
		CreatedAt:       m.CreatedAt,
	}
	for _, l := range m.Route {
		dto.Route = append(dto.Route, l.Snapshot())
	}
	return dto
}
