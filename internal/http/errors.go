package httpapi

import (
	"errors"
	"net/http"

	"github.com/example/transpool/internal/cache"
	"github.com/example/transpool/internal/graph"
	"github.com/example/transpool/internal/ledger"
	"github.com/example/transpool/internal/matcher"
	"github.com/example/transpool/internal/scenario"
	"github.com/example/transpool/internal/schedule"
)

var errBadBody = errors.New("malformed request body")

var statusTable = []struct {
	status int
	errs   []error
}{
	{http.StatusBadRequest, []error{errBadBody}},
	{http.StatusUnprocessableEntity, []error{
		graph.ErrMapDimensions, graph.ErrStopDuplication, graph.ErrOutOfBounds,
		graph.ErrCoordinateDuplication, graph.ErrUnknownStop, graph.ErrPathDuplication, graph.ErrInvalidPath,
		schedule.ErrRouteTooShort, schedule.ErrDisconnectedRoute, schedule.ErrNegativeCapacity,
		schedule.ErrNegativePrice, schedule.ErrInvalidDeparture, schedule.ErrInvalidRecurrence, schedule.ErrInvalidTime,
		matcher.ErrSameStops, matcher.ErrInvalidRoute, matcher.ErrInvalidMaxResults,
		ledger.ErrUnknownRole, ledger.ErrInvalidAmount, ledger.ErrInvalidRating,
		scenario.ErrInvalidScenario,
	}},
	{http.StatusNotFound, []error{
		matcher.ErrNoMatchesFound,
		ledger.ErrUnknownAccount, ledger.ErrUnknownRequest,
		schedule.ErrUnknownOffer, schedule.ErrUnknownOccurrence,
		cache.ErrUnknownRoute,
	}},
	{http.StatusConflict, []error{ledger.ErrRideFull, ledger.ErrAccountExists, ledger.ErrNotFeedbackEligible}},
	{http.StatusForbidden, []error{ledger.ErrNotRider}},
}

func statusFor(err error) int {
	for _, row := range statusTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.status
			}
		}
	}
	return http.StatusInternalServerError
}
