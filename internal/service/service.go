// Package service is the entry point callers use: it owns the map, the
// schedule, the matching engine and the ledger, hands out route IDs through
// a candidate cache and fans committed matches out to registered sinks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/transpool/internal/cache"
	"github.com/example/transpool/internal/graph"
	"github.com/example/transpool/internal/ledger"
	"github.com/example/transpool/internal/logging"
	"github.com/example/transpool/internal/matcher"
	"github.com/example/transpool/internal/models"
	"github.com/example/transpool/internal/observability"
	"github.com/example/transpool/internal/scenario"
	"github.com/example/transpool/internal/schedule"
	"github.com/example/transpool/internal/storage"
)

const sinkTimeout = 5 * time.Second

// MatchSink receives every committed match after the ledger has released
// its locks. A failing sink is logged and counted; it never undoes a match.
type MatchSink interface {
	HandleMatch(ctx context.Context, m models.MatchDTO) error
}

type MatchSinkFunc func(ctx context.Context, m models.MatchDTO) error

func (f MatchSinkFunc) HandleMatch(ctx context.Context, m models.MatchDTO) error { return f(ctx, m) }

type Options struct {
	Candidates cache.Candidates
	Store      storage.MatchStore
	Logger     *slog.Logger
	// DefaultMaxResults is used when a caller passes no limit.
	DefaultMaxResults int
	// FirstMatchID is where match numbering starts. NewFromScenario raises
	// it to the store's NextMatchID.
	FirstMatchID int
}

type namedSink struct {
	name string
	sink MatchSink
}

type Service struct {
	sched      *schedule.Schedule
	engine     *matcher.Engine
	ledger     *ledger.Ledger
	candidates cache.Candidates
	store      storage.MatchStore
	logger     *slog.Logger
	maxResults int

	requestIDs *schedule.IDAllocator
	mu         sync.RWMutex
	requests   map[int]*matcher.TripRequest
	order      []int

	sinkMu sync.RWMutex
	sinks  []namedSink
}

func New(m *graph.Map, opts Options) *Service {
	if opts.Candidates == nil {
		opts.Candidates = cache.NewMemory()
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.DefaultMaxResults <= 0 {
		opts.DefaultMaxResults = 8
	}
	if opts.FirstMatchID <= 0 {
		opts.FirstMatchID = 1
	}
	sched := schedule.New(m, schedule.NewIDAllocator(1))
	s := &Service{
		sched:      sched,
		engine:     matcher.NewEngine(sched),
		ledger:     ledger.New(schedule.NewIDAllocator(opts.FirstMatchID)),
		candidates: opts.Candidates,
		store:      opts.Store,
		logger:     opts.Logger,
		maxResults: opts.DefaultMaxResults,
		requestIDs: schedule.NewIDAllocator(1),
		requests:   make(map[int]*matcher.TripRequest),
	}
	s.AddSink("store", MatchSinkFunc(s.store.SaveMatch))
	s.ledger.Subscribe(ledger.SubscriberFunc(s.publish))
	return s
}

// NewFromScenario builds the map and replays accounts, offers and requests
// in document order. Match IDs continue after the highest one already in
// the store. Any failure aborts the whole load.
func NewFromScenario(ctx context.Context, sc models.Scenario, opts Options) (*Service, error) {
	m, err := graph.Load(sc.Map)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	next, err := opts.Store.NextMatchID(ctx)
	if err != nil {
		return nil, err
	}
	opts.FirstMatchID = max(opts.FirstMatchID, next)
	s := New(m, opts)
	for i, a := range sc.Accounts {
		if _, err := s.OpenAccount(ctx, a); err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
	}
	for i, o := range sc.Offers {
		if _, err := s.CreateOffer(ctx, o); err != nil {
			return nil, fmt.Errorf("offer %d: %w", i, err)
		}
	}
	for i, r := range sc.Requests {
		if _, err := s.CreateRequest(ctx, r); err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}
	return s, nil
}

// AddSink registers a collaborator notified of every committed match.
func (s *Service) AddSink(name string, sink MatchSink) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
}

func (s *Service) OpenAccount(_ context.Context, d models.AccountDescriptor) (models.AccountDTO, error) {
	if err := scenario.Validate(d); err != nil {
		return models.AccountDTO{}, err
	}
	caps, err := ledger.ParseCapabilities(d.Roles)
	if err != nil {
		return models.AccountDTO{}, err
	}
	a, err := s.ledger.OpenAccount(d.ID, caps)
	if err != nil {
		return models.AccountDTO{}, err
	}
	if d.Balance > 0 {
		if err := s.ledger.Deposit(d.ID, d.Balance); err != nil {
			return models.AccountDTO{}, err
		}
	}
	return a.Snapshot(), nil
}

func (s *Service) Deposit(_ context.Context, id string, amount int) (models.AccountDTO, error) {
	if err := s.ledger.Deposit(id, amount); err != nil {
		return models.AccountDTO{}, err
	}
	return s.Account(id)
}

func (s *Service) Account(id string) (models.AccountDTO, error) {
	a, err := s.ledger.Account(id)
	if err != nil {
		return models.AccountDTO{}, err
	}
	return a.Snapshot(), nil
}

func (s *Service) CreateOffer(_ context.Context, d models.OfferDescriptor) (models.OfferDTO, error) {
	if err := scenario.Validate(d); err != nil {
		return models.OfferDTO{}, err
	}
	dep, err := schedule.ParseClock(d.DepartureTime)
	if err != nil {
		return models.OfferDTO{}, err
	}
	rec, err := schedule.ParseRecurrence(d.Recurrence)
	if err != nil {
		return models.OfferDTO{}, err
	}
	o, err := s.sched.AddOffer(schedule.OfferSpec{
		DriverID:   d.DriverID,
		Stops:      d.Route,
		Departure:  dep,
		PricePerKm: d.PricePerKm,
		Capacity:   d.Capacity,
		Recurrence: rec,
	})
	if err != nil {
		return models.OfferDTO{}, err
	}
	s.ledger.Driver(d.DriverID)
	observability.OffersCreated.Inc()
	s.logger.Info("offer created", "offer_id", o.ID, "driver_id", o.DriverID, "route", o.Stops)
	return o.Snapshot(), nil
}

func (s *Service) Offers() []models.OfferDTO {
	offers := s.sched.Offers()
	out := make([]models.OfferDTO, 0, len(offers))
	for _, o := range offers {
		out = append(out, o.Snapshot())
	}
	return out
}

// Run lists the legs of the offer's run departing on date, with seat counts
// and the riders holding seats.
func (s *Service) Run(offerID int, date string) ([]models.LegDTO, error) {
	o, ok := s.sched.Offer(offerID)
	if !ok {
		return nil, fmt.Errorf("offer %d: %w", offerID, schedule.ErrUnknownOffer)
	}
	d, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}
	if !o.Recurrence.Includes(d) {
		return nil, fmt.Errorf("offer %d on %s: %w", offerID, date, schedule.ErrUnknownOccurrence)
	}
	legs := s.sched.Legs(o, d, 0, len(o.Stops)-1)
	out := make([]models.LegDTO, 0, len(legs))
	for _, l := range legs {
		out = append(out, l.Snapshot())
	}
	return out, nil
}

func (s *Service) Map() models.MapDTO { return s.sched.Map().Snapshot() }

func (s *Service) CreateRequest(_ context.Context, d models.RequestDescriptor) (models.RequestDTO, error) {
	if err := scenario.Validate(d); err != nil {
		return models.RequestDTO{}, err
	}
	date, err := schedule.ParseDate(d.Date)
	if err != nil {
		return models.RequestDTO{}, err
	}
	at, err := schedule.ParseClock(d.Time)
	if err != nil {
		return models.RequestDTO{}, err
	}
	req := &matcher.TripRequest{
		RiderID:     d.RiderID,
		Source:      d.Source,
		Destination: d.Destination,
		Date:        date,
		Time:        at,
		Arrival:     d.IsArrival,
	}
	if err := req.Validate(s.sched.Map()); err != nil {
		return models.RequestDTO{}, err
	}
	req.ID = s.requestIDs.Next()
	if err := s.ledger.AddRequest(req); err != nil {
		return models.RequestDTO{}, err
	}

	s.mu.Lock()
	s.requests[req.ID] = req
	s.order = append(s.order, req.ID)
	s.mu.Unlock()

	observability.RequestsCreated.Inc()
	s.logger.Info("request created", "request_id", req.ID, "rider_id", req.RiderID,
		"source", req.Source, "destination", req.Destination, "at", req.DesiredAt(), "arrival", req.Arrival)
	return req.Snapshot(), nil
}

func (s *Service) Request(id int) (models.RequestDTO, error) {
	req, err := s.request(id)
	if err != nil {
		return models.RequestDTO{}, err
	}
	return req.Snapshot(), nil
}

// Requests lists every request filed by riderID, matched or not, in filing
// order. An empty riderID lists all requests.
func (s *Service) Requests(riderID string) []models.RequestDTO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RequestDTO
	for _, id := range s.order {
		req := s.requests[id]
		if riderID == "" || req.RiderID == riderID {
			out = append(out, req.Snapshot())
		}
	}
	return out
}

func (s *Service) request(id int) (*matcher.TripRequest, error) {
	s.mu.RLock()
	req, ok := s.requests[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("request %d: %w", id, ledger.ErrUnknownRequest)
	}
	return req, nil
}

// FindPossibleMatches searches candidates for a filed request and remembers
// them so AcceptMatch can refer to a route by its 1-based position. A new
// search replaces the previous list for that request.
func (s *Service) FindPossibleMatches(ctx context.Context, requestID, maxResults int) ([]models.RouteDTO, error) {
	req, err := s.request(requestID)
	if err != nil {
		return nil, err
	}
	if maxResults == 0 {
		maxResults = s.maxResults
	}

	start := time.Now()
	routes, err := s.engine.FindPossibleMatches(req, maxResults)
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, matcher.ErrNoMatchesFound) {
			observability.SearchesTotal.WithLabelValues("none").Inc()
			if derr := s.candidates.Drop(ctx, requestID); derr != nil {
				s.logger.Warn("drop candidates failed", "request_id", requestID, "err", derr)
			}
		} else {
			observability.SearchesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	keys := make([][]schedule.OccurrenceKey, len(routes))
	out := make([]models.RouteDTO, len(routes))
	for i, r := range routes {
		keys[i] = r.Keys()
		out[i] = r.Snapshot(i+1, requestID)
	}
	if err := s.candidates.Put(ctx, requestID, keys); err != nil {
		observability.SearchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store candidates for request %d: %w", requestID, err)
	}

	observability.SearchesTotal.WithLabelValues("found").Inc()
	observability.CandidatesReturned.Observe(float64(len(out)))
	s.logger.Debug("candidates found", "request_id", requestID, "count", len(out))
	return out, nil
}

// AcceptMatch books the routeID-th candidate of the latest search for
// requestID. On ledger.ErrRideFull nothing changed and the caller should
// search again.
func (s *Service) AcceptMatch(ctx context.Context, requestID, routeID int) (models.MatchDTO, error) {
	req, err := s.request(requestID)
	if err != nil {
		return models.MatchDTO{}, err
	}
	keys, err := s.candidates.Get(ctx, requestID, routeID)
	if err != nil {
		return models.MatchDTO{}, err
	}
	route := matcher.PossibleRoute{Legs: make([]*schedule.Occurrence, 0, len(keys))}
	for _, k := range keys {
		oc, err := s.sched.Lookup(k)
		if err != nil {
			return models.MatchDTO{}, err
		}
		route.Legs = append(route.Legs, oc)
	}

	match, err := s.ledger.AcceptMatch(req, route)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ledger.ErrRideFull) {
			outcome = "ride_full"
		}
		observability.BookingsTotal.WithLabelValues(outcome).Inc()
		s.logger.Info("accept rejected", "request_id", requestID, "route_id", routeID, "err", err)
		return models.MatchDTO{}, err
	}
	observability.BookingsTotal.WithLabelValues("accepted").Inc()
	if err := s.candidates.Drop(ctx, requestID); err != nil {
		s.logger.Warn("drop candidates failed", "request_id", requestID, "err", err)
	}
	s.logger.Info("match accepted", "match_id", match.ID, "request_id", requestID,
		"rider_id", req.RiderID, "drivers", match.Drivers, "total_price", match.TotalPrice)
	return match.Snapshot(), nil
}

func (s *Service) Matches(riderID string) ([]models.MatchDTO, error) {
	matches, err := s.ledger.Matches(riderID)
	if err != nil {
		return nil, err
	}
	out := make([]models.MatchDTO, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Snapshot())
	}
	return out, nil
}

// History reads a rider's matches from the match store, which outlives the
// process when backed by Postgres.
func (s *Service) History(ctx context.Context, riderID string) ([]models.MatchDTO, error) {
	return s.store.MatchesByRider(ctx, riderID)
}

func (s *Service) LeaveFeedback(_ context.Context, riderID, driverID string, rating int, comment string) error {
	if err := s.ledger.LeaveFeedback(riderID, driverID, rating, comment); err != nil {
		return err
	}
	s.logger.Info("feedback left", "rider_id", riderID, "driver_id", driverID, "rating", rating)
	return nil
}

func (s *Service) publish(m *ledger.MatchedTripRequest) {
	dto := m.Snapshot()
	s.sinkMu.RLock()
	sinks := append([]namedSink(nil), s.sinks...)
	s.sinkMu.RUnlock()

	for _, ns := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := ns.sink.HandleMatch(ctx, dto)
		cancel()
		if err != nil {
			observability.EventFailures.WithLabelValues(ns.name).Inc()
			s.logger.Error("match sink failed", "sink", ns.name, "match_id", dto.ID, "err", err)
		}
	}
}
