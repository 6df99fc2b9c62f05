// Package ledger commits accepted matches: seats, credit, and who may rate
// whom afterwards.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/transpool/internal/matcher"
	"github.com/example/transpool/internal/schedule"
)

var (
	ErrUnknownAccount      = errors.New("unknown account")
	ErrAccountExists       = errors.New("account already exists")
	ErrUnknownRole         = errors.New("unknown role")
	ErrNotRider            = errors.New("account is not a rider")
	ErrUnknownRequest      = errors.New("request is not pending for this rider")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNotFeedbackEligible = errors.New("rider may not rate this driver")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")

	ErrRideFull = schedule.ErrRideFull
)

const (
	MinRating = 1
	MaxRating = 5
)

// Subscriber is told about every committed match, after the commit.
type Subscriber interface {
	MatchAccepted(m *MatchedTripRequest)
}

type SubscriberFunc func(m *MatchedTripRequest)

func (f SubscriberFunc) MatchAccepted(m *MatchedTripRequest) { f(m) }

// Ledger owns accounts. No two account locks are held at the same time.
type Ledger struct {
	ids *schedule.IDAllocator
	now func() time.Time

	mu          sync.RWMutex
	accounts    map[string]*Account
	subscribers []Subscriber
}

func New(ids *schedule.IDAllocator) *Ledger {
	if ids == nil {
		ids = schedule.NewIDAllocator(1)
	}
	return &Ledger{ids: ids, now: time.Now, accounts: make(map[string]*Account)}
}

func (l *Ledger) Subscribe(s Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, s)
}

func (l *Ledger) OpenAccount(id string, caps Capability) (*Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[id]; ok {
		return nil, fmt.Errorf("account %q: %w", id, ErrAccountExists)
	}
	a := newAccount(id, caps)
	l.accounts[id] = a
	return a, nil
}

func (l *Ledger) Account(id string) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", id, ErrUnknownAccount)
	}
	return a, nil
}

// Driver returns the account of a driver, opening one or granting the
// driver capability as needed.
func (l *Ledger) Driver(id string) *Account {
	l.mu.Lock()
	a, ok := l.accounts[id]
	if !ok {
		a = newAccount(id, CapDriver)
		l.accounts[id] = a
	}
	l.mu.Unlock()

	a.mu.Lock()
	a.caps |= CapDriver
	a.mu.Unlock()
	return a
}

func (l *Ledger) Deposit(id string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("deposit %d: %w", amount, ErrInvalidAmount)
	}
	a, err := l.Account(id)
	if err != nil {
		return err
	}
	a.credit(amount)
	return nil
}

// AddRequest files req as pending on its rider's account.
func (l *Ledger) AddRequest(req *matcher.TripRequest) error {
	a, err := l.Account(req.RiderID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.caps.Has(CapRider) {
		return fmt.Errorf("account %q: %w", a.ID, ErrNotRider)
	}
	a.pending = append(a.pending, req)
	return nil
}

// AcceptMatch books route for req. The route must chain its legs and serve
// req's stops at req's time. Seats on every leg are taken together or not at
// all; on ErrRideFull nothing has changed and the caller should search
// again. The rider's balance may go negative.
func (l *Ledger) AcceptMatch(req *matcher.TripRequest, route matcher.PossibleRoute) (*MatchedTripRequest, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}
	if err := route.Serves(req); err != nil {
		return nil, err
	}
	rider, err := l.Account(req.RiderID)
	if err != nil {
		return nil, err
	}

	rider.mu.Lock()
	if !rider.caps.Has(CapRider) {
		rider.mu.Unlock()
		return nil, fmt.Errorf("account %q: %w", rider.ID, ErrNotRider)
	}
	idx := rider.pendingIndex(req.ID)
	if idx < 0 {
		rider.mu.Unlock()
		return nil, fmt.Errorf("request %d of %q: %w", req.ID, rider.ID, ErrUnknownRequest)
	}
	if err := schedule.Reserve(route.Legs, rider.ID); err != nil {
		rider.mu.Unlock()
		return nil, fmt.Errorf("request %d: %w", req.ID, err)
	}

	match := newMatchedTripRequest(l.ids.Next(), req, route, l.now())
	rider.pending = append(rider.pending[:idx], rider.pending[idx+1:]...)
	rider.matches = append(rider.matches, match)
	rider.balance -= match.TotalPrice
	for _, d := range match.Drivers {
		rider.eligible[d] = struct{}{}
	}
	rider.mu.Unlock()

	for _, leg := range route.Legs {
		l.Driver(leg.DriverID).credit(leg.Price)
	}

	l.mu.RLock()
	subs := append([]Subscriber(nil), l.subscribers...)
	l.mu.RUnlock()
	for _, s := range subs {
		s.MatchAccepted(match)
	}
	return match, nil
}

// LeaveFeedback records a rating from rider to driver and uses up the
// rider's eligibility for that driver.
func (l *Ledger) LeaveFeedback(riderID, driverID string, rating int, comment string) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("rating %d: %w", rating, ErrInvalidRating)
	}
	rider, err := l.Account(riderID)
	if err != nil {
		return err
	}

	rider.mu.Lock()
	if _, ok := rider.eligible[driverID]; !ok {
		rider.mu.Unlock()
		return fmt.Errorf("%q rating %q: %w", riderID, driverID, ErrNotFeedbackEligible)
	}
	delete(rider.eligible, driverID)
	rider.mu.Unlock()

	driver := l.Driver(driverID)
	driver.mu.Lock()
	driver.received = append(driver.received, Feedback{RiderID: riderID, DriverID: driverID, Rating: rating, Comment: comment})
	driver.mu.Unlock()
	return nil
}

// Matches returns every committed match of a rider.
func (l *Ledger) Matches(riderID string) ([]*MatchedTripRequest, error) {
	a, err := l.Account(riderID)
	if err != nil {
		return nil, err
	}
	return a.Matches(), nil
}

