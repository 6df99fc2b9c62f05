package ledger

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/example/transpool/internal/matcher"
	"github.com/example/transpool/internal/models"
)

// Capability is a set of roles an account may act in. One account can be
// both rider and driver.
type Capability uint8

const (
	CapRider Capability = 1 << iota
	CapDriver
)

func (c Capability) Has(o Capability) bool { return c&o == o }

func ParseCapabilities(roles []string) (Capability, error) {
	var c Capability
	for _, r := range roles {
		switch strings.ToLower(strings.TrimSpace(r)) {
		case "rider":
			c |= CapRider
		case "driver":
			c |= CapDriver
		default:
			return 0, fmt.Errorf("role %q: %w", r, ErrUnknownRole)
		}
	}
	if c == 0 {
		return 0, fmt.Errorf("no roles: %w", ErrUnknownRole)
	}
	return c, nil
}

type Feedback struct {
	RiderID  string
	DriverID string
	Rating   int
	Comment  string
}

// Account carries a user's credit, their bookings and feedback state. All
// mutable fields are guarded by mu.
type Account struct {
	ID string

	mu       sync.Mutex
	caps     Capability
	balance  int
	pending  []*matcher.TripRequest
	matches  []*MatchedTripRequest
	eligible map[string]struct{}
	received []Feedback
}

func newAccount(id string, caps Capability) *Account {
	return &Account{ID: id, caps: caps, eligible: make(map[string]struct{})}
}

func (a *Account) Capabilities() Capability {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caps
}

func (a *Account) Balance() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

func (a *Account) Pending() []*matcher.TripRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.pending)
}

func (a *Account) Matches() []*MatchedTripRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.matches)
}

// FeedbackEligible lists drivers this rider may still rate, sorted.
func (a *Account) FeedbackEligible() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eligibleLocked()
}

func (a *Account) eligibleLocked() []string {
	out := make([]string, 0, len(a.eligible))
	for d := range a.eligible {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (a *Account) Feedback() []Feedback {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.received)
}

func (a *Account) AverageRating() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.averageLocked()
}

func (a *Account) averageLocked() float64 {
	if len(a.received) == 0 {
		return 0
	}
	sum := 0
	for _, f := range a.received {
		sum += f.Rating
	}
	return float64(sum) / float64(len(a.received))
}

func (a *Account) credit(amount int) {
	a.mu.Lock()
	a.balance += amount
	a.mu.Unlock()
}

func (a *Account) pendingIndex(requestID int) int {
	return slices.IndexFunc(a.pending, func(r *matcher.TripRequest) bool { return r.ID == requestID })
}

func (a *Account) Snapshot() models.AccountDTO {
	a.mu.Lock()
	defer a.mu.Unlock()
	dto := models.AccountDTO{
		ID:               a.ID,
		Rider:            a.caps.Has(CapRider),
		Driver:           a.caps.Has(CapDriver),
		Balance:          a.balance,
		PendingRequests:  make([]int, 0, len(a.pending)),
		Matches:          make([]int, 0, len(a.matches)),
		FeedbackEligible: a.eligibleLocked(),
		AverageRating:    a.averageLocked(),
		Feedback:         make([]models.FeedbackDTO, 0, len(a.received)),
	}
	for _, r := range a.pending {
		dto.PendingRequests = append(dto.PendingRequests, r.ID)
	}
	for _, m := range a.matches {
		dto.Matches = append(dto.Matches, m.ID)
	}
	for _, f := range a.received {
		dto.Feedback = append(dto.Feedback, models.FeedbackDTO{RiderID: f.RiderID, DriverID: f.DriverID, Rating: f.Rating, Comment: f.Comment})
	}
	return dto
}
