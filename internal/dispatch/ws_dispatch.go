package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/transpool/internal/models"
)

var ErrNoSession = errors.New("dispatch: no ws session")

// BookingNotice tells a driver which of their legs a rider just booked.
type BookingNotice struct {
	MatchID int             `json:"match_id"`
	RiderID string          `json:"rider_id"`
	Legs    []models.LegDTO `json:"legs"`
	Earned  int             `json:"earned"`
}

// WSSession represents a connected driver session
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(n BookingNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(n)
}

// WSRegistry holds driver sessions
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	upgrader websocket.Upgrader
	logger   *slog.Logger
	// OnChange observes the number of connected drivers.
	OnChange func(connected int)
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) *WSSession {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	if old, ok := r.sessions[driverID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[driverID] = s
	n := len(r.sessions)
	r.mu.Unlock()
	r.changed(n)
	return s
}

// Remove drops the session only if it is still the registered one, so a
// reconnect is not undone by the old connection's read loop exiting.
func (r *WSRegistry) Remove(driverID string, s *WSSession) {
	r.mu.Lock()
	if cur, ok := r.sessions[driverID]; ok && cur == s {
		delete(r.sessions, driverID)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	r.changed(n)
}

func (r *WSRegistry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Accept upgrades the request and keeps the session registered until the
// driver disconnects. Drivers never send anything meaningful; reads only
// detect the close.
func (r *WSRegistry) Accept(w http.ResponseWriter, req *http.Request, driverID string) error {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}
	s := r.Add(driverID, conn)
	go func() {
		defer r.Remove(driverID, s)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (r *WSRegistry) Notify(driverID string, n BookingNotice) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w for driver %s", ErrNoSession, driverID)
	}
	if err := s.Send(n); err != nil {
		r.logger.Warn("ws send error", "driver_id", driverID, "err", err)
		return err
	}
	return nil
}

// NotifyMatch sends each driver of the match the legs they serve.
// Offline drivers are skipped.
func (r *WSRegistry) NotifyMatch(m models.MatchDTO) error {
	var errs []error
	for driverID, notice := range noticesFor(m) {
		err := r.Notify(driverID, notice)
		if err != nil && !errors.Is(err, ErrNoSession) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func noticesFor(m models.MatchDTO) map[string]BookingNotice {
	out := make(map[string]BookingNotice, len(m.Drivers))
	for _, leg := range m.Route {
		n := out[leg.DriverID]
		n.MatchID = m.ID
		n.RiderID = m.Request.RiderID
		n.Legs = append(n.Legs, leg)
		n.Earned += leg.Price
		out[leg.DriverID] = n
	}
	return out
}

func (r *WSRegistry) changed(n int) {
	if r.OnChange != nil {
		r.OnChange(n)
	}
}
