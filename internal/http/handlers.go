package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/transpool/internal/models"
)

type depositBody struct {
	Amount int `json:"amount" validate:"gt=0"`
}

type feedbackBody struct {
	RiderID  string `json:"rider_id" validate:"required"`
	DriverID string `json:"driver_id" validate:"required"`
	Rating   int    `json:"rating" validate:"min=1,max=5"`
	Comment  string `json:"comment"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Map())
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Offers())
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var d models.OfferDescriptor
	if !s.decode(w, r, &d) {
		return
	}
	offer, err := s.svc.CreateOffer(r.Context(), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (s *Server) handleOfferRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, _ := strconv.Atoi(vars["id"])
	legs, err := s.svc.Run(id, vars["date"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, legs)
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var d models.AccountDescriptor
	if !s.decode(w, r, &d) {
		return
	}
	acct, err := s.svc.OpenAccount(r.Context(), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.svc.Account(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var body depositBody
	if !s.decode(w, r, &body) {
		return
	}
	acct, err := s.svc.Deposit(r.Context(), mux.Vars(r)["id"], body.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var d models.RequestDescriptor
	if !s.decode(w, r, &d) {
		return
	}
	req, err := s.svc.CreateRequest(r.Context(), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqs := s.svc.Requests(r.URL.Query().Get("rider_id"))
	if reqs == nil {
		reqs = []models.RequestDTO{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	req, err := s.svc.Request(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleFindMatches(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	limit := 0
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: max %q", errBadBody, v))
			return
		}
		limit = n
	}
	routes, err := s.svc.FindPossibleMatches(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

func (s *Server) handleAcceptMatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, _ := strconv.Atoi(vars["id"])
	routeID, _ := strconv.Atoi(vars["route_id"])
	match, err := s.svc.AcceptMatch(r.Context(), id, routeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

func (s *Server) handleRiderMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.svc.Matches(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleRiderHistory(w http.ResponseWriter, r *http.Request) {
	matches, err := s.svc.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []models.MatchDTO{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackBody
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.svc.LeaveFeedback(r.Context(), body.RiderID, body.DriverID, body.Rating, body.Comment); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	if err := s.ws.Accept(w, r, id); err != nil {
		// the upgrader has already replied
		s.logger.Warn("ws upgrade failed", "driver_id", id, "err", err)
	}
}

// decode reads a JSON body and runs struct validation on it. It writes the
// error response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadBody, err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "validation failed: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", requestIDFromContext(r.Context()), "err", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
