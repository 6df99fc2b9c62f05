package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/transpool/internal/dispatch"
	"github.com/example/transpool/internal/service"
)

type Server struct {
	svc      *service.Service
	ws       *dispatch.WSRegistry
	logger   *slog.Logger
	validate *validator.Validate
	mux      *mux.Router
}

func NewServer(svc *service.Service, ws *dispatch.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{svc: svc, ws: ws, logger: logger, validate: validator.New(), mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	if s.ws != nil {
		s.mux.HandleFunc("/ws/drivers/{driver_id}", s.handleWS)
	}

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/map", s.handleMap).Methods("GET")
	api.HandleFunc("/offers", s.handleListOffers).Methods("GET")
	api.HandleFunc("/offers", s.handleCreateOffer).Methods("POST")
	api.HandleFunc("/offers/{id:[0-9]+}/runs/{date}", s.handleOfferRun).Methods("GET")
	api.HandleFunc("/accounts", s.handleOpenAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", s.handleAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}/deposits", s.handleDeposit).Methods("POST")
	api.HandleFunc("/requests", s.handleCreateRequest).Methods("POST")
	api.HandleFunc("/requests", s.handleListRequests).Methods("GET")
	api.HandleFunc("/requests/{id:[0-9]+}", s.handleRequest).Methods("GET")
	api.HandleFunc("/requests/{id:[0-9]+}/matches", s.handleFindMatches).Methods("GET")
	api.HandleFunc("/requests/{id:[0-9]+}/matches/{route_id:[0-9]+}/accept", s.handleAcceptMatch).Methods("POST")
	api.HandleFunc("/riders/{id}/matches", s.handleRiderMatches).Methods("GET")
	api.HandleFunc("/riders/{id}/history", s.handleRiderHistory).Methods("GET")
	api.HandleFunc("/feedback", s.handleFeedback).Methods("POST")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
