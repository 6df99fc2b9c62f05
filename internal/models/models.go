package models

import "time"

// DateLayout is the calendar date format used by descriptors and DTOs.
const DateLayout = "2006-01-02"

type StopDescriptor struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	X    int    `json:"x" yaml:"x" validate:"gte=0"`
	Y    int    `json:"y" yaml:"y" validate:"gte=0"`
}

type PathDescriptor struct {
	From            string  `json:"from" yaml:"from" validate:"required"`
	To              string  `json:"to" yaml:"to" validate:"required,nefield=From"`
	Length          int     `json:"length" yaml:"length" validate:"gt=0"`
	FuelConsumption float64 `json:"fuel_consumption" yaml:"fuel_consumption" validate:"gte=0"`
	SpeedLimit      int     `json:"speed_limit" yaml:"speed_limit" validate:"gt=0"`
	OneWay          bool    `json:"one_way" yaml:"one_way"`
}

// MapDescriptor is a parsed map file. Bounds and references are checked by
// graph.Load, not here.
type MapDescriptor struct {
	Width  int              `json:"width" yaml:"width"`
	Length int              `json:"length" yaml:"length"`
	Stops  []StopDescriptor `json:"stops" yaml:"stops" validate:"dive"`
	Paths  []PathDescriptor `json:"paths" yaml:"paths" validate:"dive"`
}

type OfferDescriptor struct {
	DriverID      string   `json:"driver_id" yaml:"driver_id" validate:"required"`
	Route         []string `json:"route" yaml:"route" validate:"min=2,dive,required"`
	DepartureTime string   `json:"departure_time" yaml:"departure_time" validate:"required"`
	PricePerKm    int      `json:"price_per_km" yaml:"price_per_km" validate:"gte=0"`
	Capacity      int      `json:"capacity" yaml:"capacity" validate:"gte=0"`
	// Recurrence holds "daily", weekday names or YYYY-MM-DD dates.
	Recurrence []string `json:"recurrence" yaml:"recurrence" validate:"min=1,dive,required"`
}

type RequestDescriptor struct {
	RiderID     string `json:"rider_id" yaml:"rider_id" validate:"required"`
	Source      string `json:"source" yaml:"source" validate:"required"`
	Destination string `json:"destination" yaml:"destination" validate:"required,nefield=Source"`
	Date        string `json:"date" yaml:"date" validate:"required"`
	Time        string `json:"time" yaml:"time" validate:"required"`
	IsArrival   bool   `json:"is_arrival" yaml:"is_arrival"`
}

type AccountDescriptor struct {
	ID      string   `json:"id" yaml:"id" validate:"required"`
	Roles   []string `json:"roles" yaml:"roles" validate:"min=1,dive,oneof=rider driver"`
	Balance int      `json:"balance" yaml:"balance"`
}

// Scenario bundles everything needed to bring up one map.
type Scenario struct {
	Map      MapDescriptor       `json:"map" yaml:"map"`
	Accounts []AccountDescriptor `json:"accounts" yaml:"accounts" validate:"dive"`
	Offers   []OfferDescriptor   `json:"offers" yaml:"offers" validate:"dive"`
	Requests []RequestDescriptor `json:"requests" yaml:"requests" validate:"dive"`
}

type StopDTO struct {
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type PathDTO struct {
	From            string  `json:"from"`
	To              string  `json:"to"`
	Length          int     `json:"length"`
	FuelConsumption float64 `json:"fuel_consumption"`
	SpeedLimit      int     `json:"speed_limit"`
	OneWay          bool    `json:"one_way"`
	TravelMinutes   int     `json:"travel_minutes"`
}

type MapDTO struct {
	Width  int       `json:"width"`
	Length int       `json:"length"`
	Stops  []StopDTO `json:"stops"`
	Paths  []PathDTO `json:"paths"`
	// Grid[y][x] holds the stop name at that coordinate, or "".
	Grid [][]string `json:"grid"`
}

type OfferDTO struct {
	ID              int      `json:"id"`
	DriverID        string   `json:"driver_id"`
	Route           []string `json:"route"`
	DepartureTime   string   `json:"departure_time"`
	PricePerKm      int      `json:"price_per_km"`
	Capacity        int      `json:"capacity"`
	Recurrence      []string `json:"recurrence"`
	DurationMinutes int      `json:"duration_minutes"`
}

type LegDTO struct {
	OfferID   int       `json:"offer_id"`
	DriverID  string    `json:"driver_id"`
	Leg       int       `json:"leg"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Departure time.Time `json:"departure"`
	Arrival   time.Time `json:"arrival"`
	Price     int       `json:"price"`
	Capacity  int       `json:"capacity"`
	Remaining int       `json:"remaining"`
	Riders    []string  `json:"riders,omitempty"`
}

type RequestDTO struct {
	ID          int    `json:"id"`
	RiderID     string `json:"rider_id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	IsArrival   bool   `json:"is_arrival"`
}

type RouteDTO struct {
	ID              int       `json:"id"`
	RequestID       int       `json:"request_id"`
	Legs            []LegDTO  `json:"legs"`
	TotalPrice      int       `json:"total_price"`
	TravelMinutes   int       `json:"travel_minutes"`
	Departure       time.Time `json:"departure"`
	Arrival         time.Time `json:"arrival"`
	FuelConsumption float64   `json:"fuel_consumption"`
	Drivers         []string  `json:"drivers"`
}

type MatchDTO struct {
	ID              int        `json:"id"`
	Request         RequestDTO `json:"request"`
	Route           []LegDTO   `json:"route"`
	TotalPrice      int        `json:"total_price"`
	Drivers         []string   `json:"drivers"`
	OfferIDs        []int      `json:"offer_ids"`
	Departure       time.Time  `json:"departure"`
	Arrival         time.Time  `json:"arrival"`
	FuelConsumption float64    `json:"fuel_consumption"`
	CreatedAt       time.Time  `json:"created_at"`
}

type FeedbackDTO struct {
	RiderID  string `json:"rider_id"`
	DriverID string `json:"driver_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
}

type AccountDTO struct {
	ID               string        `json:"id"`
	Rider            bool          `json:"rider"`
	Driver           bool          `json:"driver"`
	Balance          int           `json:"balance"`
	PendingRequests  []int         `json:"pending_requests"`
	Matches          []int         `json:"matches"`
	FeedbackEligible []string      `json:"feedback_eligible"`
	AverageRating    float64       `json:"average_rating"`
	Feedback         []FeedbackDTO `json:"feedback"`
}
